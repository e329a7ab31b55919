package transcode

import (
	"slices"
	"strconv"
)

// kbitEncoders take their bitrate in kbit/s instead of bit/s.
var kbitEncoders = map[string]bool{
	"lamemp3enc":    true,
	"twolamemp2enc": true,
}

// bitrateArg returns the bitrate property value for the audio encoder factory,
// and false when the property must be left alone.
func bitrateArg(factory string, bitrate int, hasProperty bool) (string, bool) {
	if bitrate <= 0 || !hasProperty {
		return "", false
	}
	if kbitEncoders[factory] {
		bitrate = max(bitrate/1000, 1)
	}
	return strconv.Itoa(bitrate), true
}

// unknownProperties returns the sorted keys of props rejected by has.
func unknownProperties(props map[string]string, has func(string) bool) []string {
	var unknown []string
	for k := range props {
		if !has(k) {
			unknown = append(unknown, k)
		}
	}
	slices.Sort(unknown)
	return unknown
}
