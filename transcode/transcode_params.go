package transcode

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

// Params represents the parameters of a transcode.
type Params struct {
	VideoEncoder     string            `yaml:"videoEncoder,omitempty"     json:"videoEncoder"`
	AudioEncoder     string            `yaml:"audioEncoder,omitempty"     json:"audioEncoder"`
	Muxer            string            `yaml:"muxer,omitempty"            json:"muxer"`
	AudioBitrate     int               `yaml:"audioBitrate,omitempty"     json:"audioBitrate"`
	VideoProperties  map[string]string `yaml:"videoProperties,omitempty"  json:"videoProperties,omitempty"`
	AudioProperties  map[string]string `yaml:"audioProperties,omitempty"  json:"audioProperties,omitempty"`
	MuxerProperties  map[string]string `yaml:"muxerProperties,omitempty"  json:"muxerProperties,omitempty"`
	ProgressInterval time.Duration     `yaml:"progressInterval,omitempty" json:"progressInterval"`
	EOSTimeout       time.Duration     `yaml:"eosTimeout,omitempty"       json:"eosTimeout"`
	Labels           map[string]string `yaml:"labels,omitempty"           json:"labels,omitempty"`
}

func (p *Params) String() string {
	out, _ := json.MarshalIndent(p, "", "  ")
	return string(out)
}

// OptionalParams represents the optional parameters of a transcode.
type OptionalParams struct {
	VideoEncoder     *string           `yaml:"videoEncoder,omitempty"`
	AudioEncoder     *string           `yaml:"audioEncoder,omitempty"`
	Muxer            *string           `yaml:"muxer,omitempty"`
	AudioBitrate     *int              `yaml:"audioBitrate,omitempty"`
	VideoProperties  map[string]string `yaml:"videoProperties,omitempty"`
	AudioProperties  map[string]string `yaml:"audioProperties,omitempty"`
	MuxerProperties  map[string]string `yaml:"muxerProperties,omitempty"`
	ProgressInterval *time.Duration    `yaml:"progressInterval,omitempty"`
	EOSTimeout       *time.Duration    `yaml:"eosTimeout,omitempty"`
	Labels           map[string]string `yaml:"labels,omitempty"`
}

// DefaultParams is the default set of parameters.
//
// H.264 video and 32kbit/s Opus audio in a Matroska container.
var DefaultParams = Params{
	VideoEncoder:     "x264enc",
	AudioEncoder:     "opusenc",
	Muxer:            "matroskamux",
	AudioBitrate:     32000,
	ProgressInterval: 0,
	EOSTimeout:       10 * time.Second,
}

// Override applies the values from the OptionalParams to the Params.
func (override *OptionalParams) Override(params *Params) {
	if override.VideoEncoder != nil {
		params.VideoEncoder = *override.VideoEncoder
	}
	if override.AudioEncoder != nil {
		params.AudioEncoder = *override.AudioEncoder
	}
	if override.Muxer != nil {
		params.Muxer = *override.Muxer
	}
	if override.AudioBitrate != nil {
		params.AudioBitrate = *override.AudioBitrate
	}
	if override.ProgressInterval != nil {
		params.ProgressInterval = *override.ProgressInterval
	}
	if override.EOSTimeout != nil {
		params.EOSTimeout = *override.EOSTimeout
	}
	params.VideoProperties = mergeMap(params.VideoProperties, override.VideoProperties)
	params.AudioProperties = mergeMap(params.AudioProperties, override.AudioProperties)
	params.MuxerProperties = mergeMap(params.MuxerProperties, override.MuxerProperties)
	params.Labels = mergeMap(params.Labels, override.Labels)
}

func mergeMap(dst, src map[string]string) map[string]string {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	maps.Copy(dst, src)
	return dst
}

// Clone creates a deep copy of the Params struct.
func (p *Params) Clone() *Params {
	clone := *p
	clone.VideoProperties = maps.Clone(p.VideoProperties)
	clone.AudioProperties = maps.Clone(p.AudioProperties)
	clone.MuxerProperties = maps.Clone(p.MuxerProperties)
	clone.Labels = maps.Clone(p.Labels)
	return &clone
}

// ParseProperties parses a list of key=value pairs.
func ParseProperties(kvs []string) (map[string]string, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid property %q, expected key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}
