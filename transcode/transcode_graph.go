package transcode

import (
	"fmt"
	"strings"
)

// Element names inside the pipeline.
const (
	SourceName       = "source"
	VideoConvertName = "videoconv"
	VideoEncoderName = "video-encoder"
	AudioConvertName = "convert"
	AudioResampName  = "resample"
	AudioEncoderName = "audio-encoder"
	MuxerName        = "muxer"
	SinkName         = "finalsink"
	PipelineName     = "transcode-pipeline"
)

// ElementSpec describes an element to instantiate.
type ElementSpec struct {
	Factory string
	Name    string
}

// Graph is the static description of the transcode pipeline.
//
// The source pads are dynamic and are linked at runtime to the first element of
// the matching branch. Every branch ends with the muxer, which is linked to the
// sink.
type Graph struct {
	Source ElementSpec
	Video  []ElementSpec
	Audio  []ElementSpec
	Muxer  ElementSpec
	Sink   ElementSpec
}

// NewGraph builds the graph for the given parameters.
func NewGraph(params *Params) Graph {
	return Graph{
		Source: ElementSpec{Factory: "uridecodebin", Name: SourceName},
		Video: []ElementSpec{
			{Factory: "videoconvert", Name: VideoConvertName},
			{Factory: params.VideoEncoder, Name: VideoEncoderName},
		},
		Audio: []ElementSpec{
			{Factory: "audioconvert", Name: AudioConvertName},
			{Factory: "audioresample", Name: AudioResampName},
			{Factory: params.AudioEncoder, Name: AudioEncoderName},
		},
		Muxer: ElementSpec{Factory: params.Muxer, Name: MuxerName},
		Sink:  ElementSpec{Factory: "filesink", Name: SinkName},
	}
}

// Elements returns every element of the graph in insertion order.
func (g Graph) Elements() []ElementSpec {
	out := make([]ElementSpec, 0, 3+len(g.Video)+len(g.Audio))
	out = append(out, g.Source)
	out = append(out, g.Video...)
	out = append(out, g.Audio...)
	out = append(out, g.Muxer, g.Sink)
	return out
}

// Validate checks that every element has a factory and a unique name.
func (g Graph) Validate() error {
	seen := make(map[string]struct{})
	for _, e := range g.Elements() {
		if e.Factory == "" {
			return fmt.Errorf("element %q has no factory", e.Name)
		}
		if _, ok := seen[e.Name]; ok {
			return fmt.Errorf("duplicate element name %q", e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	return nil
}

var pluginSets = map[string]string{
	"uridecodebin":  "Base",
	"audioconvert":  "Base",
	"audioresample": "Base",
	"videoconvert":  "Base",
	"opusenc":       "Base",
	"vorbisenc":     "Base",
	"theoraenc":     "Base",
	"oggmux":        "Base",
	"filesink":      "Core",
	"matroskamux":   "Good",
	"webmmux":       "Good",
	"mp4mux":        "Good",
	"qtmux":         "Good",
	"vp8enc":        "Good",
	"vp9enc":        "Good",
	"flacenc":       "Good",
	"lamemp3enc":    "Good",
	"x264enc":       "Ugly",
	"x265enc":       "Bad",
	"av1enc":        "Bad",
	"svtav1enc":     "Bad",
	"mpegtsmux":     "Bad",
	"fdkaacenc":     "Bad",
	"avenc_aac":     "Libav",
}

// PluginHint returns the installation hint for a missing element factory.
func PluginHint(factory string) string {
	set, ok := pluginSets[factory]
	if !ok {
		return fmt.Sprintf("make sure that the plugin providing %q is installed", factory)
	}
	if set == "Libav" {
		return "make sure that you have GStreamer Libav installed"
	}
	return fmt.Sprintf("make sure that you have GStreamer %s Plugins installed", set)
}

var muxerExtensions = map[string]string{
	"matroskamux": "mkv",
	"webmmux":     "webm",
	"mp4mux":      "mp4",
	"qtmux":       "mov",
	"oggmux":      "ogg",
	"mpegtsmux":   "ts",
	"avimux":      "avi",
	"flvmux":      "flv",
}

// Extension returns the file extension usually produced by a muxer factory.
func Extension(muxer string) string {
	if ext, ok := muxerExtensions[muxer]; ok {
		return ext
	}
	return strings.TrimSuffix(muxer, "mux")
}
