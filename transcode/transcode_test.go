package transcode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestClassifyCaps(t *testing.T) {
	tests := []struct {
		input string
		want  MediaKind
	}{
		{"video/x-raw", MediaVideo},
		{"video/x-raw(memory:GLMemory)", MediaVideo},
		{"audio/x-raw", MediaAudio},
		{"audio/x-raw-float", MediaAudio},
		{"video/x-h264", MediaUnknown},
		{"audio/mpeg", MediaUnknown},
		{"text/x-raw", MediaUnknown},
		{"", MediaUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.want, ClassifyCaps(tt.input))
		})
	}
}

func TestRoute(t *testing.T) {
	linked := map[MediaKind]bool{}
	isLinked := func(k MediaKind) bool { return linked[k] }

	kind, res := route("video/x-raw", isLinked)
	require.Equal(t, MediaVideo, kind)
	require.Equal(t, routeLink, res)

	linked[MediaVideo] = true
	kind, res = route("video/x-raw", isLinked)
	require.Equal(t, MediaVideo, kind)
	require.Equal(t, routeAlreadyLinked, res)

	kind, res = route("audio/x-raw", isLinked)
	require.Equal(t, MediaAudio, kind)
	require.Equal(t, routeLink, res)

	_, res = route("application/x-subtitle", isLinked)
	require.Equal(t, routeIgnore, res)
}

func TestBusHandler(t *testing.T) {
	h := &busHandler{ctx: context.Background(), log: zerolog.Nop()}

	t.Run("error terminates with element error", func(t *testing.T) {
		done, err := h.handle(busEvent{
			kind:    busEventError,
			source:  "opus-encoder",
			message: "not negotiated",
		})
		require.True(t, done)
		var elemErr *ElementError
		require.True(t, errors.As(err, &elemErr))
		require.Equal(t, "opus-encoder", elemErr.Element)
		require.Equal(t, "not negotiated", elemErr.Message)
		require.Empty(t, elemErr.Debug)
		require.Equal(t, "error received from element opus-encoder: not negotiated", err.Error())
	})

	t.Run("eos terminates without error", func(t *testing.T) {
		done, err := h.handle(busEvent{kind: busEventEOS})
		require.True(t, done)
		require.NoError(t, err)
	})

	t.Run("state change of the pipeline continues", func(t *testing.T) {
		done, err := h.handle(busEvent{
			kind:         busEventStateChanged,
			source:       PipelineName,
			fromPipeline: true,
			oldState:     "READY",
			newState:     "PAUSED",
		})
		require.False(t, done)
		require.NoError(t, err)
	})

	t.Run("state change of an element continues", func(t *testing.T) {
		done, err := h.handle(busEvent{
			kind:     busEventStateChanged,
			source:   MuxerName,
			oldState: "NULL",
			newState: "READY",
		})
		require.False(t, done)
		require.NoError(t, err)
	})

	t.Run("unexpected message continues", func(t *testing.T) {
		done, err := h.handle(busEvent{kind: busEventOther, typeName: "tag"})
		require.False(t, done)
		require.NoError(t, err)
	})
}

func TestGraph(t *testing.T) {
	g := NewGraph(&DefaultParams)
	require.NoError(t, g.Validate())

	factories := make([]string, 0)
	for _, e := range g.Elements() {
		factories = append(factories, e.Factory)
	}
	require.Equal(t, []string{
		"uridecodebin",
		"videoconvert", "x264enc",
		"audioconvert", "audioresample", "opusenc",
		"matroskamux",
		"filesink",
	}, factories)

	params := DefaultParams.Clone()
	params.AudioEncoder = ""
	require.Error(t, NewGraph(params).Validate())
}

func TestPluginHint(t *testing.T) {
	require.Equal(t, "make sure that you have GStreamer Ugly Plugins installed", PluginHint("x264enc"))
	require.Equal(t, "make sure that you have GStreamer Base Plugins installed", PluginHint("opusenc"))
	require.Contains(t, PluginHint("myenc"), `"myenc"`)
}

func TestMissingElementError(t *testing.T) {
	cause := errors.New("no such element factory")
	err := error(&missingElementError{factory: "x264enc", cause: cause})
	require.ErrorIs(t, err, ErrMissingElement)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "Ugly")
}

func TestExtension(t *testing.T) {
	require.Equal(t, "mkv", Extension("matroskamux"))
	require.Equal(t, "mp4", Extension("mp4mux"))
	require.Equal(t, "wav", Extension("wavmux"))
}

func TestProgressPercent(t *testing.T) {
	require.Equal(t, 0.0, progressPercent(10, 0))
	require.Equal(t, 50.0, progressPercent(5, 10))
	require.Equal(t, 100.0, progressPercent(12, 10))
}

func TestParamsOverride(t *testing.T) {
	params := DefaultParams.Clone()
	muxer := "webmmux"
	bitrate := 64000
	timeout := time.Second
	override := OptionalParams{
		Muxer:           &muxer,
		AudioBitrate:    &bitrate,
		EOSTimeout:      &timeout,
		VideoProperties: map[string]string{"speed-preset": "veryfast"},
		Labels:          map[string]string{"show": "a"},
	}
	override.Override(params)

	require.Equal(t, "webmmux", params.Muxer)
	require.Equal(t, "x264enc", params.VideoEncoder)
	require.Equal(t, 64000, params.AudioBitrate)
	require.Equal(t, time.Second, params.EOSTimeout)
	require.Equal(t, "veryfast", params.VideoProperties["speed-preset"])
	require.Equal(t, "a", params.Labels["show"])

	// DefaultParams must stay untouched.
	require.Equal(t, "matroskamux", DefaultParams.Muxer)
	require.Nil(t, DefaultParams.VideoProperties)

	clone := params.Clone()
	clone.Labels["show"] = "b"
	require.Equal(t, "a", params.Labels["show"])
}

func TestNormalizeURI(t *testing.T) {
	uri, err := NormalizeURI("https://example.com/a.mp4")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/a.mp4", uri)

	uri, err = NormalizeURI("/tmp/in put.mp4")
	require.NoError(t, err)
	require.Equal(t, "file:///tmp/in%20put.mp4", uri)

	path, ok := LocalPath(uri)
	require.True(t, ok)
	require.Equal(t, "/tmp/in put.mp4", path)

	_, ok = LocalPath("rtsp://camera/stream")
	require.False(t, ok)
}

func TestParseProperties(t *testing.T) {
	props, err := ParseProperties([]string{"speed-preset=veryfast", "tune=zerolatency", "key-int-max=60"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"speed-preset": "veryfast",
		"tune":         "zerolatency",
		"key-int-max":  "60",
	}, props)

	props, err = ParseProperties(nil)
	require.NoError(t, err)
	require.Nil(t, props)

	_, err = ParseProperties([]string{"novalue"})
	require.Error(t, err)
	_, err = ParseProperties([]string{"=value"})
	require.Error(t, err)
}

func TestBitrateArg(t *testing.T) {
	tests := []struct {
		name        string
		factory     string
		bitrate     int
		hasProperty bool
		want        string
		wantOK      bool
	}{
		{"opus in bit/s", "opusenc", 32000, true, "32000", true},
		{"aac int64 property", "avenc_aac", 128000, true, "128000", true},
		{"lame in kbit/s", "lamemp3enc", 128000, true, "128", true},
		{"lame lowest rate", "lamemp3enc", 500, true, "1", true},
		{"no bitrate property", "flacenc", 32000, false, "", false},
		{"encoder default", "opusenc", 0, true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := bitrateArg(tt.factory, tt.bitrate, tt.hasProperty)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestUnknownProperties(t *testing.T) {
	known := map[string]bool{"speed-preset": true, "tune": true}
	has := func(k string) bool { return known[k] }

	require.Empty(t, unknownProperties(nil, has))
	require.Empty(t, unknownProperties(map[string]string{"tune": "zerolatency"}, has))
	require.Equal(t, []string{"speed-presset", "tunes"}, unknownProperties(map[string]string{
		"tunes":         "zerolatency",
		"speed-presset": "fast",
		"speed-preset":  "fast",
	}, has))
}
