//go:build integration

package transcode_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Darkness4/gst-transcode/probe"
	"github.com/Darkness4/gst-transcode/transcode"
	"github.com/go-gst/go-gst/gst"
	"github.com/stretchr/testify/require"
)

// generate writes a short audio/video matroska file with test sources.
func generate(t *testing.T, path string, launch string) {
	t.Helper()
	transcode.Init()
	pipeline, err := gst.NewPipelineFromString(launch + " filesink location=" + path)
	require.NoError(t, err)
	require.NoError(t, pipeline.SetState(gst.StatePlaying))
	defer func() { _ = pipeline.SetState(gst.StateNull) }()

	msg := pipeline.GetPipelineBus().TimedPopFiltered(
		gst.ClockTime(30*time.Second),
		gst.MessageEOS|gst.MessageError,
	)
	require.NotNil(t, msg)
	require.Equal(t, gst.MessageEOS, msg.Type())
}

func TestDo(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.mkv")
	generate(t, input, "videotestsrc num-buffers=60 ! x264enc ! mux. "+
		"audiotestsrc num-buffers=60 ! vorbisenc ! mux. "+
		"matroskamux name=mux !")

	uri, err := transcode.NormalizeURI(input)
	require.NoError(t, err)

	output := filepath.Join(dir, "output.mkv")
	err = transcode.Do(context.Background(), uri, output, transcode.DefaultParams.Clone())
	require.NoError(t, err)

	fi, err := os.Stat(output)
	require.NoError(t, err)
	require.Greater(t, fi.Size(), int64(0))
}

func TestDoVideoOnly(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.mkv")
	generate(t, input, "videotestsrc num-buffers=60 ! x264enc ! matroskamux !")

	uri, err := transcode.NormalizeURI(input)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	err = transcode.Do(ctx, uri, filepath.Join(dir, "output.mkv"), transcode.DefaultParams.Clone())
	require.NoError(t, err)
}

func TestDoMissingInput(t *testing.T) {
	dir := t.TempDir()
	uri, err := transcode.NormalizeURI(filepath.Join(dir, "missing.mkv"))
	require.NoError(t, err)

	err = transcode.Do(context.Background(), uri, filepath.Join(dir, "output.mkv"), transcode.DefaultParams.Clone())
	var elemErr *transcode.ElementError
	require.True(t, errors.As(err, &elemErr))
}

func TestDoMissingElement(t *testing.T) {
	params := transcode.DefaultParams.Clone()
	params.VideoEncoder = "doesnotexistenc"

	err := transcode.Do(context.Background(), "file:///dev/null", filepath.Join(t.TempDir(), "o.mkv"), params)
	require.ErrorIs(t, err, transcode.ErrMissingElement)
}

func TestDoUnknownProperty(t *testing.T) {
	params := transcode.DefaultParams.Clone()
	params.VideoProperties = map[string]string{"speed-presset": "fast"}

	err := transcode.Do(context.Background(), "file:///dev/null", filepath.Join(t.TempDir(), "o.mkv"), params)
	require.ErrorIs(t, err, transcode.ErrUnknownProperty)
	require.ErrorContains(t, err, "speed-presset")
}

func TestDoOtherAudioEncoders(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.mkv")
	generate(t, input, "audiotestsrc num-buffers=60 ! vorbisenc ! matroskamux !")
	uri, err := transcode.NormalizeURI(input)
	require.NoError(t, err)

	for _, enc := range []string{"lamemp3enc", "flacenc"} {
		t.Run(enc, func(t *testing.T) {
			params := transcode.DefaultParams.Clone()
			params.AudioEncoder = enc
			err := transcode.Do(context.Background(), uri, filepath.Join(dir, enc+".mkv"), params)
			require.NoError(t, err)
		})
	}
}

func TestDoCanceled(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.mkv")
	generate(t, input, "videotestsrc num-buffers=3000 ! video/x-raw,width=640,height=480 ! "+
		"x264enc speed-preset=ultrafast ! matroskamux !")
	uri, err := transcode.NormalizeURI(input)
	require.NoError(t, err)

	params := transcode.DefaultParams.Clone()
	// Slow enough to still be running when canceled.
	params.VideoProperties = map[string]string{"speed-preset": "veryslow"}
	params.EOSTimeout = 30 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(time.Second, cancel)

	output := filepath.Join(dir, "output.mkv")
	err = transcode.Do(ctx, uri, output, params)
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)

	fi, err := os.Stat(output)
	require.NoError(t, err)
	require.Greater(t, fi.Size(), int64(0))

	// The muxer finalized the file, so it can be read back.
	outURI, err := transcode.NormalizeURI(output)
	require.NoError(t, err)
	res, err := probe.Do(context.Background(), outURI)
	require.NoError(t, err)
	require.True(t, res.HasKind("video"))
}

func TestDoCanceledEOSTimeout(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.mkv")
	generate(t, input, "videotestsrc num-buffers=3000 ! video/x-raw,width=640,height=480 ! "+
		"x264enc speed-preset=ultrafast ! matroskamux !")
	uri, err := transcode.NormalizeURI(input)
	require.NoError(t, err)

	params := transcode.DefaultParams.Clone()
	params.VideoProperties = map[string]string{"speed-preset": "veryslow"}
	params.EOSTimeout = time.Nanosecond

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(time.Second, cancel)

	start := time.Now()
	err = transcode.Do(ctx, uri, filepath.Join(dir, "output.mkv"), params)
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
	require.Less(t, time.Since(start), 10*time.Second)
}
