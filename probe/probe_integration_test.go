//go:build integration

package probe_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Darkness4/gst-transcode/probe"
	"github.com/Darkness4/gst-transcode/transcode"
	"github.com/go-gst/go-gst/gst"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	transcode.Init()
	input := filepath.Join(t.TempDir(), "input.mkv")
	pipeline, err := gst.NewPipelineFromString(
		"audiotestsrc num-buffers=20 ! vorbisenc ! matroskamux ! filesink location=" + input,
	)
	require.NoError(t, err)
	require.NoError(t, pipeline.SetState(gst.StatePlaying))
	msg := pipeline.GetPipelineBus().TimedPopFiltered(gst.ClockTime(30*time.Second), gst.MessageEOS|gst.MessageError)
	require.NotNil(t, msg)
	require.NoError(t, pipeline.SetState(gst.StateNull))

	uri, err := transcode.NormalizeURI(input)
	require.NoError(t, err)

	res, err := probe.Do(context.Background(), uri)
	require.NoError(t, err)
	require.True(t, res.HasKind("audio"))
	require.False(t, res.HasKind("video"))
}
