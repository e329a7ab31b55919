package try_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Darkness4/gst-transcode/utils/try"
	"github.com/stretchr/testify/require"
)

func TestDoExponentialBackoff(t *testing.T) {
	calls := 0
	err := try.DoExponentialBackoff(
		context.Background(), 3, time.Millisecond, 2, 5*time.Millisecond,
		func(_ context.Context, try int) error {
			calls++
			if try < 2 {
				return errors.New("fail")
			}
			return nil
		},
	)
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoExponentialBackoffExhausted(t *testing.T) {
	want := errors.New("fail")
	calls := 0
	err := try.DoExponentialBackoff(
		context.Background(), 2, time.Millisecond, 2, time.Millisecond,
		func(_ context.Context, _ int) error {
			calls++
			return want
		},
	)
	require.ErrorIs(t, err, want)
	require.Equal(t, 2, calls)
}

func TestDoExponentialBackoffPermanent(t *testing.T) {
	want := errors.New("fatal")
	calls := 0
	err := try.DoExponentialBackoff(
		context.Background(), 5, time.Millisecond, 2, time.Millisecond,
		func(_ context.Context, _ int) error {
			calls++
			return try.Permanent(want)
		},
	)
	require.Equal(t, want, err)
	require.Equal(t, 1, calls)
}

func TestDoExponentialBackoffCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := try.DoExponentialBackoff(
		ctx, 5, time.Hour, 2, time.Hour,
		func(_ context.Context, _ int) error {
			cancel()
			return errors.New("fail")
		},
	)
	require.ErrorIs(t, err, context.Canceled)
}
