package channel_test

import (
	"testing"
	"time"

	"github.com/Darkness4/gst-transcode/utils/channel"
	"github.com/stretchr/testify/require"
)

func TestDebounce(t *testing.T) {
	in := make(chan int)
	out := channel.Debounce(nil, in, 50*time.Millisecond)

	in <- 1
	in <- 2
	in <- 3

	select {
	case v := <-out:
		require.Equal(t, 3, v)
	case <-time.After(time.Second):
		t.Fatal("no debounced event")
	}

	in <- 4
	close(in)
	require.Equal(t, 4, <-out)
	_, ok := <-out
	require.False(t, ok)
}

func TestDebounceDoneWithPendingEvent(t *testing.T) {
	done := make(chan struct{})
	in := make(chan int)
	out := channel.Debounce(done, in, 10*time.Millisecond)

	in <- 1
	// Nobody reads the event: the sender must give up once done is closed.
	time.Sleep(50 * time.Millisecond)
	close(done)

	select {
	case _, ok := <-out:
		if ok {
			// The event raced with done; the output must still close.
			_, ok = <-out
		}
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("output not closed after done")
	}
}
