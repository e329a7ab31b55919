// Package probe discovers the streams of a media URI.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Darkness4/gst-transcode/transcode"
	"github.com/go-gst/go-gst/gst"
	"github.com/rs/zerolog/log"
)

// ErrTimeout is returned when the input did not preroll in time.
var ErrTimeout = errors.New("probe timed out")

// Stream is a decoded stream of the input.
type Stream struct {
	Pad  string `json:"pad"`
	Kind string `json:"kind"`
	Caps string `json:"caps"`
}

// Result is the outcome of a probe.
type Result struct {
	URI      string        `json:"uri"`
	Duration time.Duration `json:"duration"`
	Streams  []Stream      `json:"streams"`
}

// HasKind reports whether the input has a stream of the given kind ("audio" or "video").
func (r *Result) HasKind(kind string) bool {
	for _, s := range r.Streams {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

// Option configures a probe.
type Option func(*Options)

// Options of a probe.
type Options struct {
	timeout time.Duration
}

// WithTimeout sets the maximum time to wait for the input to preroll.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.timeout = timeout
	}
}

func applyOptions(opts []Option) *Options {
	o := &Options{
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Kind returns "video", "audio" or "other" for a caps structure name.
func Kind(capsName string) string {
	switch {
	case strings.HasPrefix(capsName, "video/"):
		return "video"
	case strings.HasPrefix(capsName, "audio/"):
		return "audio"
	}
	return "other"
}

// Do decodes the input up to the first frames and reports its streams.
func Do(ctx context.Context, uri string, opts ...Option) (*Result, error) {
	o := applyOptions(opts)
	transcode.Init()

	pipeline, err := gst.NewPipeline("probe-pipeline")
	if err != nil {
		return nil, err
	}
	source, err := gst.NewElementWithName("uridecodebin", "source")
	if err != nil {
		return nil, fmt.Errorf("%w: uridecodebin (%s)", transcode.ErrMissingElement, transcode.PluginHint("uridecodebin"))
	}
	if err := pipeline.Add(source); err != nil {
		return nil, err
	}
	if err := source.SetProperty("uri", uri); err != nil {
		return nil, err
	}

	res := &Result{URI: uri, Streams: make([]Stream, 0)}
	var mu sync.Mutex
	if _, err := source.Connect("pad-added", func(_ *gst.Element, pad *gst.Pad) {
		caps := pad.GetCurrentCaps()
		if caps == nil {
			caps = pad.QueryCaps(nil)
		}
		stream := Stream{Pad: pad.GetName(), Kind: "other"}
		if caps != nil && caps.GetSize() > 0 {
			stream.Caps = caps.String()
			stream.Kind = Kind(caps.GetStructureAt(0).Name())
		}
		mu.Lock()
		res.Streams = append(res.Streams, stream)
		mu.Unlock()

		sink, err := gst.NewElement("fakesink")
		if err != nil {
			log.Error().Err(err).Msg("failed to create fakesink")
			return
		}
		if err := pipeline.Add(sink); err != nil {
			log.Error().Err(err).Msg("failed to add fakesink")
			return
		}
		sink.SyncStateWithParent()
		if ret := pad.Link(sink.GetStaticPad("sink")); ret != gst.PadLinkOK {
			log.Error().Str("pad", pad.GetName()).Str("ret", ret.String()).Msg("failed to link probe sink")
		}
	}); err != nil {
		return nil, err
	}

	defer func() {
		if err := pipeline.SetState(gst.StateNull); err != nil {
			log.Error().Err(err).Msg("failed to set the probe pipeline to the null state")
		}
	}()
	if err := pipeline.SetState(gst.StatePaused); err != nil {
		return nil, fmt.Errorf("%w: %w", transcode.ErrStateChange, err)
	}

	bus := pipeline.GetPipelineBus()
	deadline := time.Now().Add(o.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		msg := bus.TimedPopFiltered(
			gst.ClockTime(100*time.Millisecond),
			gst.MessageAsyncDone|gst.MessageError|gst.MessageEOS,
		)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			return nil, &transcode.ElementError{
				Element: msg.Source(),
				Message: gerr.Error(),
				Debug:   gerr.DebugString(),
			}
		case gst.MessageAsyncDone, gst.MessageEOS:
			if ok, dur := pipeline.QueryDuration(gst.FormatTime); ok && dur > 0 {
				res.Duration = time.Duration(dur)
			}
			mu.Lock()
			defer mu.Unlock()
			return res, nil
		}
	}
}
