package transcode

import (
	"context"
	"fmt"
	"time"

	"github.com/Darkness4/gst-transcode/state"
	"github.com/Darkness4/gst-transcode/telemetry/metrics"
	"github.com/go-gst/go-gst/gst"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const busPollInterval = 100 * time.Millisecond

type busEventKind int

const (
	busEventOther busEventKind = iota
	busEventError
	busEventEOS
	busEventStateChanged
)

// busEvent is the part of a bus message the loop cares about.
type busEvent struct {
	kind         busEventKind
	typeName     string
	source       string
	fromPipeline bool

	// Error
	message string
	debug   string

	// State changed
	oldState string
	newState string
}

func eventFromMessage(msg *gst.Message, pipelineName string) busEvent {
	ev := busEvent{
		typeName:     msg.Type().String(),
		source:       msg.Source(),
		fromPipeline: msg.Source() == pipelineName,
	}
	switch msg.Type() {
	case gst.MessageError:
		ev.kind = busEventError
		gerr := msg.ParseError()
		ev.message = gerr.Error()
		ev.debug = gerr.DebugString()
	case gst.MessageEOS:
		ev.kind = busEventEOS
	case gst.MessageStateChanged:
		ev.kind = busEventStateChanged
		oldState, newState := msg.ParseStateChanged()
		ev.oldState = oldState.String()
		ev.newState = newState.String()
	}
	return ev
}

// busHandler reacts to bus events. It holds no reference to GStreamer objects.
type busHandler struct {
	ctx context.Context
	log zerolog.Logger
	job string
}

// handle returns true when the loop must terminate, with the error to return.
func (h *busHandler) handle(ev busEvent) (bool, error) {
	switch ev.kind {
	case busEventError:
		debug := ev.debug
		if debug == "" {
			debug = "none"
		}
		h.log.Error().
			Str("element", ev.source).
			Str("debug", debug).
			Msg(ev.message)
		return true, &ElementError{
			Element: ev.source,
			Message: ev.message,
			Debug:   ev.debug,
		}
	case busEventEOS:
		h.log.Info().Msg("end-of-stream reached")
		return true, nil
	case busEventStateChanged:
		// Only the pipeline state is of interest.
		if !ev.fromPipeline {
			return false, nil
		}
		h.log.Info().
			Str("old", ev.oldState).
			Str("new", ev.newState).
			Msg("pipeline state changed")
		metrics.Transcode.PipelineStateChanges.Add(
			h.ctx,
			1,
			metric.WithAttributes(attribute.String("state", ev.newState)),
		)
		if h.job != "" {
			state.DefaultState.SetJobExtra(h.job, "pipelineState", ev.newState)
		}
		return false, nil
	default:
		h.log.Warn().Str("type", ev.typeName).Str("element", ev.source).Msg("unexpected message received")
		return false, nil
	}
}

// runBus pops messages from the pipeline bus until an error, an EOS, or the end
// of the cancellation grace period.
func (t *transcoder) runBus(ctx context.Context) error {
	bus := t.pipeline.GetPipelineBus()
	handler := &busHandler{ctx: ctx, log: t.log, job: t.job}
	filter := gst.MessageStateChanged | gst.MessageError | gst.MessageEOS

	var progress <-chan time.Time
	if t.params.ProgressInterval > 0 {
		ticker := time.NewTicker(t.params.ProgressInterval)
		defer ticker.Stop()
		progress = ticker.C
	}

	var deadline <-chan time.Time
	canceled := false
	for {
		select {
		case <-deadline:
			t.log.Warn().Msg("no end-of-stream after cancellation, aborting")
			return fmt.Errorf("interrupted before end-of-stream: %w", ctx.Err())
		case <-progress:
			t.reportProgress(ctx)
		default:
		}
		if !canceled && ctx.Err() != nil {
			canceled = true
			t.log.Info().Msg("interrupted, sending end-of-stream to finalize output")
			if !t.pipeline.SendEvent(gst.NewEOSEvent()) {
				t.log.Warn().Msg("pipeline rejected end-of-stream")
			}
			timer := time.NewTimer(t.params.EOSTimeout)
			defer timer.Stop()
			deadline = timer.C
		}

		msg := bus.TimedPopFiltered(gst.ClockTime(busPollInterval), filter)
		if msg == nil {
			continue
		}
		done, err := handler.handle(eventFromMessage(msg, t.pipeline.GetName()))
		if !done {
			continue
		}
		if err == nil && canceled {
			return ctx.Err()
		}
		return err
	}
}

func (t *transcoder) reportProgress(ctx context.Context) {
	okPos, pos := t.pipeline.QueryPosition(gst.FormatTime)
	okDur, dur := t.pipeline.QueryDuration(gst.FormatTime)
	if !okPos {
		return
	}
	ev := t.log.Info().Dur("position", time.Duration(pos))
	if okDur && dur > 0 {
		percent := progressPercent(pos, dur)
		ev = ev.Dur("duration", time.Duration(dur)).Float64("percent", percent)
		metrics.Transcode.Progress.Record(ctx, percent)
		if t.job != "" {
			state.DefaultState.SetJobExtra(t.job, "progress", percent)
		}
	}
	ev.Msg("progress")
}

func progressPercent(pos, dur int64) float64 {
	if dur <= 0 || pos < 0 {
		return 0
	}
	p := float64(pos) / float64(dur) * 100
	if p > 100 {
		return 100
	}
	return p
}
