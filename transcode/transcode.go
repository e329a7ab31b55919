// Package transcode decodes an input, re-encodes its video and audio streams and
// muxes them into a file, using a GStreamer pipeline.
package transcode

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Darkness4/gst-transcode/telemetry/metrics"
	"github.com/go-gst/go-gst/gst"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "transcode"

var initOnce sync.Once

// Init initializes GStreamer. It is safe to call it multiple times.
func Init() {
	initOnce.Do(func() {
		gst.Init(nil)
	})
}

// Option configures a transcode run.
type Option func(*options)

type options struct {
	job string
}

// WithJob attaches the run to a job of the state registry.
func WithJob(name string) Option {
	return func(o *options) {
		o.job = name
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type transcoder struct {
	params *Params
	log    zerolog.Logger
	job    string

	pipeline *gst.Pipeline
	elements map[string]*gst.Element
}

// Do transcodes the media at inputURI into the file output.
//
// It returns nil once the end of the stream has been written, an
// *ElementError if an element of the pipeline failed, or the context error if
// it was canceled. The pipeline is always set back to NULL.
func Do(ctx context.Context, inputURI string, output string, params *Params, opts ...Option) (err error) {
	o := applyOptions(opts)
	Init()

	attrs := metric.WithAttributes(
		attribute.String("video_encoder", params.VideoEncoder),
		attribute.String("audio_encoder", params.AudioEncoder),
		attribute.String("muxer", params.Muxer),
	)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "transcode.Do", trace.WithAttributes(
		attribute.String("input", inputURI),
		attribute.String("output", output),
	))
	defer span.End()
	metrics.Transcode.Runs.Add(ctx, 1, attrs)
	end := metrics.TimeStartRecording(ctx, metrics.Transcode.CompletionTime, time.Second, attrs)
	defer func() {
		end()
		if err != nil {
			metrics.Transcode.Errors.Add(ctx, 1, attrs)
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}
	}()

	t := &transcoder{
		params:   params,
		log:      log.With().Str("input", inputURI).Str("output", output).Logger(),
		job:      o.job,
		elements: make(map[string]*gst.Element),
	}

	endInit := metrics.TimeStartRecording(ctx, metrics.Transcode.InitTime, time.Second, attrs)
	if err := t.build(ctx, inputURI, output); err != nil {
		return err
	}
	defer t.stop()

	if err := t.pipeline.SetState(gst.StatePlaying); err != nil {
		t.log.Error().Err(err).Msg("unable to set the pipeline to the playing state")
		return fmt.Errorf("%w: %w", ErrStateChange, err)
	}
	endInit()
	t.log.Info().Msg("pipeline playing")

	return t.runBus(ctx)
}

func (t *transcoder) stop() {
	if err := t.pipeline.SetState(gst.StateNull); err != nil {
		t.log.Error().Err(err).Msg("failed to set the pipeline to the null state")
	}
}

// build creates, adds and links the static elements, and connects the dynamic
// pad handlers.
func (t *transcoder) build(ctx context.Context, inputURI string, output string) error {
	graph := NewGraph(t.params)
	if err := graph.Validate(); err != nil {
		return err
	}

	pipeline, err := gst.NewPipeline(PipelineName)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	t.pipeline = pipeline

	specs := graph.Elements()
	all := make([]*gst.Element, 0, len(specs))
	for _, es := range specs {
		elem, err := gst.NewElementWithName(es.Factory, es.Name)
		if err != nil || elem == nil {
			merr := &missingElementError{factory: es.Factory, cause: err}
			t.log.Error().Str("factory", es.Factory).Msg(merr.Error())
			return merr
		}
		t.elements[es.Name] = elem
		all = append(all, elem)
	}
	if err := pipeline.AddMany(all...); err != nil {
		return fmt.Errorf("failed to add elements to the pipeline: %w", err)
	}

	if err := t.linkChain(graph.Video, graph.Muxer); err != nil {
		return fmt.Errorf("video %w", err)
	}
	if err := t.linkChain(graph.Audio, graph.Muxer); err != nil {
		return fmt.Errorf("audio %w", err)
	}
	if err := t.elements[graph.Muxer.Name].Link(t.elements[graph.Sink.Name]); err != nil {
		t.log.Error().Err(err).Msg("final sink could not be linked")
		return fmt.Errorf("sink %w: %w", ErrLinkFailed, err)
	}

	if err := t.configure(inputURI, output); err != nil {
		return err
	}

	linker := newPadLinker(
		ctx,
		t.log,
		t.elements[graph.Video[0].Name].GetStaticPad("sink"),
		t.elements[graph.Audio[0].Name].GetStaticPad("sink"),
	)
	source := t.elements[graph.Source.Name]
	if _, err := source.Connect("pad-added", linker.OnPadAdded); err != nil {
		return fmt.Errorf("failed to connect pad-added: %w", err)
	}
	if _, err := source.Connect("no-more-pads", linker.OnNoMorePads); err != nil {
		return fmt.Errorf("failed to connect no-more-pads: %w", err)
	}
	return nil
}

func (t *transcoder) linkChain(chain []ElementSpec, muxer ElementSpec) error {
	elems := make([]*gst.Element, 0, len(chain)+1)
	for _, es := range chain {
		elems = append(elems, t.elements[es.Name])
	}
	elems = append(elems, t.elements[muxer.Name])
	if err := gst.ElementLinkMany(elems...); err != nil {
		t.log.Error().Err(err).Msg("elements could not be linked")
		return fmt.Errorf("%w: %w", ErrLinkFailed, err)
	}
	return nil
}

func (t *transcoder) configure(inputURI string, output string) error {
	if err := t.elements[SourceName].SetProperty("uri", inputURI); err != nil {
		return fmt.Errorf("failed to set input uri: %w", err)
	}
	if err := t.elements[SinkName].SetProperty("location", output); err != nil {
		return fmt.Errorf("failed to set output location: %w", err)
	}
	audioEncoder := t.elements[AudioEncoderName]
	if v, ok := bitrateArg(
		t.params.AudioEncoder,
		t.params.AudioBitrate,
		audioEncoder.FindProperty("bitrate") != nil,
	); ok {
		t.log.Debug().Str("bitrate", v).Msg("set audio bitrate")
		audioEncoder.SetArg("bitrate", v)
	} else if t.params.AudioBitrate > 0 {
		t.log.Warn().
			Str("factory", t.params.AudioEncoder).
			Msg("audio encoder has no bitrate property, ignoring the bitrate")
	}

	for _, target := range []struct {
		name    string
		factory string
		props   map[string]string
	}{
		{VideoEncoderName, t.params.VideoEncoder, t.params.VideoProperties},
		{AudioEncoderName, t.params.AudioEncoder, t.params.AudioProperties},
		{MuxerName, t.params.Muxer, t.params.MuxerProperties},
	} {
		elem := t.elements[target.name]
		if unknown := unknownProperties(target.props, func(k string) bool {
			return elem.FindProperty(k) != nil
		}); len(unknown) > 0 {
			return fmt.Errorf(
				"%w: %s (%s) has no property %s",
				ErrUnknownProperty,
				target.name,
				target.factory,
				strings.Join(unknown, ", "),
			)
		}
		for k, v := range target.props {
			t.log.Debug().Str("element", target.name).Str("property", k).Str("value", v).Msg("set property")
			elem.SetArg(k, v)
		}
	}
	return nil
}
