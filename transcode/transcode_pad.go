package transcode

import (
	"context"
	"strings"
	"sync"

	"github.com/Darkness4/gst-transcode/telemetry/metrics"
	"github.com/go-gst/go-gst/gst"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MediaKind is the kind of raw media carried by a pad.
type MediaKind int

const (
	// MediaUnknown is any media the pipeline does not transcode.
	MediaUnknown MediaKind = iota
	// MediaVideo is raw video.
	MediaVideo
	// MediaAudio is raw audio.
	MediaAudio
)

func (k MediaKind) String() string {
	switch k {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	}
	return "unknown"
}

const (
	rawVideoPrefix = "video/x-raw"
	rawAudioPrefix = "audio/x-raw"
)

// ClassifyCaps returns the media kind of a caps structure name.
func ClassifyCaps(name string) MediaKind {
	switch {
	case strings.HasPrefix(name, rawVideoPrefix):
		return MediaVideo
	case strings.HasPrefix(name, rawAudioPrefix):
		return MediaAudio
	}
	return MediaUnknown
}

type routeResult int

const (
	routeIgnore routeResult = iota
	routeAlreadyLinked
	routeLink
)

// route decides what to do with a new pad whose caps are named capsName.
func route(capsName string, isLinked func(MediaKind) bool) (MediaKind, routeResult) {
	kind := ClassifyCaps(capsName)
	if kind == MediaUnknown {
		return kind, routeIgnore
	}
	if isLinked(kind) {
		return kind, routeAlreadyLinked
	}
	return kind, routeLink
}

// padLinker links the dynamic pads of the source to the sink pad of the
// first element of the matching branch.
type padLinker struct {
	ctx     context.Context
	log     zerolog.Logger
	targets map[MediaKind]*gst.Pad

	mu sync.Mutex
}

func newPadLinker(ctx context.Context, log zerolog.Logger, video, audio *gst.Pad) *padLinker {
	return &padLinker{
		ctx: ctx,
		log: log,
		targets: map[MediaKind]*gst.Pad{
			MediaVideo: video,
			MediaAudio: audio,
		},
	}
}

func (l *padLinker) isLinked(kind MediaKind) bool {
	target, ok := l.targets[kind]
	return !ok || target.IsLinked()
}

// OnPadAdded is connected to the "pad-added" signal of the source.
func (l *padLinker) OnPadAdded(src *gst.Element, pad *gst.Pad) {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.log.With().Str("pad", pad.GetName()).Str("element", src.GetName()).Logger()
	log.Info().Msg("received new pad")

	capsName := padCapsName(pad)
	kind, res := route(capsName, l.isLinked)
	switch res {
	case routeIgnore:
		log.Debug().Str("type", capsName).Msg("pad is neither raw audio nor raw video, ignoring")
	case routeAlreadyLinked:
		log.Info().Str("type", capsName).Msg("we are already linked, ignoring")
	case routeLink:
		if ret := pad.Link(l.targets[kind]); ret != gst.PadLinkOK {
			log.Error().Str("type", capsName).Str("ret", ret.String()).Msg("type is known but link failed")
			metrics.Transcode.PadLinkErrors.Add(
				l.ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())),
			)
			return
		}
		log.Info().Str("type", capsName).Msg("link succeeded")
		metrics.Transcode.PadsLinked.Add(
			l.ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())),
		)
	}
}

// OnNoMorePads is connected to the "no-more-pads" signal of the source.
//
// Branches that never received a pad are sent an EOS so the muxer does not wait
// for them forever.
func (l *padLinker) OnNoMorePads(src *gst.Element) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, kind := range []MediaKind{MediaVideo, MediaAudio} {
		target := l.targets[kind]
		if target.IsLinked() {
			continue
		}
		l.log.Warn().
			Str("element", src.GetName()).
			Stringer("kind", kind).
			Msg("input has no stream for this branch, closing it")
		if !target.SendEvent(gst.NewEOSEvent()) {
			l.log.Error().Stringer("kind", kind).Msg("failed to close unused branch")
		}
	}
}

func padCapsName(pad *gst.Pad) string {
	caps := pad.GetCurrentCaps()
	if caps == nil {
		caps = pad.QueryCaps(nil)
	}
	if caps == nil || caps.GetSize() == 0 {
		return ""
	}
	return caps.GetStructureAt(0).Name()
}
