package state

import (
	"context"

	"github.com/Darkness4/gst-transcode/telemetry/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// setStateMetrics demuxes the state to the metrics.
func setStateMetrics(
	ctx context.Context,
	job string,
	state TranscodeState,
	labels map[string]string,
) {
	attrs := make([]attribute.KeyValue, 0, len(labels)+1)
	attrs = append(attrs, attribute.String("job", job))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	m := metrics.Jobs.State
	m.Record(
		ctx,
		1,
		metric.WithAttributes(append(attrs, attribute.String("state", state.String()))...),
	)
	// Zero the other states so that only one series is set per job.
	for i := TranscodeStateUnspecified; i <= TranscodeStateCanceled; i++ {
		if i != state {
			m.Record(
				ctx,
				0,
				metric.WithAttributes(append(attrs, attribute.String("state", i.String()))...),
			)
		}
	}
}
