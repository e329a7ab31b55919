// Package metrics provides a way to record metrics.
package metrics

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/Darkness4/gst-transcode"

var (
	// Transcode metrics
	Transcode struct {
		// InitTime is the time taken to build and start a pipeline.
		InitTime metric.Float64Histogram
		// CompletionTime is the time taken to complete a transcode.
		CompletionTime metric.Float64Histogram
		// Errors is the number of failed transcodes.
		Errors metric.Int64Counter
		// Runs is the number of transcodes.
		Runs metric.Int64Counter
		// PadsLinked is the number of dynamic pads linked to a branch.
		PadsLinked metric.Int64Counter
		// PadLinkErrors is the number of dynamic pads that failed to link.
		PadLinkErrors metric.Int64Counter
		// PipelineStateChanges is the number of pipeline state transitions.
		PipelineStateChanges metric.Int64Counter
		// Progress is the last reported progress, in percent.
		Progress metric.Float64Gauge
	}

	// Jobs metrics
	Jobs struct {
		// State is the current state of a job.
		State metric.Int64Gauge
		// QueueTime is the time a job waited for a free slot.
		QueueTime metric.Float64Histogram
		// Skipped is the number of jobs skipped because their output exists.
		Skipped metric.Int64Counter
	}
)

func init() {
	InitMetrics(noop.NewMeterProvider())
}

// InitMetrics initializes the metrics. Must be called as soon as possible.
func InitMetrics(provider metric.MeterProvider) {
	meter := provider.Meter(meterName)

	var err error
	Transcode.InitTime, err = meter.Float64Histogram(
		"transcode.init.time",
		metric.WithDescription("Time taken to build and start a pipeline"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
	Transcode.CompletionTime, err = meter.Float64Histogram(
		"transcode.time_to_complete",
		metric.WithDescription("Time taken to complete a transcode"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
	Transcode.Errors, err = meter.Int64Counter(
		"transcode.errors",
		metric.WithDescription("Number of failed transcodes"),
	)
	if err != nil {
		panic(err)
	}
	Transcode.Runs, err = meter.Int64Counter(
		"transcode.runs",
		metric.WithDescription("Number of transcodes"),
	)
	if err != nil {
		panic(err)
	}
	Transcode.PadsLinked, err = meter.Int64Counter(
		"transcode.pads.linked",
		metric.WithDescription("Number of dynamic pads linked to a branch"),
	)
	if err != nil {
		panic(err)
	}
	Transcode.PadLinkErrors, err = meter.Int64Counter(
		"transcode.pads.link_errors",
		metric.WithDescription("Number of dynamic pads that failed to link"),
	)
	if err != nil {
		panic(err)
	}
	Transcode.PipelineStateChanges, err = meter.Int64Counter(
		"transcode.pipeline.state_changes",
		metric.WithDescription("Number of pipeline state transitions"),
	)
	if err != nil {
		panic(err)
	}
	Transcode.Progress, err = meter.Float64Gauge(
		"transcode.progress",
		metric.WithDescription("Last reported progress of a transcode"),
		metric.WithUnit("%"),
	)
	if err != nil {
		panic(err)
	}

	// Jobs
	Jobs.State, err = meter.Int64Gauge(
		"jobs.state",
		metric.WithDescription("Current state of a job"),
	)
	if err != nil {
		panic(err)
	}
	Jobs.QueueTime, err = meter.Float64Histogram(
		"jobs.queue.time",
		metric.WithDescription("Time a job waited for a free slot"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
	Jobs.Skipped, err = meter.Int64Counter(
		"jobs.skipped",
		metric.WithDescription("Number of jobs skipped because their output exists"),
	)
	if err != nil {
		panic(err)
	}
}
