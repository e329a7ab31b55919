package watch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"text/template"
	"time"

	"github.com/Darkness4/gst-transcode/notify"
	"github.com/Darkness4/gst-transcode/notify/notifier"
	"github.com/Darkness4/gst-transcode/probe"
	"github.com/Darkness4/gst-transcode/state"
	"github.com/Darkness4/gst-transcode/telemetry/metrics"
	"github.com/Darkness4/gst-transcode/transcode"
	"github.com/Darkness4/gst-transcode/utils"
	"github.com/Darkness4/gst-transcode/utils/try"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// partSuffix is appended to the output while it is being written.
const partSuffix = ".part"

// transcodeFunc is replaced in tests.
var transcodeFunc = transcode.Do

var retryDelay = time.Second

// FormatOutput formats the output file name of a job.
func FormatOutput(
	outFormat string,
	name string,
	labels map[string]string,
	ext string,
	now time.Time,
) (string, error) {
	sanitized := make(map[string]string, len(labels))
	for k, v := range labels {
		sanitized[k] = utils.SanitizeFilename(v)
	}
	formatInfo := struct {
		Name   string
		Date   string
		Time   string
		Ext    string
		Labels map[string]string
	}{
		Name:   utils.SanitizeFilename(name),
		Date:   now.Format("2006-01-02"),
		Time:   now.Format("150405"),
		Ext:    ext,
		Labels: sanitized,
	}

	tmpl, err := template.New("gotpl").Option("missingkey=zero").Parse(outFormat)
	if err != nil {
		return "", err
	}

	var formatted bytes.Buffer
	if err = tmpl.Execute(&formatted, formatInfo); err != nil {
		return "", err
	}

	return formatted.String(), nil
}

// runJobs runs every job of the config, at most config.MaxConcurrentJobs at
// once. It returns when all the jobs are done.
func runJobs(ctx context.Context, config *Config) {
	params := transcode.DefaultParams.Clone()
	config.DefaultParams.Override(params)

	// Forget the jobs removed from the config.
	for name := range state.DefaultState.ReadState().Jobs {
		if _, ok := config.Jobs[name]; !ok {
			state.DefaultState.RemoveJob(name)
		}
	}

	names := make([]string, 0, len(config.Jobs))
	for name := range config.Jobs {
		names = append(names, name)
	}
	slices.Sort(names)

	var g errgroup.Group
	g.SetLimit(config.MaxConcurrentJobs)
	for _, name := range names {
		job := config.Jobs[name]
		jobParams := params.Clone()
		job.Params.Override(jobParams)

		state.DefaultState.SetJobState(
			name,
			state.TranscodeStateQueued,
			state.WithLabels(jobParams.Labels),
		)
		metrics.TimeStartRecordingDeferred(name)
		g.Go(func() error {
			metrics.TimeEndRecording(
				ctx,
				metrics.Jobs.QueueTime,
				name,
				metric.WithAttributes(attribute.String("job", name)),
			)
			if err := ctx.Err(); err != nil {
				state.DefaultState.SetJobState(name, state.TranscodeStateCanceled)
				return nil
			}
			if err := runJob(ctx, name, job, jobParams, config.MaxTries); err != nil {
				log.Error().Str("job", name).Err(err).Msg("job failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// runJob transcodes a single job, retrying on failures.
func runJob(
	ctx context.Context,
	name string,
	job JobConfig,
	params *transcode.Params,
	maxTries int,
) error {
	log := log.With().Str("job", name).Logger()

	uri, err := transcode.NormalizeURI(job.Input)
	if err != nil {
		return fail(name, notify.JobInfo{Job: name, Input: job.Input, Labels: params.Labels}, err)
	}
	output, err := FormatOutput(
		job.Output,
		name,
		params.Labels,
		transcode.Extension(params.Muxer),
		time.Now(),
	)
	if err != nil {
		return fail(name, notify.JobInfo{Job: name, Input: uri, Labels: params.Labels}, err)
	}
	info := notify.JobInfo{Job: name, Input: uri, Output: output, Labels: params.Labels}
	state.DefaultState.SetJobState(
		name,
		state.TranscodeStateQueued,
		state.WithFiles(uri, output),
	)

	if !job.Overwrite {
		if _, err := os.Stat(output); err == nil {
			log.Info().Str("output", output).Msg("output already exists, skipping")
			state.DefaultState.SetJobState(name, state.TranscodeStateSkipped)
			metrics.Jobs.Skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("job", name)))
			if err := notifier.NotifySkipped(context.Background(), info); err != nil {
				log.Err(err).Msg("notify failed")
			}
			return nil
		}
	}

	if path, ok := transcode.LocalPath(uri); ok {
		if err := probe.CheckLocalFile(path); err != nil {
			return fail(name, info, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fail(name, info, err)
	}

	state.DefaultState.SetJobState(name, state.TranscodeStateTranscoding)
	if err := notifier.NotifyTranscoding(ctx, info); err != nil {
		log.Err(err).Msg("notify failed")
	}

	part := output + partSuffix
	err = try.DoExponentialBackoff(
		ctx,
		maxTries,
		retryDelay,
		2,
		time.Minute,
		func(ctx context.Context, attempt int) error {
			log.Info().Int("try", attempt).Str("input", uri).Str("output", output).Msg("transcoding")
			err := transcodeFunc(ctx, uri, part, params, transcode.WithJob(name))
			if err == nil {
				return nil
			}
			state.DefaultState.SetJobError(name, err)
			if errors.Is(err, context.Canceled) ||
				errors.Is(err, transcode.ErrMissingElement) ||
				errors.Is(err, transcode.ErrLinkFailed) ||
				errors.Is(err, transcode.ErrUnknownProperty) {
				return try.Permanent(err)
			}
			return err
		},
	)
	if err == nil {
		err = os.Rename(part, output)
	}
	if err != nil {
		if rerr := os.Remove(part); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			log.Err(rerr).Str("file", part).Msg("failed to remove partial output")
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		log.Info().Msg("job canceled")
		state.DefaultState.SetJobState(name, state.TranscodeStateCanceled)
		if err := notifier.NotifyCanceled(context.Background(), info); err != nil {
			log.Err(err).Msg("notify failed")
		}
		return err
	case err != nil:
		return fail(name, info, err)
	}

	log.Info().Str("output", output).Msg("job finished")
	state.DefaultState.SetJobState(name, state.TranscodeStateFinished)
	if err := notifier.NotifyFinished(context.Background(), info); err != nil {
		log.Err(err).Msg("notify failed")
	}
	return nil
}

func fail(name string, info notify.JobInfo, err error) error {
	err = fmt.Errorf("job %s: %w", name, err)
	state.DefaultState.SetJobError(name, err)
	state.DefaultState.SetJobState(name, state.TranscodeStateFailed)
	info.Error = err
	if err := notifier.NotifyError(context.Background(), info); err != nil {
		log.Err(err).Str("job", name).Msg("notify failed")
	}
	return err
}
