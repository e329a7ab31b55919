package main

import (
	"context"
	"fmt"
	"os"
	"time"

	probecmd "github.com/Darkness4/gst-transcode/cmd/probe"
	transcodecmd "github.com/Darkness4/gst-transcode/cmd/transcode"
	"github.com/Darkness4/gst-transcode/cmd/watch"
	"github.com/Darkness4/gst-transcode/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var version = "dev"

const usage = "Usage: gst-transcode input_url output_file"

var (
	logLevel    string
	logJSON     bool
	otelStdout  bool
	otelCleanup func(context.Context) error
)

var app = &cli.App{
	Name:      "gst-transcode",
	Version:   version,
	Usage:     "Transcode media to H.264 and Opus with GStreamer.",
	ArgsUsage: "input_url output_file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Value:       "info",
			Usage:       "Log level (trace, debug, info, warn, error).",
			EnvVars:     []string{"LOG_LEVEL"},
			Destination: &logLevel,
		},
		&cli.BoolFlag{
			Name:        "log-json",
			Value:       false,
			Usage:       "Log as JSON instead of the console format.",
			EnvVars:     []string{"LOG_JSON"},
			Destination: &logJSON,
		},
		&cli.BoolFlag{
			Name:        "otel.stdout",
			Value:       false,
			Usage:       "Export traces and metrics to stdout.",
			Destination: &otelStdout,
		},
	},
	Suggest: true,
	Before: func(cCtx *cli.Context) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		zerolog.SetGlobalLevel(level)
		if !logJSON {
			log.Logger = log.Output(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.RFC3339,
			})
		}

		opts := []telemetry.Option{
			telemetry.WithService("gst-transcode", version),
			telemetry.WithPrometheus(),
		}
		if otelStdout {
			opts = append(opts, telemetry.WithStdout())
		}
		if telemetry.OTLPEnabled() {
			opts = append(opts, telemetry.WithOTLP())
		}
		otelCleanup, err = telemetry.SetupOTELSDK(cCtx.Context, opts...)
		if err != nil {
			return fmt.Errorf("failed to setup telemetry: %w", err)
		}
		return nil
	},
	After: func(cCtx *cli.Context) error {
		if otelCleanup == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return otelCleanup(ctx)
	},
	Commands: []*cli.Command{
		transcodecmd.Command,
		probecmd.Command,
		watch.Command,
	},
	// Encoding flags belong to the transcode command; the root only accepts
	// the two arguments and runs with the defaults.
	Action: transcodecmd.NewAction(usage),
}

func main() {
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("app crashed")
	}
}
