// Package transcode provides a command for transcoding a single input.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Darkness4/gst-transcode/probe"
	"github.com/Darkness4/gst-transcode/transcode"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// Usage is printed when the arguments are wrong.
const Usage = "Usage: gst-transcode transcode input_url output_file"

var (
	params           = transcode.DefaultParams.Clone()
	videoProperties  cli.StringSlice
	audioProperties  cli.StringSlice
	muxerProperties  cli.StringSlice
	probeBeforeStart bool
)

// Flags returns the transcode flags.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "video-encoder",
			Value:       transcode.DefaultParams.VideoEncoder,
			Category:    "Encoding:",
			Usage:       "GStreamer element used to encode the video.",
			EnvVars:     []string{"VIDEO_ENCODER"},
			Destination: &params.VideoEncoder,
		},
		&cli.StringFlag{
			Name:        "audio-encoder",
			Value:       transcode.DefaultParams.AudioEncoder,
			Category:    "Encoding:",
			Usage:       "GStreamer element used to encode the audio.",
			EnvVars:     []string{"AUDIO_ENCODER"},
			Destination: &params.AudioEncoder,
		},
		&cli.StringFlag{
			Name:        "muxer",
			Value:       transcode.DefaultParams.Muxer,
			Category:    "Encoding:",
			Usage:       "GStreamer element used to multiplex the streams.",
			EnvVars:     []string{"MUXER"},
			Destination: &params.Muxer,
		},
		&cli.IntFlag{
			Name:        "audio-bitrate",
			Value:       transcode.DefaultParams.AudioBitrate,
			Category:    "Encoding:",
			Usage:       "Bitrate of the audio encoder in bit/s. 0 keeps the encoder default.",
			Destination: &params.AudioBitrate,
		},
		&cli.StringSliceFlag{
			Name:        "video-property",
			Category:    "Encoding:",
			Usage:       "Property of the video encoder, as key=value. Can be repeated.",
			Destination: &videoProperties,
		},
		&cli.StringSliceFlag{
			Name:        "audio-property",
			Category:    "Encoding:",
			Usage:       "Property of the audio encoder, as key=value. Can be repeated.",
			Destination: &audioProperties,
		},
		&cli.StringSliceFlag{
			Name:        "muxer-property",
			Category:    "Encoding:",
			Usage:       "Property of the muxer, as key=value. Can be repeated.",
			Destination: &muxerProperties,
		},
		&cli.DurationFlag{
			Name:        "progress-interval",
			Value:       5 * time.Second,
			Category:    "Pipeline:",
			Usage:       "Interval between progress reports. 0 disables them.",
			Destination: &params.ProgressInterval,
		},
		&cli.DurationFlag{
			Name:        "eos-timeout",
			Value:       transcode.DefaultParams.EOSTimeout,
			Category:    "Pipeline:",
			Usage:       "On interruption, how long to wait for the output to be finalized.",
			Destination: &params.EOSTimeout,
		},
		&cli.BoolFlag{
			Name:        "probe",
			Value:       false,
			Category:    "Pipeline:",
			Usage:       "Probe the input streams before transcoding.",
			Destination: &probeBeforeStart,
		},
	}
}

// Command is the command for transcoding a single input.
var Command = &cli.Command{
	Name:      "transcode",
	Usage:     "Transcode an input into a file.",
	ArgsUsage: "input_url output_file",
	Flags:     Flags(),
	Action:    NewAction(Usage),
}

// NewAction returns an action transcoding its two arguments. usage is printed
// when the arguments are wrong.
func NewAction(usage string) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		return run(cCtx, usage)
	}
}

func run(cCtx *cli.Context, usage string) error {
	ctx, cancel := context.WithCancel(cCtx.Context)
	defer cancel()

	// Trap cleanup
	cleanChan := make(chan os.Signal, 1)
	signal.Notify(cleanChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(cleanChan)
	go func() {
		select {
		case <-cleanChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if cCtx.NArg() != 2 {
		fmt.Fprintln(cCtx.App.ErrWriter, usage)
		return cli.Exit("expected exactly two arguments", 1)
	}
	input, output := cCtx.Args().Get(0), cCtx.Args().Get(1)

	uri, err := transcode.NormalizeURI(input)
	if err != nil {
		return err
	}
	if path, ok := transcode.LocalPath(uri); ok {
		if err := probe.CheckLocalFile(path); err != nil {
			log.Error().Err(err).Str("input", path).Msg("invalid input")
			return err
		}
	}

	p := params.Clone()
	if p.VideoProperties, err = transcode.ParseProperties(videoProperties.Value()); err != nil {
		return err
	}
	if p.AudioProperties, err = transcode.ParseProperties(audioProperties.Value()); err != nil {
		return err
	}
	if p.MuxerProperties, err = transcode.ParseProperties(muxerProperties.Value()); err != nil {
		return err
	}

	if probeBeforeStart {
		res, err := probe.Do(ctx, uri)
		if err != nil {
			log.Error().Err(err).Str("input", uri).Msg("probe failed")
			return err
		}
		log.Info().Any("streams", res.Streams).Dur("duration", res.Duration).Msg("probed input")
		if !res.HasKind("video") && !res.HasKind("audio") {
			return fmt.Errorf("%w: no audio nor video stream in %s", probe.ErrNotMedia, uri)
		}
	}

	log.Info().Stringer("params", p).Str("input", uri).Str("output", output).Msg("transcoding")
	err = transcode.Do(ctx, uri, output, p)
	if errors.Is(err, context.Canceled) {
		log.Warn().Msg("transcode interrupted")
		return err
	}
	if err != nil {
		var elemErr *transcode.ElementError
		if errors.As(err, &elemErr) {
			log.Error().
				Str("element", elemErr.Element).
				Str("debug", elemErr.Debug).
				Msg("transcode failed")
		}
		return err
	}
	log.Info().Str("output", output).Msg("transcode finished")
	return nil
}
