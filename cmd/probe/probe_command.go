// Package probe provides a command for listing the streams of an input.
package probe

import (
	"errors"
	"fmt"
	"time"

	"github.com/Darkness4/gst-transcode/probe"
	"github.com/Darkness4/gst-transcode/transcode"
	"github.com/Darkness4/gst-transcode/utils"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var timeout time.Duration

// Command is the command for probing an input.
var Command = &cli.Command{
	Name:      "probe",
	Usage:     "List the streams of an input as JSON.",
	ArgsUsage: "input_url",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:        "timeout",
			Value:       30 * time.Second,
			Usage:       "Maximum time to wait for the input.",
			Destination: &timeout,
		},
	},
	Action: func(cCtx *cli.Context) error {
		input := cCtx.Args().Get(0)
		if input == "" {
			log.Error().Msg("arg[0] is empty")
			return errors.New("missing input")
		}

		uri, err := transcode.NormalizeURI(input)
		if err != nil {
			return err
		}
		if path, ok := transcode.LocalPath(uri); ok {
			mime, err := probe.DetectMIME(path)
			if err != nil {
				return err
			}
			log.Info().Str("mime", mime).Str("input", path).Msg("detected mime type")
		}

		res, err := probe.Do(cCtx.Context, uri, probe.WithTimeout(timeout))
		if err != nil {
			log.Error().Err(err).Str("input", uri).Msg("probe failed")
			return err
		}
		fmt.Fprint(cCtx.App.Writer, utils.MustJSONEncode(res))
		return nil
	},
}
