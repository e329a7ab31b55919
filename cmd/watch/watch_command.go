// Package watch provides a command for running transcode jobs from a config
// file, reloaded on change.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Darkness4/gst-transcode/notify"
	"github.com/Darkness4/gst-transcode/notify/notifier"
	"github.com/Darkness4/gst-transcode/state"
	_ "github.com/grafana/pyroscope-go/godeltaprof/http/pprof"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	configPath    string
	listenAddress string
)

// Command is the command for running transcode jobs.
var Command = &cli.Command{
	Name:  "watch",
	Usage: "Run the transcode jobs of a config file. The config is reloaded on change.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Required:    true,
			Usage:       `Config file path. (required)`,
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "listen-address",
			Aliases:     []string{"pprof.listen-address"},
			Value:       ":3000",
			Usage:       "Address of the status, metrics and pprof server.",
			Destination: &listenAddress,
		},
	},
	Action: func(cCtx *cli.Context) error {
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

		configChan := make(chan *Config)
		go ObserveConfig(ctx, configPath, configChan)

		server := &http.Server{
			Addr:              listenAddress,
			Handler:           otelhttp.NewHandler(newServeMux(), "watch"),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("listenAddress", listenAddress).Msg("listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("fail to serve http")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Err(err).Msg("failed to shutdown http server")
			}
		}()

		err := ConfigReloader(ctx, configChan, handleConfig)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func newServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", handleState)
	mux.Handle("/metrics", promhttp.Handler())
	// pprof and delta profiles register themselves on the default mux.
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	return mux
}

func handleState(w http.ResponseWriter, _ *http.Request) {
	s := state.DefaultState.ReadState()
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(b); err != nil {
		log.Err(err).Msg("failed to write state")
	}
}

func newNotifier(config *Config) (notify.BaseNotifier, error) {
	switch {
	case config.Notifier.Gotify.Enabled:
		log.Info().Msg("using gotify")
		return notify.NewGotifyNotifier(
			&http.Client{Timeout: time.Minute},
			config.Notifier.Gotify.Endpoint,
			config.Notifier.Gotify.Token,
		), nil
	case config.Notifier.Shoutrrr.Enabled:
		log.Info().Msg("using shoutrrr")
		if len(config.Notifier.Shoutrrr.URLs) == 0 {
			log.Warn().Msg("using shoutrrr but there is no URLs")
		}
		return notify.NewShoutrrrNotifier(config.Notifier.Shoutrrr.URLs...)
	default:
		log.Info().Msg("no notifier configured")
		return notify.NewDummyNotifier(), nil
	}
}

func handleConfig(ctx context.Context, config *Config) {
	base, err := newNotifier(config)
	if err != nil {
		log.Error().Err(err).Msg("failed to create notifier, notifications are disabled")
		base = notify.NewDummyNotifier()
	}
	formated, err := notify.NewFormatedNotifier(base, config.Notifier.Formats)
	if err != nil {
		log.Error().Err(err).Msg("invalid notification formats, using the defaults")
		formated, err = notify.NewFormatedNotifier(base, notify.DefaultNotificationFormats)
		if err != nil {
			log.Panic().Err(err).Msg("failed to create notifier")
		}
	}
	notifier.Set(formated)

	if err := notifier.NotifyConfigReloaded(ctx); err != nil {
		log.Err(err).Msg("notify failed")
	}
	defer func() {
		if err := recover(); err != nil {
			fmt.Println(err)
			if err := notifier.NotifyPanicked(context.Background(), err); err != nil {
				log.Err(err).Msg("notify failed")
			}
			os.Exit(1)
		}
	}()

	runJobs(ctx, config)
	log.Info().Int("jobs", len(config.Jobs)).Msg("all jobs done, waiting for a config change")
	<-ctx.Done()
}
