package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Darkness4/gst-transcode/notify"
	"github.com/Darkness4/gst-transcode/transcode"
	"github.com/Darkness4/gst-transcode/utils/channel"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	defaultMaxConcurrentJobs = 2
	defaultMaxTries          = 3
	configDebounce           = 500 * time.Millisecond
)

// Config is the configuration of the watch command.
type Config struct {
	DefaultParams     transcode.OptionalParams `yaml:"defaultParams"`
	Jobs              map[string]JobConfig     `yaml:"jobs"`
	MaxConcurrentJobs int                      `yaml:"maxConcurrentJobs"`
	MaxTries          int                      `yaml:"maxTries"`
	Notifier          NotifierConfig           `yaml:"notifier"`
}

// JobConfig describes one transcode.
type JobConfig struct {
	Input     string                   `yaml:"input"`
	Output    string                   `yaml:"output"`
	Params    transcode.OptionalParams `yaml:"params"`
	Overwrite bool                     `yaml:"overwrite"`
}

// NotifierConfig selects and configures the notifier.
type NotifierConfig struct {
	Gotify struct {
		Enabled  bool   `yaml:"enabled"`
		Endpoint string `yaml:"endpoint"`
		Token    string `yaml:"token"`
	} `yaml:"gotify"`
	Shoutrrr struct {
		Enabled bool     `yaml:"enabled"`
		URLs    []string `yaml:"urls"`
	} `yaml:"shoutrrr"`
	Formats notify.NotificationFormats `yaml:"formats"`
}

func loadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := &Config{}
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
	if c.MaxTries <= 0 {
		c.MaxTries = defaultMaxTries
	}
	var errs []error
	for name, job := range c.Jobs {
		if job.Input == "" {
			errs = append(errs, fmt.Errorf("job %s: missing input", name))
		}
		if job.Output == "" {
			errs = append(errs, fmt.Errorf("job %s: missing output", name))
		}
	}
	return errors.Join(errs...)
}

// ObserveConfig sends the config at filename to configChan, then again every
// time the file changes and is still valid.
//
// The parent directory is watched since editors often replace the file.
func ObserveConfig(ctx context.Context, filename string, configChan chan<- *Config) {
	send := func() bool {
		config, err := loadConfig(filename)
		if err != nil {
			log.Error().Err(err).Str("file", filename).Msg("failed to load config")
			return true
		}
		select {
		case configChan <- config:
			return true
		case <-ctx.Done():
			return false
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error().Err(err).Msg("failed to create file watcher")
		return
	}
	defer watcher.Close()

	abs, err := filepath.Abs(filename)
	if err != nil {
		log.Error().Err(err).Str("file", filename).Msg("failed to resolve config path")
		return
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		log.Error().Err(err).Str("file", filename).Msg("failed to watch config")
		return
	}

	changes := make(chan struct{})
	debounced := channel.Debounce(ctx.Done(), changes, configDebounce)
	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs ||
					!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				log.Debug().Str("op", event.Op.String()).Msg("config file change detected")
				select {
				case changes <- struct{}{}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()

	if !send() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-debounced:
			if !ok {
				return
			}
			log.Info().Msg("new config detected")
			if !send() {
				return
			}
		}
	}
}

// ConfigReloader runs handleConfig for every config received. The previous
// handler is canceled and awaited before the next one starts.
func ConfigReloader(
	ctx context.Context,
	configChan <-chan *Config,
	handleConfig func(ctx context.Context, config *Config),
) error {
	var configContext context.Context
	var configCancel context.CancelFunc
	// Only one handleConfig runs at a time.
	doneChan := make(chan struct{})

	for {
		select {
		case newConfig := <-configChan:
			if configContext != nil && configCancel != nil {
				configCancel()
				select {
				case <-doneChan:
					log.Info().Msg("loading new config")
				case <-time.After(30 * time.Second):
					log.Fatal().Msg("couldn't load a new config because of a deadlock")
				}
			}
			configContext, configCancel = context.WithCancel(ctx)
			go func(ctx context.Context) {
				log.Info().Msg("loaded new config")
				handleConfig(ctx, newConfig)
				doneChan <- struct{}{}
			}(configContext)
		case <-ctx.Done():
			if configContext != nil && configCancel != nil {
				configCancel()
				select {
				case <-doneChan:
					log.Info().Msg("config reloader graceful exit")
				case <-time.After(30 * time.Second):
					log.Fatal().Msg("config reloader force fatal exit")
				}
			}
			return ctx.Err()
		}
	}
}
