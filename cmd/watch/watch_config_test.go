package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Darkness4/gst-transcode/cmd/watch"
	"github.com/stretchr/testify/require"
)

const oneJob = `jobs:
  episode-1:
    input: https://example.com/episode-1.mp4
    output: '/tmp/{{ .Name }}.{{ .Ext }}'
    params:
      labels:
        show: Komae
`

const twoJobs = oneJob + `  episode-2:
    input: https://example.com/episode-2.mp4
    output: '/tmp/{{ .Name }}.{{ .Ext }}'
`

func TestConfigReloaderTwoConfigs(t *testing.T) {
	// Create a new parent context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create a temporary config file and write some data to it
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configFile, []byte(oneJob), 0o644)
	require.NoError(t, err)

	// Create a config channel and start observing the config file
	configChan := make(chan *watch.Config)
	go watch.ObserveConfig(ctx, configFile, configChan)

	handleConfigCallCount := 0
	handleConfigCalls := make([]*watch.Config, 2)
	doneChan := make(chan struct{})
	handleConfigMock := func(ctx context.Context, cfg *watch.Config) {
		handleConfigCalls[handleConfigCallCount] = cfg
		handleConfigCallCount++
		select {
		case doneChan <- struct{}{}:
			return
		case <-ctx.Done():
			return
		}
	}

	// Launch the configReloader function in a separate goroutine
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := watch.ConfigReloader(ctx, configChan, handleConfigMock)
		require.Equal(t, context.Canceled, err)
	}()

	// Wait for the handleConfig call to complete
	<-doneChan

	// Write a new config file with different data
	time.Sleep(100 * time.Millisecond)
	err = os.WriteFile(configFile, []byte(twoJobs), 0o644)
	require.NoError(t, err)

	// Wait for the second handleConfig call to complete
	<-doneChan

	// Check that handleConfig was called twice with the correct configs
	require.Equal(t, 2, handleConfigCallCount)
	require.Len(t, handleConfigCalls[0].Jobs, 1)
	require.Len(t, handleConfigCalls[1].Jobs, 2)
	require.Equal(t, "Komae", handleConfigCalls[1].Jobs["episode-1"].Params.Labels["show"])

	// Cancel the parent context to stop the configReloader function
	cancel()

	// Wait for the configReloader function to exit
	wg.Wait()
}

func TestConfigReloaderCancellation(t *testing.T) {
	// Create a new parent context
	ctx, cancel := context.WithCancel(context.Background())

	// Create a temporary config file and write some data to it
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configFile, []byte(oneJob), 0o644)
	require.NoError(t, err)

	// Create a config channel and start observing the config file
	configChan := make(chan *watch.Config)
	go watch.ObserveConfig(ctx, configFile, configChan)

	handleConfigCallCount := 0
	handleConfigCalls := make([]*watch.Config, 2)
	readyChan := make(chan struct{})
	doneChan := make(chan struct{})
	handleConfigMock := func(ctx context.Context, cfg *watch.Config) {
		handleConfigCalls[handleConfigCallCount] = cfg
		handleConfigCallCount++
		readyChan <- struct{}{}
		<-ctx.Done()
		doneChan <- struct{}{}
	}

	// Launch the configReloader function in a separate goroutine
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := watch.ConfigReloader(ctx, configChan, handleConfigMock)
		require.Equal(t, context.Canceled, err)
	}()

	<-readyChan

	// Cancel the parent context to stop the configReloader function
	cancel()

	// Wait for the handleConfig call to complete
	<-doneChan

	require.Equal(t, 1, handleConfigCallCount)
	require.Len(t, handleConfigCalls[0].Jobs, 1)

	// Wait for the configReloader function to exit
	wg.Wait()
}

func TestObserveConfigIgnoresInvalidConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(oneJob), 0o644))

	configChan := make(chan *watch.Config)
	go watch.ObserveConfig(ctx, configFile, configChan)

	cfg := <-configChan
	require.Len(t, cfg.Jobs, 1)
	require.Equal(t, 2, cfg.MaxConcurrentJobs)
	require.Equal(t, 3, cfg.MaxTries)

	// A job without output is rejected.
	require.NoError(t, os.WriteFile(configFile, []byte(`jobs:
  broken:
    input: https://example.com/a.mp4
`), 0o644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(configFile, []byte(twoJobs), 0o644))

	select {
	case cfg = <-configChan:
		require.Len(t, cfg.Jobs, 2)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for the new config")
	}
}
