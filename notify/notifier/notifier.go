// Package notifier holds the notifier used by the jobs.
package notifier

import (
	"context"
	"sync"

	"github.com/Darkness4/gst-transcode/notify"
)

var (
	mu       sync.RWMutex
	instance = mustDefault()
)

func mustDefault() *notify.FormatedNotifier {
	n, err := notify.NewFormatedNotifier(
		notify.NewDummyNotifier(),
		notify.DefaultNotificationFormats,
	)
	if err != nil {
		panic(err)
	}
	return n
}

// Set replaces the notifier.
func Set(n *notify.FormatedNotifier) {
	mu.Lock()
	defer mu.Unlock()
	instance = n
}

func get() *notify.FormatedNotifier {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// NotifyConfigReloaded notifies the user that the configuration has been reloaded.
func NotifyConfigReloaded(ctx context.Context) error {
	return get().NotifyConfigReloaded(ctx)
}

// NotifyPanicked notifies the user that the program has panicked.
func NotifyPanicked(ctx context.Context, capture any) error {
	return get().NotifyPanicked(ctx, capture)
}

// NotifyTranscoding notifies the user that a job started.
func NotifyTranscoding(ctx context.Context, info notify.JobInfo) error {
	return get().NotifyTranscoding(ctx, info)
}

// NotifyFinished notifies the user that a job wrote its output.
func NotifyFinished(ctx context.Context, info notify.JobInfo) error {
	return get().NotifyFinished(ctx, info)
}

// NotifySkipped notifies the user that a job was skipped.
func NotifySkipped(ctx context.Context, info notify.JobInfo) error {
	return get().NotifySkipped(ctx, info)
}

// NotifyError notifies the user that a job failed.
func NotifyError(ctx context.Context, info notify.JobInfo) error {
	return get().NotifyError(ctx, info)
}

// NotifyCanceled notifies the user that a job was canceled.
func NotifyCanceled(ctx context.Context, info notify.JobInfo) error {
	return get().NotifyCanceled(ctx, info)
}
