package notify

import (
	"context"
	"strings"
	"text/template"

	"github.com/Darkness4/gst-transcode/utils/ptr"
)

// NotificationFormats is a collection of formats for notifications.
type NotificationFormats struct {
	ConfigReloaded NotificationFormat `yaml:"configReloaded,omitempty"`
	Panicked       NotificationFormat `yaml:"panicked,omitempty"`
	Transcoding    NotificationFormat `yaml:"transcoding,omitempty"`
	Finished       NotificationFormat `yaml:"finished,omitempty"`
	Skipped        NotificationFormat `yaml:"skipped,omitempty"`
	Error          NotificationFormat `yaml:"error,omitempty"`
	Canceled       NotificationFormat `yaml:"canceled,omitempty"`
}

// NotificationFormat is a format for a notification.
type NotificationFormat struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Title    string `yaml:"title,omitempty"`
	Message  string `yaml:"message,omitempty"`
	Priority int    `yaml:"priority,omitempty"`
}

// NotificationTemplate is a template for a notification.
type NotificationTemplate struct {
	TitleTemplate   *template.Template
	MessageTemplate *template.Template
}

// DefaultNotificationFormats is the default notification formats.
var DefaultNotificationFormats = NotificationFormats{
	ConfigReloaded: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "config reloaded",
		Priority: 10,
	},
	Panicked: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "panicked",
		Message:  "{{ .Capture }}",
		Priority: 10,
	},
	Transcoding: NotificationFormat{
		Enabled:  ptr.Ref(false),
		Title:    "transcoding {{ .Job }}",
		Message:  "{{ .Input }} -> {{ .Output }}",
		Priority: 5,
	},
	Finished: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "{{ .Job }} finished",
		Message:  "{{ .Output }}",
		Priority: 7,
	},
	Skipped: NotificationFormat{
		Enabled: ptr.Ref(false),
		Title:   "{{ .Job }} skipped",
		Message: "{{ .Output }} already exists",
	},
	Error: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "transcode of {{ .Job }} failed",
		Message:  "{{ .Error }}",
		Priority: 10,
	},
	Canceled: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "transcode of {{ .Job }} canceled",
		Priority: 10,
	},
}

func (old *NotificationFormat) applyNotificationFormatDefault(
	newFormat NotificationFormat,
) {
	if newFormat.Enabled != nil {
		old.Enabled = newFormat.Enabled
	}
	if newFormat.Title != "" {
		old.Title = newFormat.Title
	}
	if newFormat.Message != "" {
		old.Message = newFormat.Message
	}
	if newFormat.Priority != 0 {
		old.Priority = newFormat.Priority
	}
}

func applyNotificationFormatsDefault(newFormat NotificationFormats) NotificationFormats {
	formats := DefaultNotificationFormats
	formats.ConfigReloaded.applyNotificationFormatDefault(newFormat.ConfigReloaded)
	formats.Panicked.applyNotificationFormatDefault(newFormat.Panicked)
	formats.Transcoding.applyNotificationFormatDefault(newFormat.Transcoding)
	formats.Finished.applyNotificationFormatDefault(newFormat.Finished)
	formats.Skipped.applyNotificationFormatDefault(newFormat.Skipped)
	formats.Error.applyNotificationFormatDefault(newFormat.Error)
	formats.Canceled.applyNotificationFormatDefault(newFormat.Canceled)
	return formats
}

func initializeTemplate(name string, format NotificationFormat) (NotificationTemplate, error) {
	title, err := template.New(name).Parse(format.Title)
	if err != nil {
		return NotificationTemplate{}, err
	}
	message, err := template.New(name).Parse(format.Message)
	if err != nil {
		return NotificationTemplate{}, err
	}
	return NotificationTemplate{
		TitleTemplate:   title,
		MessageTemplate: message,
	}, nil
}

// JobInfo is passed to the job notification templates.
type JobInfo struct {
	Job    string
	Input  string
	Output string
	Labels map[string]string
	Error  error
}

type entry struct {
	format   NotificationFormat
	template NotificationTemplate
}

// FormatedNotifier is a notifier that formats the notifications.
type FormatedNotifier struct {
	BaseNotifier

	configReloaded entry
	panicked       entry
	transcoding    entry
	finished       entry
	skipped        entry
	error          entry
	canceled       entry
}

// NewFormatedNotifier creates a new FormatedNotifier. Formats that are not set
// fall back to DefaultNotificationFormats.
func NewFormatedNotifier(
	notifier BaseNotifier,
	formats NotificationFormats,
) (*FormatedNotifier, error) {
	formats = applyNotificationFormatsDefault(formats)
	n := &FormatedNotifier{BaseNotifier: notifier}
	for _, e := range []struct {
		name   string
		format NotificationFormat
		dst    *entry
	}{
		{"ConfigReloaded", formats.ConfigReloaded, &n.configReloaded},
		{"Panicked", formats.Panicked, &n.panicked},
		{"Transcoding", formats.Transcoding, &n.transcoding},
		{"Finished", formats.Finished, &n.finished},
		{"Skipped", formats.Skipped, &n.skipped},
		{"Error", formats.Error, &n.error},
		{"Canceled", formats.Canceled, &n.canceled},
	} {
		tmpl, err := initializeTemplate(e.name, e.format)
		if err != nil {
			return nil, err
		}
		*e.dst = entry{format: e.format, template: tmpl}
	}
	return n, nil
}

func (n *FormatedNotifier) send(ctx context.Context, e entry, data any) error {
	if e.format.Enabled == nil || !*e.format.Enabled {
		return nil
	}
	var titleSB strings.Builder
	var messageSB strings.Builder
	if err := e.template.TitleTemplate.Execute(&titleSB, data); err != nil {
		return err
	}
	if err := e.template.MessageTemplate.Execute(&messageSB, data); err != nil {
		return err
	}
	return n.Notify(ctx, titleSB.String(), messageSB.String(), e.format.Priority)
}

// NotifyConfigReloaded sends a notification that the config was reloaded.
func (n *FormatedNotifier) NotifyConfigReloaded(ctx context.Context) error {
	return n.send(ctx, n.configReloaded, struct{}{})
}

// NotifyPanicked sends a notification that the program panicked.
func (n *FormatedNotifier) NotifyPanicked(ctx context.Context, capture any) error {
	return n.send(ctx, n.panicked, struct{ Capture any }{Capture: capture})
}

// NotifyTranscoding sends a notification that a job started.
func (n *FormatedNotifier) NotifyTranscoding(ctx context.Context, info JobInfo) error {
	return n.send(ctx, n.transcoding, info)
}

// NotifyFinished sends a notification that a job wrote its output.
func (n *FormatedNotifier) NotifyFinished(ctx context.Context, info JobInfo) error {
	return n.send(ctx, n.finished, info)
}

// NotifySkipped sends a notification that a job was skipped.
func (n *FormatedNotifier) NotifySkipped(ctx context.Context, info JobInfo) error {
	return n.send(ctx, n.skipped, info)
}

// NotifyError sends a notification that a job failed.
func (n *FormatedNotifier) NotifyError(ctx context.Context, info JobInfo) error {
	return n.send(ctx, n.error, info)
}

// NotifyCanceled sends a notification that a job was canceled.
func (n *FormatedNotifier) NotifyCanceled(ctx context.Context, info JobInfo) error {
	return n.send(ctx, n.canceled, info)
}
