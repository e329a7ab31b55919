// Package notify sends notifications about the jobs to the user.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Darkness4/gst-transcode/utils"
	"github.com/containrrr/shoutrrr"
	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"
)

const titlePrefix = "gst-transcode"

// BaseNotifier sends a raw notification.
type BaseNotifier interface {
	Notify(ctx context.Context, title string, message string, priority int) error
}

type dummyNotifier struct{}

func (*dummyNotifier) Notify(
	_ context.Context,
	_ string,
	_ string,
	_ int,
) error {
	return nil
}

// NewDummyNotifier creates a notifier that drops everything.
func NewDummyNotifier() BaseNotifier {
	return &dummyNotifier{}
}

type goNotifierMessage struct {
	Title    string `json:"title"`
	Priority int    `json:"priority"`
	Message  string `json:"message"`
}

type gotifyError struct {
	Error            string `json:"error"`
	ErrorCode        int    `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

type gotifyNotifier struct {
	*http.Client
	endpoint string
	token    string
}

// NewGotifyNotifier creates a notifier pushing to a Gotify server.
func NewGotifyNotifier(client *http.Client, endpoint string, token string) BaseNotifier {
	return &gotifyNotifier{
		Client:   client,
		endpoint: endpoint,
		token:    token,
	}
}

func (n *gotifyNotifier) Notify(
	ctx context.Context,
	title string,
	message string,
	priority int,
) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if message == "" {
		message = title
	}

	var bb bytes.Buffer
	if err := json.NewEncoder(&bb).Encode(goNotifierMessage{
		Title:    fmt.Sprintf("%s: %s", titlePrefix, title),
		Message:  message,
		Priority: priority,
	}); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint+"/message", &bb)
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", n.token))

	resp, err := n.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var gerr gotifyError
		if err := utils.JSONDecodeAndPrintOnError(resp.Body, &gerr); err != nil {
			return fmt.Errorf("notification failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("notification failed: %s: %s", gerr.Error, gerr.ErrorDescription)
	}

	return nil
}

type shoutrrrNotifier struct {
	*router.ServiceRouter
}

// NewShoutrrrNotifier creates a notifier for shoutrrr service URLs.
func NewShoutrrrNotifier(urls ...string) (BaseNotifier, error) {
	r, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, err
	}
	return &shoutrrrNotifier{r}, nil
}

func (n *shoutrrrNotifier) Notify(
	_ context.Context,
	title string,
	message string,
	priority int,
) error {
	if message == "" {
		message = title
	}
	errs := n.Send(message, &types.Params{
		"title":    fmt.Sprintf("%s: %s", titlePrefix, title),
		"priority": strconv.Itoa(priority),
	})
	return errors.Join(errs...)
}
