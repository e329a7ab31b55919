// Package state keeps track of the transcode jobs for debugging.
package state

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"
	"time"
)

const maxErrors = 20

// State represents the state of the program.
type State struct {
	Jobs map[string]*JobState `json:"jobs"`

	mu sync.RWMutex
}

// JobState represents the state of a job.
type JobState struct {
	State  TranscodeState    `json:"state"`
	Input  string            `json:"input,omitempty"`
	Output string            `json:"output,omitempty"`
	Extra  map[string]any    `json:"extra,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
	Errors []JobError        `json:"errors_log"`
}

// JobError represents an error during a transcode.
type JobError struct {
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
}

// TranscodeState represents the state of a transcode.
type TranscodeState int

const (
	// TranscodeStateUnspecified is used when the state is unspecified.
	TranscodeStateUnspecified TranscodeState = iota
	// TranscodeStateQueued is used when the job waits for a free slot.
	TranscodeStateQueued
	// TranscodeStateTranscoding is used while the pipeline runs.
	TranscodeStateTranscoding
	// TranscodeStateFinished is used when the output has been written.
	TranscodeStateFinished
	// TranscodeStateSkipped is used when the output already exists.
	TranscodeStateSkipped
	// TranscodeStateFailed is used when the job gave up.
	TranscodeStateFailed
	// TranscodeStateCanceled is used when the job was interrupted.
	TranscodeStateCanceled
)

// String returns a string representation of a TranscodeState.
func (d TranscodeState) String() string {
	switch d {
	case TranscodeStateUnspecified:
		return "UNSPECIFIED"
	case TranscodeStateQueued:
		return "QUEUED"
	case TranscodeStateTranscoding:
		return "TRANSCODING"
	case TranscodeStateFinished:
		return "FINISHED"
	case TranscodeStateSkipped:
		return "SKIPPED"
	case TranscodeStateFailed:
		return "FAILED"
	case TranscodeStateCanceled:
		return "CANCELED"
	}
	return "UNSPECIFIED"
}

// TranscodeStateFromString returns a TranscodeState from a string.
func TranscodeStateFromString(s string) TranscodeState {
	switch s {
	default:
		return TranscodeStateUnspecified
	case "QUEUED":
		return TranscodeStateQueued
	case "TRANSCODING":
		return TranscodeStateTranscoding
	case "FINISHED":
		return TranscodeStateFinished
	case "SKIPPED":
		return TranscodeStateSkipped
	case "FAILED":
		return TranscodeStateFailed
	case "CANCELED":
		return TranscodeStateCanceled
	}
}

// MarshalJSON marshals a TranscodeState into a string.
func (d TranscodeState) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON unmarshals a string into a TranscodeState.
func (d *TranscodeState) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	*d = TranscodeStateFromString(s)

	return nil
}

var (
	// DefaultState is the default state.
	DefaultState = State{
		Jobs: make(map[string]*JobState),
	}
)

// GetJobState returns the state of a job.
func (s *State) GetJobState(name string) TranscodeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.Jobs[name]; ok {
		return c.State
	}
	return TranscodeStateUnspecified
}

type setJobStateOptions struct {
	labels map[string]string
	input  string
	output string
}

// SetJobStateOptions represents options for SetJobState.
type SetJobStateOptions func(*setJobStateOptions)

// WithLabels sets labels for a job.
func WithLabels(labels map[string]string) SetJobStateOptions {
	return func(o *setJobStateOptions) {
		o.labels = labels
	}
}

// WithFiles sets the input and output of a job.
func WithFiles(input, output string) SetJobStateOptions {
	return func(o *setJobStateOptions) {
		o.input = input
		o.output = output
	}
}

func (s *State) job(name string) *JobState {
	if s.Jobs == nil {
		s.Jobs = make(map[string]*JobState)
	}
	if _, ok := s.Jobs[name]; !ok {
		s.Jobs[name] = &JobState{
			Errors: make([]JobError, 0),
		}
	}
	return s.Jobs[name]
}

// SetJobState sets the state of a job. The extra values are reset.
func (s *State) SetJobState(
	name string,
	state TranscodeState,
	opts ...SetJobStateOptions,
) {
	o := &setJobStateOptions{}
	for _, opt := range opts {
		opt(o)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.job(name)
	j.State = state
	j.Extra = nil
	if o.labels != nil {
		j.Labels = o.labels
	}
	if o.input != "" {
		j.Input = o.input
	}
	if o.output != "" {
		j.Output = o.output
	}
	setStateMetrics(context.Background(), name, state, j.Labels)
}

// SetJobExtra sets an extra value on a job.
func (s *State) SetJobExtra(name string, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.job(name)
	if j.Extra == nil {
		j.Extra = make(map[string]any)
	}
	j.Extra[key] = value
}

// SetJobError appends an error to a job. Only the last errors are kept.
func (s *State) SetJobError(name string, err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.job(name)
	j.Errors = append(j.Errors, JobError{
		Timestamp: time.Now().UTC().String(),
		Error:     err.Error(),
	})
	if len(j.Errors) > maxErrors {
		j.Errors = j.Errors[len(j.Errors)-maxErrors:]
	}
}

// RemoveJob forgets a job.
func (s *State) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Jobs, name)
}

// ReadState returns a copy of the current state.
func (s *State) ReadState() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &State{Jobs: make(map[string]*JobState, len(s.Jobs))}
	for name, j := range s.Jobs {
		out.Jobs[name] = &JobState{
			State:  j.State,
			Input:  j.Input,
			Output: j.Output,
			Extra:  maps.Clone(j.Extra),
			Labels: maps.Clone(j.Labels),
			Errors: slices.Clone(j.Errors),
		}
	}
	return out
}
