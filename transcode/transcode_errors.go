package transcode

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingElement is returned when an element factory is not available.
	ErrMissingElement = errors.New("not all elements could be created")
	// ErrLinkFailed is returned when static elements could not be linked.
	ErrLinkFailed = errors.New("elements could not be linked")
	// ErrStateChange is returned when the pipeline refuses to start.
	ErrStateChange = errors.New("unable to set the pipeline to the playing state")
	// ErrUnknownProperty is returned when a configured property does not exist
	// on its element.
	ErrUnknownProperty = errors.New("unknown element property")
)

// ElementError is an error posted on the bus by an element of the pipeline.
type ElementError struct {
	Element string
	Message string
	Debug   string
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("error received from element %s: %s", e.Element, e.Message)
}

type missingElementError struct {
	factory string
	cause   error
}

func (e *missingElementError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrMissingElement, e.factory, PluginHint(e.factory))
}

func (e *missingElementError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrMissingElement}
	}
	return []error{ErrMissingElement, e.cause}
}
