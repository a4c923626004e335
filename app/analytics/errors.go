package analytics

import (
	"errors"
	"fmt"
)

// TransportError means the engine could not be reached or answered with
// something that is not the expected JSON.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("analytics %s: transport failure: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ApplicationError is an error reported by the engine itself, either via an
// `error` field or `success: false`. Message may be empty.
type ApplicationError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("analytics %s: request failed with status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("analytics %s: %s", e.Endpoint, e.Message)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ApplicationMessage returns the engine supplied message, if any.
func ApplicationMessage(err error) (string, bool) {
	var ae *ApplicationError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message, true
	}
	return "", false
}
