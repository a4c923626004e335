package common

import (
	"errors"
	"fmt"
)

type UserVisibleError struct {
	HttpCode int
	Message  string
}

func (e *UserVisibleError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.HttpCode, e.Message)
}

func NewUserVisibleError(httpCode int, message string) *UserVisibleError {
	return &UserVisibleError{
		HttpCode: httpCode,
		Message:  message,
	}
}

// MessageOf returns the text that should be shown to the user for err,
// or fallback when err carries nothing presentable.
func MessageOf(err error, fallback string) string {
	var uve *UserVisibleError
	if errors.As(err, &uve) && uve.Message != "" {
		return uve.Message
	}
	return fallback
}
