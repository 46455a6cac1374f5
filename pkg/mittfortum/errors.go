package mittfortum

import (
	"errors"
	"fmt"
)

var (
	ErrAPI           = errors.New("mittfortum api error")
	ErrLogin         = errors.New("failed to log in to MittFortum")
	ErrConfiguration = errors.New("invalid configuration for MittFortum")
)

type InvalidResponseError struct {
	Reason string
	Err    error
}

func (e *InvalidResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid response: %s", e.Reason)
}

func (e *InvalidResponseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAPI, e.Err}
	}
	return []error{ErrAPI}
}

type UnexpectedStatusCodeError struct {
	StatusCode int
}

func (e *UnexpectedStatusCodeError) Error() string {
	return fmt.Sprintf("unexpected status code %d from API", e.StatusCode)
}

func (e *UnexpectedStatusCodeError) Unwrap() error {
	return ErrAPI
}

type LoginError struct {
	StatusCode int
	Err        error
}

func (e *LoginError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", ErrLogin, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%v: status %d", ErrLogin, e.StatusCode)
	default:
		return ErrLogin.Error()
	}
}

func (e *LoginError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrLogin, e.Err}
	}
	return []error{ErrLogin}
}

func configurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
