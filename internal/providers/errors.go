package providers

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies provider failures for retry decisions.
type Kind string

// Error kinds
const (
	// KindConfiguration covers missing credentials or unknown providers. Never retried.
	KindConfiguration Kind = "configuration"
	// KindTransient covers network failures, 5xx and rate limits.
	KindTransient Kind = "transient"
	// KindTerminal covers rejected requests and tasks the vendor reported as failed.
	KindTerminal Kind = "terminal"
	// KindNotFound is a missing task, tolerated while a vendor catches up.
	KindNotFound Kind = "not_found"
	// KindData is a successful task without an extractable result.
	KindData Kind = "data"
)

// ErrPollTimeout is wrapped by poll loops that exhaust their attempt budget.
var ErrPollTimeout = errors.New("task did not complete before poll limit")

// Error is a classified provider failure.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (http %d): %s", e.Provider, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind exposes the classification.
func (e *Error) ErrorKind() string {
	return string(e.Kind)
}

// KindOf returns the classification of err. Unclassified errors are transient.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// IsNotFound reports whether err is a not-found provider error.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return err != nil && KindOf(err) == KindConfiguration
}

// ConfigError builds a configuration error for provider.
func ConfigError(provider, message string) error {
	return &Error{Kind: KindConfiguration, Provider: provider, Message: message}
}

// ClassifyStatus maps an HTTP status code to an error kind.
func ClassifyStatus(code int) Kind {
	switch {
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindConfiguration
	case code == http.StatusTooManyRequests || code >= 500:
		return KindTransient
	default:
		return KindTerminal
	}
}
