// Package faults defines the error taxonomy shared by the pipeline steps.
//
// Every error that crosses a component boundary wraps exactly one of the
// sentinel kinds below so callers can branch with errors.Is.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable marks network or upstream API failures. Retryable.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrDataIncomplete marks a provider response with gaps (e.g. a short indicator window).
	ErrDataIncomplete = errors.New("data incomplete")
	// ErrConfiguration marks missing credentials, calendars or invalid settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrConsistencyViolation marks a write that would silently change persisted data.
	ErrConsistencyViolation = errors.New("consistency violation")
)

// Kind names one branch of the taxonomy.
type Kind string

const (
	KindNone                Kind = ""
	KindProviderUnavailable Kind = "provider_unavailable"
	KindDataIncomplete      Kind = "data_incomplete"
	KindConfiguration       Kind = "configuration"
	KindConsistency         Kind = "consistency_violation"
	KindUnknown             Kind = "unknown"
)

func (k Kind) sentinel() error {
	switch k {
	case KindProviderUnavailable:
		return ErrProviderUnavailable
	case KindDataIncomplete:
		return ErrDataIncomplete
	case KindConfiguration:
		return ErrConfiguration
	case KindConsistency:
		return ErrConsistencyViolation
	default:
		return nil
	}
}

// Wrap formats a message and tags it with the given kind.
func Wrap(kind Kind, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	sentinel := kind.sentinel()
	if sentinel == nil {
		return errors.New(msg)
	}
	return fmt.Errorf("%s: %w", msg, sentinel)
}

// Mark tags an existing error with kind while preserving its chain.
func Mark(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	sentinel := kind.sentinel()
	if sentinel == nil || errors.Is(err, sentinel) {
		return err
	}
	return &marked{kind: sentinel, err: err}
}

type marked struct {
	kind error
	err  error
}

func (m *marked) Error() string   { return fmt.Sprintf("%v: %v", m.err, m.kind) }
func (m *marked) Unwrap() []error { return []error{m.err, m.kind} }

// KindOf classifies err. Configuration outranks the other kinds because it is fatal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrConsistencyViolation):
		return KindConsistency
	case errors.Is(err, ErrProviderUnavailable):
		return KindProviderUnavailable
	case errors.Is(err, ErrDataIncomplete):
		return KindDataIncomplete
	default:
		return KindUnknown
	}
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	return KindOf(err) == KindProviderUnavailable
}

// Fatal reports whether err must abort the whole run.
func Fatal(err error) bool {
	return KindOf(err) == KindConfiguration
}
