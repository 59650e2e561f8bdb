// Package ruleerr defines the engine's single typed-error value and its kinds.
package ruleerr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so callers can branch on errors.Is against
// the sentinel Kind values below without parsing messages.
type Kind int

const (
	// KindNotFound covers an unknown chain id for process/get/remove.
	KindNotFound Kind = iota
	// KindConfigError covers malformed JSON, unknown type_name, invalid role
	// wiring, structural defects, removal of a referenced chain, non-root
	// entry points, and drain timeouts.
	KindConfigError
	// KindCircularDependency covers node-level or chain-level cycles.
	KindCircularDependency
	// KindHandlerNotFound covers a type_name unregistered at execution time.
	KindHandlerNotFound
	// KindNodeExecutionError covers handler-specific runtime failures.
	KindNodeExecutionError
	// KindComponentError covers integration failures (HTTP, external services).
	KindComponentError
	// KindFilterReject is the Filter node's soft-reject control-flow signal.
	KindFilterReject
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConfigError:
		return "ConfigError"
	case KindCircularDependency:
		return "CircularDependency"
	case KindHandlerNotFound:
		return "HandlerNotFound"
	case KindNodeExecutionError:
		return "NodeExecutionError"
	case KindComponentError:
		return "ComponentError"
	case KindFilterReject:
		return "FilterReject"
	default:
		return "Unknown"
	}
}

// RuleError is the engine's single exported error type.
type RuleError struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *RuleError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RuleError) Unwrap() error { return e.Wrapped }

// Is lets errors.Is match by Kind: errors.Is(err, ruleerr.NotFound) works
// because NotFound is itself a *RuleError with a matching Kind and no message.
func (e *RuleError) Is(target error) bool {
	var other *RuleError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a RuleError of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *RuleError {
	return &RuleError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a RuleError of the given kind, wrapping an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *RuleError {
	return &RuleError{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// Sentinel values for errors.Is comparisons against a bare kind.
var (
	NotFound           = &RuleError{Kind: KindNotFound}
	ConfigError        = &RuleError{Kind: KindConfigError}
	CircularDependency = &RuleError{Kind: KindCircularDependency}
	HandlerNotFound    = &RuleError{Kind: KindHandlerNotFound}
	NodeExecutionError = &RuleError{Kind: KindNodeExecutionError}
	ComponentError     = &RuleError{Kind: KindComponentError}
	FilterReject       = &RuleError{Kind: KindFilterReject}
)
