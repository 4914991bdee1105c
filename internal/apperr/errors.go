package apperr

import (
	"errors"
	"fmt"
)

// InvalidParameterError is returned for bad caller input. It is never retried
// and surfaces as a client-caused failure.
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid parameter: %s", e.Reason)
}

// InvalidParameter builds an InvalidParameterError for the given field.
func InvalidParameter(field, reason string) error {
	return &InvalidParameterError{Field: field, Reason: reason}
}

// UnconfiguredError indicates a missing credential or capability. It surfaces
// as a server configuration failure, not retried.
type UnconfiguredError struct {
	Capability string
}

func (e *UnconfiguredError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Capability)
}

// Unconfigured builds an UnconfiguredError for the named capability.
func Unconfigured(capability string) error {
	return &UnconfiguredError{Capability: capability}
}

// UpstreamError wraps a failure from an external capability (embedding,
// completion, or the store). Retry policy is a caller decision.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError for the named operation.
func Upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

// IsInvalidParameter reports whether err is an InvalidParameterError.
func IsInvalidParameter(err error) bool {
	var ip *InvalidParameterError
	return errors.As(err, &ip)
}

// IsUnconfigured reports whether err is an UnconfiguredError.
func IsUnconfigured(err error) bool {
	var uc *UnconfiguredError
	return errors.As(err, &uc)
}

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool {
	var up *UpstreamError
	return errors.As(err, &up)
}
