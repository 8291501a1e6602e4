package provider

import (
	"errors"
	"fmt"
)

// Common errors surfaced by record operations. The taxonomy is closed;
// adapters map every vendor failure onto one of these.
var (
	// ErrNotFound indicates the requested record, zone, or domain is absent.
	ErrNotFound = errors.New("record not found")

	// ErrAuthFailed indicates the credentials were rejected or lack scope.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrUnsupported indicates the bound adapter does not implement the
	// requested optional operation.
	ErrUnsupported = errors.New("operation not supported by provider")
)

// InputError reports a malformed host, value, TTL, config field, or an
// auth variant the adapter cannot use. It is returned before any network
// call is made.
type InputError struct {
	Field   string
	Value   string
	Message string
}

func (e *InputError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid input: %s=%q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Message)
}

// TransportError reports a network-level failure (connection, TLS,
// timeout) and carries the underlying cause.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError reports a non-success response from a vendor API that does
// not map to ErrNotFound or ErrAuthFailed. StatusCode and Message carry
// the vendor's response verbatim for diagnosis.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// ProviderError wraps an error with provider and operation context.
type ProviderError struct {
	Provider  string
	Operation string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context. The wrapped error
// unwraps, so errors.Is/As classification still works through it.
func WrapError(provider, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{
		Provider:  provider,
		Operation: operation,
		Err:       err,
	}
}

// IsNotFound returns true if the error indicates an absent record or zone.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthFailed returns true if the error indicates rejected credentials.
func IsAuthFailed(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

// IsUnsupported returns true if the error indicates a missing capability.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// IsInvalidInput returns true if the error came from input validation.
func IsInvalidInput(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// IsTransportFailure returns true if the error is a network-level failure.
func IsTransportFailure(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProviderError returns true if a vendor API returned a non-success
// status outside the mapped taxonomy.
func IsProviderError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// Classify returns the taxonomy label for an error. Used as a metrics
// label and in structured logs.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsNotFound(err):
		return "not_found"
	case IsAuthFailed(err):
		return "auth_failed"
	case IsInvalidInput(err):
		return "invalid_input"
	case IsTransportFailure(err):
		return "transport_failure"
	case IsProviderError(err):
		return "provider_error"
	case IsUnsupported(err):
		return "unsupported"
	default:
		return "error"
	}
}
