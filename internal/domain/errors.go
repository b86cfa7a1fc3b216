package domain

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ErrorKind classifies a DomainError.
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindEmailNotConfirmed  ErrorKind = "email_not_confirmed"
	KindProviderFailure    ErrorKind = "provider_failure"
	KindUnknown            ErrorKind = "unknown"
)

// DomainError is the normalized error returned by every auth operation.
type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches another DomainError of the same kind, so callers can write
// errors.Is(err, &DomainError{Kind: KindInvalidCredentials}).
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
