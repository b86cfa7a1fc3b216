package provider

import "fmt"

// Error is a failure reported by the provider itself, as opposed to a
// transport or local failure.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth provider: %s (%s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("auth provider: %s (status %d)", e.Message, e.Status)
}
