package service

import (
	"errors"
	"strings"

	"github.com/sumire/authsession/internal/domain"
	"github.com/sumire/authsession/internal/provider"
)

const (
	msgInvalidCredentials = "Invalid email or password. Please check your credentials and try again."
	msgEmailNotConfirmed  = "Please check your email and click the confirmation link before signing in."
	msgUnknown            = "Something went wrong. Please try again."
)

// NormalizeError maps err to a DomainError. Provider messages containing
// "Invalid login credentials" or "Email not confirmed" get user-facing
// rewrites; other provider errors keep their message. Errors that did not
// come from the provider are reported as unknown. A nil err yields nil.
func NormalizeError(err error) *domain.DomainError {
	if err == nil {
		return nil
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		return de
	}

	var pe *provider.Error
	if !errors.As(err, &pe) {
		return &domain.DomainError{Kind: domain.KindUnknown, Message: msgUnknown}
	}

	switch {
	case strings.Contains(pe.Message, "Invalid login credentials"):
		return &domain.DomainError{Kind: domain.KindInvalidCredentials, Message: msgInvalidCredentials}
	case strings.Contains(pe.Message, "Email not confirmed"):
		return &domain.DomainError{Kind: domain.KindEmailNotConfirmed, Message: msgEmailNotConfirmed}
	default:
		return &domain.DomainError{Kind: domain.KindProviderFailure, Message: pe.Message}
	}
}
