package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sumire/authsession/internal/authstate"
	"github.com/sumire/authsession/internal/domain"
	"github.com/sumire/authsession/internal/provider"
)

// Operation names used in logs and metrics.
const (
	OpSignUp           = "sign_up"
	OpSignIn           = "sign_in"
	OpSignInWithGoogle = "sign_in_with_google"
	OpCompleteOAuth    = "complete_oauth"
	OpSignOut          = "sign_out"
)

var failureMessages = map[string]string{
	OpSignUp:           "Sign up failed. Please try again.",
	OpSignIn:           "Sign in failed. Please try again.",
	OpSignInWithGoogle: "Google sign in failed. Please try again.",
	OpCompleteOAuth:    "Completing sign in failed. Please try again.",
	OpSignOut:          "Sign out failed. Please try again.",
}

// OperationRecorder receives the outcome of each credential operation.
// outcome is "ok" or the ErrorKind of the failure.
type OperationRecorder interface {
	RecordOperation(op, outcome string)
}

// AuthConfig holds the redirect targets used by credential operations.
type AuthConfig struct {
	// RedirectURL is where email confirmation links and OAuth sign-ins land.
	RedirectURL string
}

// AuthService exposes the credential operations and a read view of the
// current AuthState. It never writes the state; the SubscriptionManager
// applies whatever the provider reports.
type AuthService struct {
	provider    provider.Client
	store       *authstate.Store
	recorder    OperationRecorder
	redirectURL string
}

// NewAuthService creates a new AuthService. recorder may be nil.
func NewAuthService(p provider.Client, store *authstate.Store, recorder OperationRecorder, cfg AuthConfig) *AuthService {
	return &AuthService{
		provider:    p,
		store:       store,
		recorder:    recorder,
		redirectURL: cfg.RedirectURL,
	}
}

// State returns the current AuthState snapshot.
func (s *AuthService) State() domain.AuthState {
	return s.store.Current()
}

// SignUp registers a new account. A nil error only means the request was
// accepted; the provider may still require email confirmation before a
// session is issued.
func (s *AuthService) SignUp(ctx context.Context, email, password string) error {
	slog.Info("auth: attempting sign up", "email", email)

	return s.run(ctx, OpSignUp, func(ctx context.Context) error {
		user, session, err := s.provider.SignUp(ctx, email, password, provider.SignUpOptions{
			EmailRedirectTo: s.redirectURL,
		})
		if err != nil {
			return err
		}
		var userID string
		if user != nil {
			userID = user.ID
		}
		slog.Info("auth: sign up successful", "user_id", userID, "needs_confirmation", session == nil)
		return nil
	})
}

// SignIn signs in with email and password.
func (s *AuthService) SignIn(ctx context.Context, email, password string) error {
	slog.Info("auth: attempting sign in", "email", email)

	return s.run(ctx, OpSignIn, func(ctx context.Context) error {
		session, err := s.provider.SignInWithPassword(ctx, email, password)
		if err != nil {
			return err
		}
		slog.Info("auth: sign in successful", "user_id", sessionUserID(session))
		return nil
	})
}

// SignInWithGoogle starts the Google OAuth redirect. A nil error only means
// the redirect was initiated; the signed-in state arrives later through the
// provider's event stream.
func (s *AuthService) SignInWithGoogle(ctx context.Context) error {
	slog.Info("auth: attempting google sign in")

	return s.run(ctx, OpSignInWithGoogle, func(ctx context.Context) error {
		return s.provider.SignInWithOAuth(ctx, domain.OAuthProviderGoogle, provider.OAuthOptions{
			RedirectTo: s.redirectURL,
		})
	})
}

// CompleteOAuth exchanges the authorization code the browser returned with
// for the sign-in flow identified by flowID.
func (s *AuthService) CompleteOAuth(ctx context.Context, code, flowID string) error {
	return s.run(ctx, OpCompleteOAuth, func(ctx context.Context) error {
		if code == "" {
			return fmt.Errorf("%w: missing authorization code", domain.ErrInvalidInput)
		}
		session, err := s.provider.ExchangeCodeForSession(ctx, code, flowID)
		if err != nil {
			return err
		}
		slog.Info("auth: oauth sign in completed", "user_id", sessionUserID(session))
		return nil
	})
}

// SignOut ends the session. The cleared state arrives through the
// provider's signed-out event.
func (s *AuthService) SignOut(ctx context.Context) error {
	slog.Info("auth: signing out user")

	return s.run(ctx, OpSignOut, func(ctx context.Context) error {
		if err := s.provider.SignOut(ctx); err != nil {
			return err
		}
		slog.Info("auth: sign out successful")
		return nil
	})
}

// run invokes fn, converting panics and errors into a DomainError.
func (s *AuthService) run(ctx context.Context, op string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
		de := s.normalize(op, err)
		if s.recorder != nil {
			outcome := "ok"
			if de != nil {
				outcome = string(de.Kind)
			}
			s.recorder.RecordOperation(op, outcome)
		}
		if de == nil {
			err = nil
			return
		}
		err = de
	}()
	return fn(ctx)
}

func (s *AuthService) normalize(op string, err error) *domain.DomainError {
	if err == nil {
		return nil
	}
	de := NormalizeError(err)
	if de.Kind == domain.KindUnknown {
		slog.Error("auth: operation failed", "op", op, "error", err)
		if msg, ok := failureMessages[op]; ok {
			de = &domain.DomainError{Kind: domain.KindUnknown, Message: msg}
		}
		return de
	}
	var pe *provider.Error
	if errors.As(err, &pe) {
		slog.Warn("auth: provider rejected operation", "op", op, "status", pe.Status, "code", pe.Code, "error", pe.Message)
	}
	return de
}

// sessionUserID tolerates providers that report success without a session.
func sessionUserID(session *domain.Session) string {
	if session == nil {
		return ""
	}
	return session.User.ID
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
