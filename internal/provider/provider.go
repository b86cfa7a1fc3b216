// Package provider defines the capability surface of the external identity
// provider consumed by the session manager.
package provider

import (
	"context"

	"github.com/sumire/authsession/internal/domain"
)

// Listener receives every session change pushed by the provider. A nil
// session means no one is signed in.
type Listener func(event domain.AuthEvent, session *domain.Session)

// Subscription is an active listener registration. Unsubscribe may be
// called any number of times.
type Subscription interface {
	Unsubscribe()
}

// SignUpOptions configures a sign-up request.
type SignUpOptions struct {
	// EmailRedirectTo is where the confirmation link sends the user.
	EmailRedirectTo string
}

// FlowParam is the query parameter that carries the OAuth flow id on the
// redirect back from the provider.
const FlowParam = "flow_id"

// OAuthOptions configures an OAuth sign-in.
type OAuthOptions struct {
	RedirectTo string
	Scopes     []string
}

// Client is the identity provider. Session changes caused by the sign-in
// and sign-out calls are delivered to listeners, not written by callers.
type Client interface {
	GetSession(ctx context.Context) (*domain.Session, error)
	OnAuthStateChange(l Listener) Subscription
	// SignUp returns the created user and, when no confirmation is
	// required, the issued session.
	SignUp(ctx context.Context, email, password string, opts SignUpOptions) (*domain.User, *domain.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	// SignInWithOAuth starts the redirect to the external provider. Success
	// only means the navigation was initiated.
	SignInWithOAuth(ctx context.Context, p domain.OAuthProvider, opts OAuthOptions) error
	// ExchangeCodeForSession completes an OAuth sign-in after the browser
	// returns with an authorization code. flowID identifies which pending
	// sign-in the code belongs to.
	ExchangeCodeForSession(ctx context.Context, code, flowID string) (*domain.Session, error)
	SignOut(ctx context.Context) error
}
