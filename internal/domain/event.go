package domain

// AuthEvent names a session change pushed by the provider.
type AuthEvent string

const (
	AuthEventInitialSession   AuthEvent = "INITIAL_SESSION"
	AuthEventSignedIn         AuthEvent = "SIGNED_IN"
	AuthEventSignedOut        AuthEvent = "SIGNED_OUT"
	AuthEventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	AuthEventUserUpdated      AuthEvent = "USER_UPDATED"
	AuthEventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// OAuthProvider names an external identity provider for OAuth sign-in.
type OAuthProvider string

const (
	OAuthProviderGoogle OAuthProvider = "google"
)
