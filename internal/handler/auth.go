package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sumire/authsession/internal/domain"
	"github.com/sumire/authsession/internal/provider"
)

// Authenticator is the read/operate surface the handlers consume.
type Authenticator interface {
	State() domain.AuthState
	SignUp(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) error
	SignInWithGoogle(ctx context.Context) error
	CompleteOAuth(ctx context.Context, code, flowID string) error
	SignOut(ctx context.Context) error
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	auth Authenticator
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// CredentialsRequest is the body of sign-up and sign-in requests.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type sessionView struct {
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type stateResponse struct {
	User           *domain.User `json:"user"`
	Session        *sessionView `json:"session"`
	Loading        bool         `json:"loading"`
	Authenticated  bool         `json:"authenticated"`
	EmailConfirmed bool         `json:"email_confirmed"`
}

// State returns the current auth state without exposing tokens.
func (h *AuthHandler) State(c echo.Context) error {
	st := h.auth.State()
	resp := stateResponse{
		User:          st.User,
		Loading:       st.Loading,
		Authenticated: st.Authenticated(),
	}
	if st.User != nil {
		resp.EmailConfirmed = st.User.Confirmed()
	}
	if st.Session != nil {
		resp.Session = &sessionView{TokenType: st.Session.TokenType, ExpiresAt: st.Session.ExpiresAt}
	}
	return JSON(c, http.StatusOK, resp)
}

// SignUp registers a new account. Acceptance does not imply a session.
func (h *AuthHandler) SignUp(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}
	if err := h.auth.SignUp(c.Request().Context(), req.Email, req.Password); err != nil {
		return err
	}
	return JSON(c, http.StatusAccepted, map[string]string{"status": "requested"})
}

// SignIn signs in with email and password.
func (h *AuthHandler) SignIn(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}
	if err := h.auth.SignIn(c.Request().Context(), req.Email, req.Password); err != nil {
		return err
	}
	return JSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

// GoogleRedirect redirects the user to the Google consent page via the
// auth provider.
func (h *AuthHandler) GoogleRedirect(c echo.Context) error {
	var target string
	nav := provider.NavigatorFunc(func(_ context.Context, u string) error {
		target = u
		return nil
	})

	ctx := provider.WithNavigator(c.Request().Context(), nav)
	if err := h.auth.SignInWithGoogle(ctx); err != nil {
		return err
	}
	if target == "" {
		return errors.New("oauth sign in produced no redirect")
	}
	return c.Redirect(http.StatusFound, target)
}

// SignOut ends the current session.
func (h *AuthHandler) SignOut(c echo.Context) error {
	if err := h.auth.SignOut(c.Request().Context()); err != nil {
		return err
	}
	return JSON(c, http.StatusOK, map[string]string{"status": "signed_out"})
}

// Dashboard returns the signed-in user. It must be mounted behind RequireSession.
func (h *AuthHandler) Dashboard(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return domain.ErrUnauthorized
	}
	return JSON(c, http.StatusOK, map[string]any{"user": user})
}

func bindCredentials(c echo.Context) (CredentialsRequest, error) {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return req, fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return req, err
	}
	return req, nil
}
