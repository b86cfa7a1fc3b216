package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sumire/authsession/internal/domain"
	"github.com/sumire/authsession/internal/provider"
)

const (
	contextKeyUser = "auth_user"
)

// RequestLogger logs each HTTP request with structured fields.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			slog.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)

			return err
		}
	}
}

// DetectSessionInURL completes an OAuth sign-in when the provider redirects
// back with ?code=, then redirects to the same path without it so the
// guarded handler sees the signed-in state.
func DetectSessionInURL(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			q := c.QueryParams()
			if desc := q.Get("error_description"); desc != "" {
				slog.Warn("oauth redirect returned an error", "error", q.Get("error"), "description", desc)
				return echo.NewHTTPError(http.StatusUnauthorized, desc)
			}

			code := q.Get("code")
			if code == "" {
				return next(c)
			}

			if err := auth.CompleteOAuth(c.Request().Context(), code, q.Get(provider.FlowParam)); err != nil {
				return err
			}

			q.Del("code")
			q.Del(provider.FlowParam)
			target := url.URL{Path: c.Request().URL.Path, RawQuery: q.Encode()}
			return c.Redirect(http.StatusFound, target.String())
		}
	}
}

// RequireSession rejects requests while the auth state is loading or no
// user is signed in, and injects the current user into echo context.
func RequireSession(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			st := auth.State()
			if st.Loading {
				c.Response().Header().Set("Retry-After", "1")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication state is loading")
			}
			if !st.Authenticated() {
				return domain.ErrUnauthorized
			}

			c.Set(contextKeyUser, st.User)
			return next(c)
		}
	}
}

// CurrentUser extracts the signed-in user from echo context.
func CurrentUser(c echo.Context) (*domain.User, bool) {
	u, ok := c.Get(contextKeyUser).(*domain.User)
	return u, ok && u != nil
}
