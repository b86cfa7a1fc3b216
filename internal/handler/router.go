package handler

import (
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/sumire/authsession/internal/metrics"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Auth Authenticator
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// AllowedOrigin is the frontend origin allowed by CORS.
	AllowedOrigin string
	// RedirectPath is the guarded landing page for completed sign-ins.
	RedirectPath string
	// AuthRateLimit is the per-client request rate for credential endpoints.
	AuthRateLimit float64
}

// NewRouter builds the echo server exposing the session manager.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewAppValidator()
	e.HTTPErrorHandler = HTTPErrorHandler

	e.Use(middleware.RequestID())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())
	if cfg.AllowedOrigin != "" {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     []string{cfg.AllowedOrigin},
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderContentType},
			ExposeHeaders:    []string{echo.HeaderXRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(cfg.Gatherer)))
	}

	h := NewAuthHandler(cfg.Auth)

	auth := e.Group("/api/v1/auth")
	auth.GET("/state", h.State)

	limit := authRateLimiter(cfg.AuthRateLimit)
	auth.POST("/signup", h.SignUp, limit)
	auth.POST("/signin", h.SignIn, limit)
	auth.GET("/google", h.GoogleRedirect, limit)
	auth.POST("/signout", h.SignOut)

	redirectPath := cfg.RedirectPath
	if redirectPath == "" {
		redirectPath = "/dashboard"
	}
	e.GET(redirectPath, h.Dashboard, DetectSessionInURL(cfg.Auth), RequireSession(cfg.Auth))

	return e
}

func authRateLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = 5
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     int(math.Ceil(perSecond)),
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiter(store)
}
