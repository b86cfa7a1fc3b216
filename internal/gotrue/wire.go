package gotrue

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/supabase-community/auth-go/types"

	"github.com/sumire/authsession/internal/domain"
	"github.com/sumire/authsession/internal/provider"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID               string          `json:"id"`
	Email            string          `json:"email"`
	Role             string          `json:"role"`
	EmailConfirmedAt *time.Time      `json:"email_confirmed_at"`
	ConfirmedAt      *time.Time      `json:"confirmed_at"`
	CreatedAt        time.Time       `json:"created_at"`
	AppMetadata      json.RawMessage `json:"app_metadata"`
	UserMetadata     json.RawMessage `json:"user_metadata"`
}

func (u userResponse) toDomain() domain.User {
	confirmed := u.EmailConfirmedAt
	if confirmed == nil {
		confirmed = u.ConfirmedAt
	}
	return domain.User{
		ID:           u.ID,
		Email:        u.Email,
		Role:         u.Role,
		ConfirmedAt:  confirmed,
		CreatedAt:    u.CreatedAt,
		AppMetadata:  u.AppMetadata,
		UserMetadata: u.UserMetadata,
	}
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

// fromTokenResponse re-reads an auth-go token response through the wire
// shape so both the auth-go and the sign-up paths share toDomain.
func fromTokenResponse(resp *types.TokenResponse) (tokenResponse, error) {
	var tr tokenResponse
	if resp == nil {
		return tr, nil
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return tr, fmt.Errorf("encode token response: %w", err)
	}
	if err := json.Unmarshal(b, &tr); err != nil {
		return tr, fmt.Errorf("decode token response: %w", err)
	}
	return tr, nil
}

// toDomain builds a session, filling expiry and identity from the access
// token claims when the response omits them.
func (t tokenResponse) toDomain(now time.Time) *domain.Session {
	s := &domain.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		User:         t.User.toDomain(),
	}

	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}

	if s.ExpiresAt.IsZero() || s.User.ID == "" || s.User.Email == "" {
		applyClaims(s)
	}
	return s
}

// applyClaims reads exp, sub and email from the access token without
// verifying its signature. Verification is the server's job.
func applyClaims(s *domain.Session) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, claims); err != nil {
		return
	}
	if s.ExpiresAt.IsZero() {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			s.ExpiresAt = exp.Time.UTC()
		}
	}
	if s.User.ID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			s.User.ID = sub
		}
	}
	if s.User.Email == "" {
		if email, ok := claims["email"].(string); ok {
			s.User.Email = email
		}
	}
}

type errorResponse struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// decodeError handles both the current ({error_code, msg}) and the legacy
// OAuth ({error, error_description}) error shapes.
func decodeError(status int, body []byte) *provider.Error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)

	pe := &provider.Error{Status: status, Code: er.ErrorCode}
	if pe.Code == "" {
		pe.Code = er.Error
	}

	switch {
	case er.Msg != "":
		pe.Message = er.Msg
	case er.Message != "":
		pe.Message = er.Message
	case er.ErrorDescription != "":
		pe.Message = er.ErrorDescription
	case er.Error != "":
		pe.Message = er.Error
	default:
		pe.Message = http.StatusText(status)
	}
	return pe
}

// auth-go reports non-success responses as "response status code N: body".
var statusPattern = regexp.MustCompile(`(?s)response status code (\d+)(?::\s*(.*))?`)

// apiError turns an auth-go error into a *provider.Error when it carries an
// HTTP status. Anything else is a transport failure and is wrapped as is.
func apiError(op string, err error) error {
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	status, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return decodeError(status, []byte(strings.TrimSpace(m[2])))
}
