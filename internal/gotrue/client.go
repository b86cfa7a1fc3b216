// Package gotrue implements provider.Client against a GoTrue (Supabase Auth)
// server. Sessions are persisted through a SessionStorage and every session
// change is pushed to registered listeners.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	auth "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
	"golang.org/x/oauth2"

	"github.com/sumire/authsession/internal/domain"
	"github.com/sumire/authsession/internal/provider"
)

const (
	clientInfo = "authsession-go/1.0"

	flowTTL = 10 * time.Minute
)

// SessionStorage persists the current session between process restarts.
// Load returns nil, nil when nothing is stored.
type SessionStorage interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Remove(ctx context.Context) error
}

// Config holds the client configuration.
type Config struct {
	// URL is the project URL, e.g. https://abc.supabase.co.
	URL    string
	APIKey string

	// HTTPClient is used for sign-up requests.
	HTTPClient *http.Client
	Storage    SessionStorage
	// Navigator is used for OAuth redirects when the context carries none.
	Navigator provider.Navigator
	Now       func() time.Time
}

type pendingFlow struct {
	verifier  string
	createdAt time.Time
}

// Client talks to the GoTrue REST API. Token grants and logout go through
// auth-go; sign-up and the authorize URL are built here because they carry
// a redirect_to target.
type Client struct {
	baseURL    string
	apiKey     string
	api        auth.Client
	httpClient *http.Client
	storage    SessionStorage
	navigator  provider.Navigator
	now        func() time.Time

	mu        sync.Mutex
	listeners map[uuid.UUID]provider.Listener
	pending   map[string]pendingFlow
}

// NewClient creates a new Client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.URL, "/") + "/auth/v1"
	c := &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		api:        auth.New("", cfg.APIKey).WithCustomAuthURL(baseURL),
		httpClient: cfg.HTTPClient,
		storage:    cfg.Storage,
		navigator:  cfg.Navigator,
		now:        cfg.Now,
		listeners:  make(map[uuid.UUID]provider.Listener),
		pending:    make(map[string]pendingFlow),
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.storage == nil {
		c.storage = NewMemoryStorage()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// GetSession returns the persisted session, or nil if there is none. An
// expired session is removed and reported as absent.
func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	session, err := c.storage.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, nil
	}
	if session.Expired(c.now()) {
		if err := c.storage.Remove(ctx); err != nil {
			return nil, fmt.Errorf("remove expired session: %w", err)
		}
		return nil, nil
	}
	return session, nil
}

// OnAuthStateChange registers l for session change events.
func (c *Client) OnAuthStateChange(l provider.Listener) provider.Subscription {
	id := uuid.New()
	c.mu.Lock()
	c.listeners[id] = l
	c.mu.Unlock()
	return &subscription{client: c, id: id}
}

// SignUp creates an account. The session is nil when the server requires
// email confirmation first.
func (c *Client) SignUp(ctx context.Context, email, password string, opts provider.SignUpOptions) (*domain.User, *domain.Session, error) {
	query := url.Values{}
	if opts.EmailRedirectTo != "" {
		query.Set("redirect_to", opts.EmailRedirectTo)
	}

	body, err := c.do(ctx, http.MethodPost, "/signup", query, credentials{Email: email, Password: password})
	if err != nil {
		return nil, nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, nil, fmt.Errorf("decode sign up response: %w", err)
	}
	if tr.AccessToken == "" {
		var ur userResponse
		if err := json.Unmarshal(body, &ur); err != nil {
			return nil, nil, fmt.Errorf("decode sign up user: %w", err)
		}
		user := ur.toDomain()
		return &user, nil, nil
	}

	session, err := c.saveSession(ctx, tr)
	if err != nil {
		return nil, nil, err
	}
	c.emit(domain.AuthEventSignedIn, session)
	user := session.User
	return &user, session, nil
}

// SignInWithPassword signs in with email and password.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := c.api.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, apiError("password grant", err)
	}
	return c.completeGrant(ctx, resp)
}

// SignInWithOAuth builds the PKCE authorize URL for p and navigates to it.
// Each call starts an independent flow; its id rides on the redirect target
// so concurrent sign-ins do not overwrite each other's verifier.
func (c *Client) SignInWithOAuth(ctx context.Context, p domain.OAuthProvider, opts provider.OAuthOptions) error {
	nav, ok := provider.NavigatorFrom(ctx)
	if !ok {
		nav = c.navigator
	}
	if nav == nil {
		return errors.New("no navigator configured for oauth redirect")
	}
	if opts.RedirectTo == "" {
		return errors.New("oauth sign in requires a redirect target")
	}

	flowID := uuid.NewString()
	redirectTo, err := withFlowID(opts.RedirectTo, flowID)
	if err != nil {
		return err
	}

	verifier := oauth2.GenerateVerifier()
	now := c.now()
	c.mu.Lock()
	c.pruneFlowsLocked(now)
	c.pending[flowID] = pendingFlow{verifier: verifier, createdAt: now}
	c.mu.Unlock()

	query := url.Values{
		"provider":              {string(p)},
		"redirect_to":           {redirectTo},
		"code_challenge":        {oauth2.S256ChallengeFromVerifier(verifier)},
		"code_challenge_method": {"s256"},
	}
	if len(opts.Scopes) > 0 {
		query.Set("scopes", strings.Join(opts.Scopes, " "))
	}

	if err := nav.Navigate(ctx, c.baseURL+"/authorize?"+query.Encode()); err != nil {
		c.mu.Lock()
		delete(c.pending, flowID)
		c.mu.Unlock()
		return fmt.Errorf("navigate to %s authorize url: %w", p, err)
	}
	return nil
}

// ExchangeCodeForSession trades an authorization code for a session using
// the verifier of the flow identified by flowID. A flow can be exchanged
// once.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code, flowID string) (*domain.Session, error) {
	c.mu.Lock()
	c.pruneFlowsLocked(c.now())
	flow, ok := c.pending[flowID]
	delete(c.pending, flowID)
	c.mu.Unlock()
	if !ok {
		return nil, errors.New("no pending oauth sign in for this flow")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := c.api.Token(types.TokenRequest{
		GrantType:    "pkce",
		Code:         code,
		CodeVerifier: flow.verifier,
	})
	if err != nil {
		return nil, apiError("pkce grant", err)
	}
	return c.completeGrant(ctx, resp)
}

// SignOut revokes the session on the server and clears it locally. A
// session the server no longer knows is still cleared.
func (c *Client) SignOut(ctx context.Context) error {
	session, err := c.storage.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if session != nil {
		err := c.api.WithToken(session.AccessToken).Logout()
		if err != nil {
			err = apiError("logout", err)
			var pe *provider.Error
			if !(errors.As(err, &pe) && ignorableLogoutStatus(pe.Status)) {
				return err
			}
		}
	}

	if err := c.storage.Remove(ctx); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	c.emit(domain.AuthEventSignedOut, nil)
	return nil
}

func ignorableLogoutStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound
}

// pruneFlowsLocked drops sign-ins that were never completed. c.mu must be held.
func (c *Client) pruneFlowsLocked(now time.Time) {
	for id, f := range c.pending {
		if now.Sub(f.createdAt) > flowTTL {
			delete(c.pending, id)
		}
	}
}

func withFlowID(redirectTo, flowID string) (string, error) {
	u, err := url.Parse(redirectTo)
	if err != nil {
		return "", fmt.Errorf("parse redirect target: %w", err)
	}
	q := u.Query()
	q.Set(provider.FlowParam, flowID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) completeGrant(ctx context.Context, resp *types.TokenResponse) (*domain.Session, error) {
	tr, err := fromTokenResponse(resp)
	if err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, errors.New("empty access token in response")
	}

	session, err := c.saveSession(ctx, tr)
	if err != nil {
		return nil, err
	}
	c.emit(domain.AuthEventSignedIn, session)
	return session, nil
}

func (c *Client) saveSession(ctx context.Context, tr tokenResponse) (*domain.Session, error) {
	session := tr.toDomain(c.now())
	if err := c.storage.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// do sends a JSON request and returns the response body. Non-2xx responses
// become *provider.Error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Client-Info", clientInfo)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) emit(event domain.AuthEvent, session *domain.Session) {
	c.mu.Lock()
	listeners := make([]provider.Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(event, session)
	}
}

type subscription struct {
	client *Client
	id     uuid.UUID
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.mu.Lock()
		delete(s.client.listeners, s.id)
		s.client.mu.Unlock()
	})
}

// compile-time interface check
var _ provider.Client = (*Client)(nil)
