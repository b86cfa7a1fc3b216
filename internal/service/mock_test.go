package service

import (
	"context"
	"sync"

	"github.com/sumire/authsession/internal/domain"
	"github.com/sumire/authsession/internal/provider"
)

// --- mocks ---

type mockSubscription struct {
	mu    sync.Mutex
	calls int
}

func (s *mockSubscription) Unsubscribe() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *mockSubscription) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type mockProvider struct {
	getSessionFn         func(ctx context.Context) (*domain.Session, error)
	signUpFn             func(ctx context.Context, email, password string, opts provider.SignUpOptions) (*domain.User, *domain.Session, error)
	signInWithPasswordFn func(ctx context.Context, email, password string) (*domain.Session, error)
	signInWithOAuthFn    func(ctx context.Context, p domain.OAuthProvider, opts provider.OAuthOptions) error
	exchangeCodeFn       func(ctx context.Context, code, flowID string) (*domain.Session, error)
	signOutFn            func(ctx context.Context) error

	mu        sync.Mutex
	listeners []provider.Listener
	sub       mockSubscription
}

func (m *mockProvider) GetSession(ctx context.Context) (*domain.Session, error) {
	if m.getSessionFn != nil {
		return m.getSessionFn(ctx)
	}
	return nil, nil
}

func (m *mockProvider) OnAuthStateChange(l provider.Listener) provider.Subscription {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
	return &m.sub
}

// emit delivers an event to every listener ever registered, including ones
// that were unsubscribed, to simulate a stale in-flight callback.
func (m *mockProvider) emit(event domain.AuthEvent, session *domain.Session) {
	m.mu.Lock()
	listeners := append([]provider.Listener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l(event, session)
	}
}

func (m *mockProvider) SignUp(ctx context.Context, email, password string, opts provider.SignUpOptions) (*domain.User, *domain.Session, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password, opts)
	}
	return nil, nil, nil
}

func (m *mockProvider) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	if m.signInWithPasswordFn != nil {
		return m.signInWithPasswordFn(ctx, email, password)
	}
	return &domain.Session{}, nil
}

func (m *mockProvider) SignInWithOAuth(ctx context.Context, p domain.OAuthProvider, opts provider.OAuthOptions) error {
	if m.signInWithOAuthFn != nil {
		return m.signInWithOAuthFn(ctx, p, opts)
	}
	return nil
}

func (m *mockProvider) ExchangeCodeForSession(ctx context.Context, code, flowID string) (*domain.Session, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code, flowID)
	}
	return &domain.Session{}, nil
}

func (m *mockProvider) SignOut(ctx context.Context) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx)
	}
	return nil
}

type mockRecorder struct {
	mu         sync.Mutex
	operations []string
	events     []domain.AuthEvent
	fetches    []bool
}

func (r *mockRecorder) RecordOperation(op, outcome string) {
	r.mu.Lock()
	r.operations = append(r.operations, op+":"+outcome)
	r.mu.Unlock()
}

func (r *mockRecorder) RecordAuthEvent(event domain.AuthEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *mockRecorder) RecordInitialFetch(ok bool) {
	r.mu.Lock()
	r.fetches = append(r.fetches, ok)
	r.mu.Unlock()
}

// --- compile-time interface checks ---
var _ provider.Client = (*mockProvider)(nil)
var _ OperationRecorder = (*mockRecorder)(nil)
var _ EventRecorder = (*mockRecorder)(nil)

func testSession(id, email string) *domain.Session {
	return &domain.Session{
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		TokenType:    "bearer",
		User:         domain.User{ID: id, Email: email},
	}
}
