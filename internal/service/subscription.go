package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sumire/authsession/internal/authstate"
	"github.com/sumire/authsession/internal/domain"
	"github.com/sumire/authsession/internal/provider"
)

// EventRecorder receives a count of provider events and initial fetches.
type EventRecorder interface {
	RecordAuthEvent(event domain.AuthEvent)
	RecordInitialFetch(ok bool)
}

// SubscriptionManager is the only writer of the Store. It seeds the state
// with a one-shot session fetch and keeps it current from the provider's
// live event stream.
//
// Writes are applied in arrival order. Once any event has been applied, a
// late fetch result is discarded. After Stop, nothing is written.
type SubscriptionManager struct {
	provider provider.Client
	store    *authstate.Store
	recorder EventRecorder

	mu        sync.Mutex
	started   bool
	stopped   bool
	eventSeen bool
	sub       provider.Subscription
	fetching  bool
	ready     chan struct{}
	readyOnce sync.Once
}

// NewSubscriptionManager creates a SubscriptionManager writing to store.
// recorder may be nil.
func NewSubscriptionManager(p provider.Client, store *authstate.Store, recorder EventRecorder) *SubscriptionManager {
	return &SubscriptionManager{
		provider: p,
		store:    store,
		recorder: recorder,
		ready:    make(chan struct{}),
	}
}

// Start subscribes to provider events and fetches the current session in the
// background. Calling Start again, or after Stop, does nothing.
func (m *SubscriptionManager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	slog.Info("auth: starting session manager")

	sub := m.provider.OnAuthStateChange(m.handleEvent)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		sub.Unsubscribe()
		m.markReady()
		return
	}
	m.sub = sub
	m.fetching = true
	m.mu.Unlock()

	go m.fetchInitial(ctx)
}

// Stop releases the provider subscription. It is safe to call repeatedly
// and before Start. Callbacks arriving after Stop are ignored.
func (m *SubscriptionManager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	sub := m.sub
	m.sub = nil
	fetching := m.fetching
	m.mu.Unlock()

	// No fetch will ever close ready, so waiters must be released here.
	if !fetching {
		m.markReady()
	}

	if sub != nil {
		slog.Info("auth: releasing session subscription")
		sub.Unsubscribe()
	}
}

// Ready is closed once the initial fetch has completed, whether or not its
// result was applied, or once Stop has made the fetch impossible.
func (m *SubscriptionManager) Ready() <-chan struct{} {
	return m.ready
}

func (m *SubscriptionManager) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}

func (m *SubscriptionManager) fetchInitial(ctx context.Context) {
	defer m.markReady()

	session, err := m.getSession(ctx)
	if err != nil {
		slog.Error("auth: failed to get initial session", "error", err)
		session = nil
	}
	if m.recorder != nil {
		m.recorder.RecordInitialFetch(err == nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if m.eventSeen {
		slog.Debug("auth: discarding initial session, event already applied")
		return
	}
	slog.Info("auth: initial session resolved", "authenticated", session != nil)
	m.store.Replace(domain.StateFromSession(session))
}

// getSession turns a provider panic into an error so the state never stays
// loading.
func (m *SubscriptionManager) getSession(ctx context.Context) (session *domain.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return m.provider.GetSession(ctx)
}

func (m *SubscriptionManager) handleEvent(event domain.AuthEvent, session *domain.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		slog.Debug("auth: ignoring event after stop", "event", event)
		return
	}
	m.eventSeen = true
	slog.Info("auth: state change", "event", event, "authenticated", session != nil)
	if m.recorder != nil {
		m.recorder.RecordAuthEvent(event)
	}
	m.store.Replace(domain.StateFromSession(session))
}
