// Package authstate holds the single in-memory cell of the current AuthState.
package authstate

import (
	"sync"

	"github.com/sumire/authsession/internal/domain"
)

// Observer is notified with every state written to the Store.
type Observer func(domain.AuthState)

// Store is the shared AuthState cell. Replace swaps the whole state, so
// readers never see a partial update. The Store does not validate states.
type Store struct {
	mu        sync.RWMutex
	state     domain.AuthState
	observers map[int]Observer
	nextID    int
}

// NewStore creates a Store in the loading state.
func NewStore() *Store {
	return &Store{
		state:     domain.LoadingState(),
		observers: make(map[int]Observer),
	}
}

// Current returns the current snapshot.
func (s *Store) Current() domain.AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Replace atomically swaps in next and then notifies observers.
// Observers run on the caller's goroutine after the lock is released.
func (s *Store) Replace(next domain.AuthState) {
	s.mu.Lock()
	s.state = next
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(next)
	}
}

// Subscribe registers o and returns a function that removes it.
// Observers must not call back into the writer that triggered them.
func (s *Store) Subscribe(o Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}
