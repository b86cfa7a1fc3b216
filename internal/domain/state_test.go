package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLoadingState(t *testing.T) {
	s := LoadingState()
	if !s.Loading {
		t.Error("expected Loading to be true")
	}
	if s.User != nil || s.Session != nil {
		t.Errorf("expected user and session absent, got user=%v session=%v", s.User, s.Session)
	}
}

func TestStateFromSession_Nil(t *testing.T) {
	s := StateFromSession(nil)
	if s.Loading {
		t.Error("expected Loading to be false")
	}
	if s.User != nil || s.Session != nil {
		t.Errorf("expected user and session absent, got user=%v session=%v", s.User, s.Session)
	}
	if s.Authenticated() {
		t.Error("expected unauthenticated state")
	}
}

func TestStateFromSession_SetsUserAndSessionTogether(t *testing.T) {
	sess := &Session{
		AccessToken: "access",
		User:        User{ID: "u-1", Email: "a@example.com"},
	}

	s := StateFromSession(sess)

	if s.User == nil || s.Session == nil {
		t.Fatalf("expected user and session set, got user=%v session=%v", s.User, s.Session)
	}
	if s.User.ID != "u-1" {
		t.Errorf("User.ID = %q, want %q", s.User.ID, "u-1")
	}
	if s.Session.AccessToken != "access" {
		t.Errorf("Session.AccessToken = %q, want %q", s.Session.AccessToken, "access")
	}
	if !s.Authenticated() {
		t.Error("expected authenticated state")
	}

	// the snapshot must not alias the caller's session
	sess.User.Email = "changed@example.com"
	if s.User.Email != "a@example.com" {
		t.Errorf("User.Email = %q, snapshot was mutated through caller", s.User.Email)
	}
}

func TestStateFromSession_CopiesReferenceFields(t *testing.T) {
	confirmed := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	sess := &Session{
		AccessToken: "access",
		User: User{
			ID:           "u-1",
			ConfirmedAt:  &confirmed,
			AppMetadata:  json.RawMessage(`{"provider":"email"}`),
			UserMetadata: json.RawMessage(`{"name":"Ada"}`),
		},
	}

	s := StateFromSession(sess)

	*sess.User.ConfirmedAt = confirmed.Add(time.Hour)
	sess.User.AppMetadata[2] = 'X'
	sess.User.UserMetadata[2] = 'X'

	if !s.User.ConfirmedAt.Equal(confirmed) || !s.Session.User.ConfirmedAt.Equal(confirmed) {
		t.Errorf("ConfirmedAt = %v, snapshot was mutated through caller", s.User.ConfirmedAt)
	}
	if string(s.User.AppMetadata) != `{"provider":"email"}` || string(s.Session.User.AppMetadata) != `{"provider":"email"}` {
		t.Errorf("AppMetadata = %s, snapshot was mutated through caller", s.User.AppMetadata)
	}
	if string(s.User.UserMetadata) != `{"name":"Ada"}` {
		t.Errorf("UserMetadata = %s, snapshot was mutated through caller", s.User.UserMetadata)
	}
}

func TestUser_Confirmed(t *testing.T) {
	now := time.Now()
	if (User{}).Confirmed() {
		t.Error("expected unconfirmed user")
	}
	if !(User{ConfirmedAt: &now}).Confirmed() {
		t.Error("expected confirmed user")
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"zero never expires", time.Time{}, false},
		{"future", now.Add(time.Minute), false},
		{"exactly now", now, true},
		{"past", now.Add(-time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Session{ExpiresAt: tt.expiresAt}
			if got := s.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
