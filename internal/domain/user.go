package domain

import (
	"encoding/json"
	"time"
)

// User is the identity record issued by the auth provider. A User is never
// patched; each state update replaces it wholesale.
type User struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	Role         string          `json:"role,omitempty"`
	ConfirmedAt  *time.Time      `json:"confirmed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	AppMetadata  json.RawMessage `json:"app_metadata,omitempty"`
	UserMetadata json.RawMessage `json:"user_metadata,omitempty"`
}

// Confirmed reports whether the provider has confirmed the user's email.
func (u User) Confirmed() bool {
	return u.ConfirmedAt != nil
}

func (u User) clone() User {
	if u.ConfirmedAt != nil {
		t := *u.ConfirmedAt
		u.ConfirmedAt = &t
	}
	u.AppMetadata = cloneRaw(u.AppMetadata)
	u.UserMetadata = cloneRaw(u.UserMetadata)
	return u
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}
