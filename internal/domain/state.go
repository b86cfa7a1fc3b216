package domain

// AuthState is the atomically replaced snapshot of who is signed in.
// User and Session are either both nil or both set.
type AuthState struct {
	User    *User
	Session *Session
	Loading bool
}

// LoadingState is the state before the first fetch or event resolves.
func LoadingState() AuthState {
	return AuthState{Loading: true}
}

// StateFromSession derives a settled state from a session, or the
// unauthenticated state when s is nil. The user always comes from the
// session so both fields are set together. The snapshot shares no memory
// with s.
func StateFromSession(s *Session) AuthState {
	if s == nil {
		return AuthState{}
	}
	session := *s
	session.User = s.User.clone()
	user := session.User.clone()
	return AuthState{User: &user, Session: &session}
}

// Authenticated reports whether a user is signed in.
func (a AuthState) Authenticated() bool {
	return a.Session != nil
}
