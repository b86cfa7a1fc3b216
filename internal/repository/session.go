package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/authsession/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS auth_sessions (
	storage_key   TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	token_type    TEXT NOT NULL,
	expires_at    TIMESTAMPTZ,
	user_data     JSONB NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

type sessionRow struct {
	StorageKey   string       `db:"storage_key"`
	AccessToken  string       `db:"access_token"`
	RefreshToken string       `db:"refresh_token"`
	TokenType    string       `db:"token_type"`
	ExpiresAt    sql.NullTime `db:"expires_at"`
	UserData     []byte       `db:"user_data"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

// SessionRepository persists the provider session in postgres under a
// single storage key, one row per application instance.
type SessionRepository struct {
	db  *sqlx.DB
	key string
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sqlx.DB, key string) *SessionRepository {
	return &SessionRepository{db: db, key: key}
}

// EnsureSchema creates the auth_sessions table if it does not exist.
func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create auth_sessions table: %w", err)
	}
	return nil
}

// Load returns the stored session, or nil if none is stored.
func (r *SessionRepository) Load(ctx context.Context) (*domain.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row,
		`SELECT storage_key, access_token, refresh_token, token_type, expires_at, user_data, updated_at
		 FROM auth_sessions WHERE storage_key = $1`, r.key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find session %s: %w", r.key, err)
	}
	return row.toDomain()
}

// Save creates or replaces the stored session.
func (r *SessionRepository) Save(ctx context.Context, session *domain.Session) error {
	userData, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}

	var expiresAt sql.NullTime
	if !session.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: session.ExpiresAt, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (storage_key, access_token, refresh_token, token_type, expires_at, user_data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (storage_key)
		 DO UPDATE SET access_token = EXCLUDED.access_token,
		               refresh_token = EXCLUDED.refresh_token,
		               token_type = EXCLUDED.token_type,
		               expires_at = EXCLUDED.expires_at,
		               user_data = EXCLUDED.user_data,
		               updated_at = NOW()`,
		r.key, session.AccessToken, session.RefreshToken, session.TokenType, expiresAt, userData,
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", r.key, err)
	}
	return nil
}

// Remove deletes the stored session. Removing a missing session is not an error.
func (r *SessionRepository) Remove(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE storage_key = $1`, r.key); err != nil {
		return fmt.Errorf("delete session %s: %w", r.key, err)
	}
	return nil
}

func (row sessionRow) toDomain() (*domain.Session, error) {
	var user domain.User
	if err := json.Unmarshal(row.UserData, &user); err != nil {
		return nil, fmt.Errorf("decode session user: %w", err)
	}
	s := &domain.Session{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		TokenType:    row.TokenType,
		User:         user,
	}
	if row.ExpiresAt.Valid {
		s.ExpiresAt = row.ExpiresAt.Time.UTC()
	}
	return s, nil
}
