package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SQLiteStore implements [SessionStore] on a SQLite database.
//
// Both the session and the pending attempt occupy fixed single-row slots
// (id = 1), written with upserts so token and expiry change together.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a session store backed by the given database.
// The schema is created by the shared migration runner.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Save(token string, expiresIn int, grant Grant) error {
	if expiresIn <= 0 {
		expiresIn = DefaultExpirySeconds
	}
	expiresAt := s.now().Add(time.Duration(expiresIn) * time.Second)

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, access_token, expires_at, grant_kind) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET access_token = excluded.access_token,
			expires_at = excluded.expires_at, grant_kind = excluded.grant_kind`,
		token, expiresAt.Unix(), string(grant))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Load() (*Session, error) {
	var token, grant string
	var expiresAt int64

	err := s.db.QueryRow("SELECT access_token, expires_at, grant_kind FROM sessions WHERE id = 1").
		Scan(&token, &expiresAt, &grant)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session := &Session{
		AccessToken: token,
		ExpiresAt:   time.Unix(expiresAt, 0),
		Grant:       Grant(grant),
	}

	if !session.Valid(s.now()) {
		if err := s.Clear(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return session, nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveAttempt(a Attempt) error {
	_, err := s.db.Exec(`
		INSERT INTO auth_attempts (id, state, code_verifier, issued_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state,
			code_verifier = excluded.code_verifier, issued_at = excluded.issued_at`,
		a.State, a.Verifier, a.IssuedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save auth attempt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ConsumeAttempt() (*Attempt, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var state, verifier string
	var issuedAt int64

	err = tx.QueryRow("SELECT state, code_verifier, issued_at FROM auth_attempts WHERE id = 1").
		Scan(&state, &verifier, &issuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load auth attempt: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM auth_attempts WHERE id = 1"); err != nil {
		return nil, fmt.Errorf("failed to consume auth attempt: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit attempt consumption: %w", err)
	}

	return &Attempt{State: state, Verifier: verifier, IssuedAt: time.Unix(issuedAt, 0)}, nil
}

// MemoryStore implements [SessionStore] in memory for tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
	attempt *Attempt
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Save(token string, expiresIn int, grant Grant) error {
	if expiresIn <= 0 {
		expiresIn = DefaultExpirySeconds
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &Session{
		AccessToken: token,
		ExpiresAt:   m.now().Add(time.Duration(expiresIn) * time.Second),
		Grant:       grant,
	}
	return nil
}

func (m *MemoryStore) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	if !m.session.Valid(m.now()) {
		m.session = nil
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *MemoryStore) SaveAttempt(a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempt = &a
	return nil
}

func (m *MemoryStore) ConsumeAttempt() (*Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempt == nil {
		return nil, nil
	}
	a := *m.attempt
	m.attempt = nil
	return &a, nil
}
