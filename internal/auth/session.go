// package auth implements OAuth session storage and the redirect-and-callback state machine.
package auth

import (
	"time"
)

// Grant identifies which OAuth grant produced a session.
type Grant string

const (
	GrantImplicit Grant = "implicit"
	GrantPKCE     Grant = "pkce"
)

// Session is a stored access token with its expiry.
//
// A session is valid only while now < ExpiresAt; [SessionStore.Load] re-checks
// expiry on every read and clears the slot when it has passed.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	Grant       Grant
}

// Valid reports whether the session's token is still usable at the given instant.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.AccessToken != "" && now.Before(s.ExpiresAt)
}

// Attempt is a pending authorization attempt, created immediately before
// redirecting to the authorization server and consumed exactly once on the
// matching callback.
type Attempt struct {
	State    string
	Verifier string // empty for the implicit grant
	IssuedAt time.Time
}

// DefaultExpirySeconds is used when the authorization server omits or returns
// an invalid expires_in value.
const DefaultExpirySeconds = 3600

// SessionStore persists the single process-wide session slot and the pending
// authorization attempt.
type SessionStore interface {
	// Save computes expiresAt = now + expiresIn (DefaultExpirySeconds when
	// expiresIn <= 0) and persists token and expiry atomically.
	Save(token string, expiresIn int, grant Grant) error

	// Load returns the stored session, or nil if none is stored or the stored
	// session has expired. An expired entry is cleared as a side effect so that
	// staleness cannot be read twice.
	Load() (*Session, error)

	// Clear removes any stored session unconditionally.
	Clear() error

	// SaveAttempt records a pending authorization attempt, replacing any
	// previous one.
	SaveAttempt(a Attempt) error

	// ConsumeAttempt returns the pending attempt and removes it. Returns nil
	// when no attempt is pending; a second call never sees the same attempt.
	ConsumeAttempt() (*Attempt, error)
}
