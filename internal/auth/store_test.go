package auth

import (
	"testing"
	"time"

	"github.com/desertthunder/prismatify/internal/shared"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return NewSQLiteStore(db)
}

func TestSQLiteStore(t *testing.T) {
	t.Run("Load on empty store returns nil", func(t *testing.T) {
		store := newTestStore(t)

		session, err := store.Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session != nil {
			t.Error("expected nil session from empty store")
		}
	})

	t.Run("Save then Load round trip", func(t *testing.T) {
		store := newTestStore(t)

		if err := store.Save("token-abc", 120, GrantPKCE); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		session, err := store.Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session == nil {
			t.Fatal("expected a session")
		}
		if session.AccessToken != "token-abc" {
			t.Errorf("expected token-abc, got %s", session.AccessToken)
		}
		if session.Grant != GrantPKCE {
			t.Errorf("expected pkce grant, got %s", session.Grant)
		}
	})

	t.Run("Save defaults missing expiry to an hour", func(t *testing.T) {
		store := newTestStore(t)

		if err := store.Save("token-abc", 0, GrantImplicit); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		session, err := store.Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		remaining := time.Until(session.ExpiresAt)
		if remaining < 59*time.Minute || remaining > 61*time.Minute {
			t.Errorf("expected ~1h expiry, got %v", remaining)
		}
	})

	t.Run("Save replaces previous session", func(t *testing.T) {
		store := newTestStore(t)

		store.Save("first", 60, GrantImplicit)
		store.Save("second", 60, GrantPKCE)

		session, err := store.Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session.AccessToken != "second" {
			t.Errorf("expected second token, got %s", session.AccessToken)
		}
	})

	t.Run("expired session is cleared on read", func(t *testing.T) {
		store := newTestStore(t)

		store.Save("stale", 60, GrantPKCE)

		// Move the clock past expiry
		store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

		session, err := store.Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session != nil {
			t.Fatal("expected expired session to read as nil")
		}

		// The row must be gone, so a later read with any clock stays nil
		store.now = time.Now
		session, err = store.Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session != nil {
			t.Error("expected cleared slot to stay empty")
		}
	})

	t.Run("Clear removes session", func(t *testing.T) {
		store := newTestStore(t)

		store.Save("token", 60, GrantPKCE)
		if err := store.Clear(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		session, _ := store.Load()
		if session != nil {
			t.Error("expected no session after Clear")
		}
	})

	t.Run("ConsumeAttempt is one shot", func(t *testing.T) {
		store := newTestStore(t)

		attempt := Attempt{State: "nonce", Verifier: "verifier", IssuedAt: time.Now()}
		if err := store.SaveAttempt(attempt); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := store.ConsumeAttempt()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got == nil || got.State != "nonce" || got.Verifier != "verifier" {
			t.Errorf("unexpected attempt %+v", got)
		}

		again, err := store.ConsumeAttempt()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if again != nil {
			t.Error("expected second consume to return nil")
		}
	})

	t.Run("SaveAttempt replaces pending attempt", func(t *testing.T) {
		store := newTestStore(t)

		store.SaveAttempt(Attempt{State: "old", IssuedAt: time.Now()})
		store.SaveAttempt(Attempt{State: "new", IssuedAt: time.Now()})

		got, _ := store.ConsumeAttempt()
		if got == nil || got.State != "new" {
			t.Errorf("expected replacement attempt, got %+v", got)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	t.Run("expired session reads as nil and is cleared", func(t *testing.T) {
		store := NewMemoryStore()
		store.Save("token", 60, GrantImplicit)

		store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		if session, _ := store.Load(); session != nil {
			t.Fatal("expected expired session to read as nil")
		}

		store.now = time.Now
		if session, _ := store.Load(); session != nil {
			t.Error("expected cleared slot to stay empty")
		}
	})

	t.Run("attempt consumed once", func(t *testing.T) {
		store := NewMemoryStore()
		store.SaveAttempt(Attempt{State: "s"})

		if a, _ := store.ConsumeAttempt(); a == nil {
			t.Fatal("expected pending attempt")
		}
		if a, _ := store.ConsumeAttempt(); a != nil {
			t.Error("expected attempt slot to be empty after consume")
		}
	})
}
