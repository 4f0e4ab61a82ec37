package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/prismatify/internal/shared"
	"golang.org/x/oauth2"
)

// stubStrategy implements GrantStrategy with canned results.
type stubStrategy struct {
	grant       Grant
	attempt     Attempt
	token       string
	expiresIn   int
	exchangeErr error
	exchanged   int
}

func (s *stubStrategy) Name() Grant                  { return s.grant }
func (s *stubStrategy) NewAttempt() (Attempt, error) { return s.attempt, nil }
func (s *stubStrategy) AuthorizeURL(a Attempt) string {
	return "https://auth.example/authorize?state=" + a.State
}
func (s *stubStrategy) Exchange(ctx context.Context, params CallbackParams, a Attempt) (string, int, error) {
	s.exchanged++
	if s.exchangeErr != nil {
		return "", 0, s.exchangeErr
	}
	return s.token, s.expiresIn, nil
}

func newTestFlow(strategy GrantStrategy) (*Flow, *MemoryStore) {
	store := NewMemoryStore()
	return NewFlow(strategy, store, shared.NewLogger(nil)), store
}

func TestFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("Begin persists attempt and transitions to AwaitingCallback", func(t *testing.T) {
		strategy := &stubStrategy{grant: GrantPKCE, attempt: Attempt{State: "nonce", Verifier: "v"}}
		flow, store := newTestFlow(strategy)

		authURL, err := flow.Begin(true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(authURL, "state=nonce") {
			t.Errorf("expected state in auth URL, got %s", authURL)
		}
		if flow.State() != AwaitingCallback {
			t.Errorf("expected AwaitingCallback, got %v", flow.State())
		}

		pending, _ := store.ConsumeAttempt()
		if pending == nil || pending.State != "nonce" {
			t.Errorf("expected persisted attempt, got %+v", pending)
		}
	})

	t.Run("callback with matching state activates session", func(t *testing.T) {
		strategy := &stubStrategy{grant: GrantPKCE, attempt: Attempt{State: "nonce", Verifier: "v"}, token: "tok", expiresIn: 60}
		flow, store := newTestFlow(strategy)

		flow.Begin(true)
		err := flow.HandleCallback(ctx, CallbackParams{Code: "code", State: "nonce"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if flow.State() != SessionActive {
			t.Errorf("expected SessionActive, got %v", flow.State())
		}

		session, _ := store.Load()
		if session == nil || session.AccessToken != "tok" {
			t.Errorf("expected stored session, got %+v", session)
		}
	})

	t.Run("state mismatch aborts without storing a token", func(t *testing.T) {
		strategy := &stubStrategy{grant: GrantImplicit, attempt: Attempt{State: "expected"}, token: "tok"}
		flow, store := newTestFlow(strategy)

		flow.Begin(true)
		err := flow.HandleCallback(ctx, CallbackParams{AccessToken: "tok", State: "forged"})
		if !errors.Is(err, shared.ErrStateMismatch) {
			t.Fatalf("expected ErrStateMismatch, got %v", err)
		}
		if flow.State() != NoSession {
			t.Errorf("expected NoSession, got %v", flow.State())
		}
		if session, _ := store.Load(); session != nil {
			t.Error("expected no token stored on mismatch")
		}
	})

	t.Run("exchange failure returns to NoSession", func(t *testing.T) {
		strategy := &stubStrategy{
			grant:       GrantPKCE,
			attempt:     Attempt{State: "nonce", Verifier: "v"},
			exchangeErr: shared.ErrExchangeFailed,
		}
		flow, _ := newTestFlow(strategy)

		flow.Begin(true)
		err := flow.HandleCallback(ctx, CallbackParams{Code: "code", State: "nonce"})
		if !errors.Is(err, shared.ErrExchangeFailed) {
			t.Fatalf("expected ErrExchangeFailed, got %v", err)
		}
		if flow.State() != NoSession {
			t.Errorf("expected NoSession, got %v", flow.State())
		}
	})

	t.Run("error parameter does not re-redirect", func(t *testing.T) {
		strategy := &stubStrategy{grant: GrantPKCE, attempt: Attempt{State: "nonce"}}
		flow, _ := newTestFlow(strategy)

		flow.Begin(false)
		err := flow.HandleCallback(ctx, CallbackParams{Err: "access_denied"})
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}

		// A second automatic Begin must refuse; only a user action may retry.
		if _, err := flow.Begin(false); !errors.Is(err, shared.ErrLoginRequired) {
			t.Errorf("expected ErrLoginRequired on automatic retry, got %v", err)
		}
		if _, err := flow.Begin(true); err != nil {
			t.Errorf("expected user-initiated retry to proceed, got %v", err)
		}
	})

	t.Run("replayed callback does not create a second session", func(t *testing.T) {
		strategy := &stubStrategy{grant: GrantPKCE, attempt: Attempt{State: "nonce", Verifier: "v"}, token: "tok", expiresIn: 60}
		flow, _ := newTestFlow(strategy)

		flow.Begin(true)
		if err := flow.HandleCallback(ctx, CallbackParams{Code: "code", State: "nonce"}); err != nil {
			t.Fatalf("expected first callback to succeed, got %v", err)
		}

		if err := flow.HandleCallback(ctx, CallbackParams{Code: "code", State: "nonce"}); err != nil {
			t.Fatalf("expected replay to be a no-op, got %v", err)
		}
		if strategy.exchanged != 1 {
			t.Errorf("expected exactly one exchange, got %d", strategy.exchanged)
		}
		if flow.State() != SessionActive {
			t.Errorf("expected SessionActive, got %v", flow.State())
		}
	})

	t.Run("Token surfaces ErrSessionExpired when slot is empty", func(t *testing.T) {
		strategy := &stubStrategy{grant: GrantPKCE, attempt: Attempt{State: "nonce"}}
		flow, _ := newTestFlow(strategy)

		if _, err := flow.Token(); !errors.Is(err, shared.ErrSessionExpired) {
			t.Errorf("expected ErrSessionExpired, got %v", err)
		}
		if flow.State() != NoSession {
			t.Errorf("expected NoSession, got %v", flow.State())
		}
	})

	t.Run("Logout clears session and resets attempt marker", func(t *testing.T) {
		strategy := &stubStrategy{grant: GrantPKCE, attempt: Attempt{State: "nonce", Verifier: "v"}, token: "tok", expiresIn: 60}
		flow, store := newTestFlow(strategy)

		flow.Begin(true)
		flow.HandleCallback(ctx, CallbackParams{Code: "code", State: "nonce"})

		if err := flow.Logout(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session, _ := store.Load(); session != nil {
			t.Error("expected session cleared on logout")
		}
		if _, err := flow.Begin(false); err != nil {
			t.Errorf("expected automatic login allowed after logout, got %v", err)
		}
	})
}

func TestImplicitGrant(t *testing.T) {
	grant := &ImplicitGrant{
		ClientID:    "client",
		RedirectURI: "http://localhost:3000/callback",
		Scopes:      []string{"playlist-read-private", "playlist-read-collaborative"},
		AuthURL:     "https://accounts.spotify.com/authorize",
	}

	t.Run("authorize URL encodes scopes as one parameter", func(t *testing.T) {
		u := grant.AuthorizeURL(Attempt{State: "nonce"})

		if !strings.Contains(u, "response_type=token") {
			t.Error("expected response_type=token")
		}
		if !strings.Contains(u, "scope=playlist-read-private+playlist-read-collaborative") &&
			!strings.Contains(u, "scope=playlist-read-private%20playlist-read-collaborative") {
			t.Errorf("expected single space-delimited scope parameter, got %s", u)
		}
		if strings.Count(u, "scope=") != 1 {
			t.Error("expected exactly one scope parameter")
		}
	})

	t.Run("exchange passes through the fragment token", func(t *testing.T) {
		token, expiresIn, err := grant.Exchange(context.Background(),
			CallbackParams{AccessToken: "tok", ExpiresIn: 120}, Attempt{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token != "tok" || expiresIn != 120 {
			t.Errorf("unexpected result %s/%d", token, expiresIn)
		}
	})

	t.Run("exchange rejects a missing token", func(t *testing.T) {
		if _, _, err := grant.Exchange(context.Background(), CallbackParams{}, Attempt{}); err == nil {
			t.Error("expected error for missing token")
		}
	})
}

func TestPKCEGrant(t *testing.T) {
	grant := NewPKCEGrant("client", "http://localhost:3000/callback",
		[]string{"playlist-read-private"},
		oauth2.Endpoint{
			AuthURL:  "https://accounts.spotify.com/authorize",
			TokenURL: "https://accounts.spotify.com/api/token",
		})

	t.Run("authorize URL carries challenge and method", func(t *testing.T) {
		attempt, err := grant.NewAttempt()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		u := grant.AuthorizeURL(attempt)
		if !strings.Contains(u, "response_type=code") {
			t.Error("expected response_type=code")
		}
		if !strings.Contains(u, "code_challenge_method=S256") {
			t.Error("expected S256 challenge method")
		}
		if !strings.Contains(u, "code_challenge="+DeriveChallenge(attempt.Verifier)) {
			t.Error("expected derived challenge in URL")
		}
	})

	t.Run("exchange rejects a missing code", func(t *testing.T) {
		_, _, err := grant.Exchange(context.Background(), CallbackParams{}, Attempt{Verifier: "v"})
		if !errors.Is(err, shared.ErrExchangeFailed) {
			t.Errorf("expected ErrExchangeFailed, got %v", err)
		}
	})
}
