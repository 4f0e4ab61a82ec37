package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/desertthunder/prismatify/internal/auth"
	"github.com/desertthunder/prismatify/internal/shared"
)

func beginImplicitFlow(t *testing.T) (*auth.Flow, string) {
	t.Helper()

	strategy := &auth.ImplicitGrant{
		ClientID:    "client-id",
		RedirectURI: "http://localhost:3000/callback",
		Scopes:      []string{"playlist-read-private"},
		AuthURL:     "https://accounts.example.com/authorize",
	}
	flow := auth.NewFlow(strategy, auth.NewMemoryStore(), nil)

	authorizeURL, err := flow.Begin(true)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	parsed, err := url.Parse(authorizeURL)
	if err != nil {
		t.Fatalf("Begin returned unparseable URL: %v", err)
	}
	return flow, parsed.Query().Get("state")
}

func TestCallbackHandler(t *testing.T) {
	t.Run("serves fragment relay page for bare implicit callback", func(t *testing.T) {
		flow, _ := beginImplicitFlow(t)
		handler := NewCallbackHandler(flow, auth.GrantImplicit, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body, _ := io.ReadAll(rec.Body)
		if !strings.Contains(string(body), "window.location.hash") {
			t.Error("relay page should read the URL fragment")
		}

		select {
		case result := <-handler.Result():
			t.Errorf("relay page should not produce a result, got %v", result)
		default:
		}
	})

	t.Run("completes flow from relayed token parameters", func(t *testing.T) {
		flow, state := beginImplicitFlow(t)
		handler := NewCallbackHandler(flow, auth.GrantImplicit, nil)

		target := "/callback?access_token=tok-123&expires_in=3600&state=" + state
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		result := <-handler.Result()
		if result.Error() != nil {
			t.Fatalf("expected successful result, got %v", result.Error())
		}
		token, err := flow.Token()
		if err != nil {
			t.Fatalf("Token after callback: %v", err)
		}
		if token != "tok-123" {
			t.Errorf("expected tok-123, got %q", token)
		}
	})

	t.Run("rejects state mismatch", func(t *testing.T) {
		flow, _ := beginImplicitFlow(t)
		handler := NewCallbackHandler(flow, auth.GrantImplicit, nil)

		target := "/callback?access_token=tok-123&expires_in=3600&state=forged"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		result := <-handler.Result()
		if !errors.Is(result.Error(), shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch, got %v", result.Error())
		}
	})

	t.Run("reports authorization denial", func(t *testing.T) {
		flow, _ := beginImplicitFlow(t)
		handler := NewCallbackHandler(flow, auth.GrantImplicit, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?error=access_denied", nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		result := <-handler.Result()
		if !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", result.Error())
		}
	})

	t.Run("refuses a second callback after processing", func(t *testing.T) {
		flow, state := beginImplicitFlow(t)
		handler := NewCallbackHandler(flow, auth.GrantImplicit, nil)

		target := "/callback?access_token=tok-123&expires_in=3600&state=" + state
		first := httptest.NewRecorder()
		handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, target, nil))
		if first.Code != http.StatusOK {
			t.Fatalf("first callback: expected 200, got %d", first.Code)
		}

		second := httptest.NewRecorder()
		handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, target, nil))
		if second.Code != http.StatusBadRequest {
			t.Errorf("second callback: expected 400, got %d", second.Code)
		}
	})

	t.Run("routes registers the callback path", func(t *testing.T) {
		handler := NewCallbackHandler(nil, auth.GrantPKCE, nil)
		routes := handler.Routes()
		if len(routes) != 1 || routes[0] != "/callback" {
			t.Errorf("unexpected routes: %v", routes)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("applies middleware in registration order", func(t *testing.T) {
		router := NewBasicRouter()
		var order []string
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, "first")
				next.ServeHTTP(w, r)
			})
		})
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, "second")
				next.ServeHTTP(w, r)
			})
		})
		router.Handle("GET /ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		want := []string{"first", "second", "handler"}
		for i, step := range want {
			if i >= len(order) || order[i] != step {
				t.Fatalf("expected order %v, got %v", want, order)
			}
		}
	})

	t.Run("registers every route a handler reports", func(t *testing.T) {
		flow, _ := beginImplicitFlow(t)
		router := NewBasicRouter()
		router.Handler(NewCallbackHandler(flow, auth.GrantImplicit, nil))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 from /callback, got %d", rec.Code)
		}
	})
}
