package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/prismatify/internal/shared"
	"golang.org/x/oauth2"
)

// State enumerates the auth flow controller states.
type State int

const (
	NoSession State = iota
	AwaitingCallback
	SessionActive
)

// CallbackParams carries the parameters observed on the authorization callback.
//
// The implicit grant delivers AccessToken/ExpiresIn (relayed from the URL
// fragment); the PKCE grant delivers Code. Err is the `error` parameter sent by
// the authorization server on denial.
type CallbackParams struct {
	Code        string
	State       string
	AccessToken string
	ExpiresIn   int
	Err         string
}

// GrantStrategy abstracts the difference between the implicit and PKCE grants.
// Both share the [Flow] controller state machine.
type GrantStrategy interface {
	// Name returns the grant kind this strategy implements.
	Name() Grant

	// NewAttempt creates a fresh pending attempt (state nonce, and a code
	// verifier for PKCE).
	NewAttempt() (Attempt, error)

	// AuthorizeURL builds the authorization redirect URL for an attempt, with
	// every query value encoded exactly once.
	AuthorizeURL(a Attempt) string

	// Exchange turns callback parameters into a token and its lifetime in
	// seconds. The implicit grant reads the relayed fragment token; PKCE posts
	// the code and verifier to the token endpoint.
	Exchange(ctx context.Context, params CallbackParams, a Attempt) (token string, expiresIn int, err error)
}

// Flow drives the redirect-and-callback state machine:
//
//	NoSession → AwaitingCallback → SessionActive → (Expired → NoSession)
//
// It decides whether to redirect, exchange a code, or reuse a stored token,
// and guarantees that no more than one automatic redirect happens per callback
// cycle (the attempted marker is cleared only on success).
type Flow struct {
	strategy GrantStrategy
	store    SessionStore
	logger   *log.Logger

	mu        sync.Mutex
	state     State
	attempted bool
}

// NewFlow creates a flow controller for the given strategy and session store.
func NewFlow(strategy GrantStrategy, store SessionStore, logger *log.Logger) *Flow {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Flow{strategy: strategy, store: store, logger: logger, state: NoSession}
}

// State returns the controller's current state, re-checking the stored session.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == SessionActive {
		if session, err := f.store.Load(); err != nil || session == nil {
			f.state = NoSession
		}
	}
	return f.state
}

// Begin issues a fresh pending attempt, persists it, and returns the
// authorization URL to redirect the user agent to.
//
// When userInitiated is false and a previous attempt already failed, Begin
// refuses with [shared.ErrLoginRequired] so the caller presents a manual login
// affordance instead of looping through redirects.
func (f *Flow) Begin(userInitiated bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == AwaitingCallback {
		return "", fmt.Errorf("%w: authorization already in progress", shared.ErrLoginRequired)
	}
	if !userInitiated && f.attempted {
		return "", fmt.Errorf("%w: automatic login already attempted", shared.ErrLoginRequired)
	}

	attempt, err := f.strategy.NewAttempt()
	if err != nil {
		return "", fmt.Errorf("failed to create auth attempt: %w", err)
	}
	attempt.IssuedAt = time.Now()

	if err := f.store.SaveAttempt(attempt); err != nil {
		return "", err
	}

	f.attempted = true
	f.state = AwaitingCallback

	return f.strategy.AuthorizeURL(attempt), nil
}

// HandleCallback consumes the pending attempt and completes the flow.
//
// State mismatches abort without storing a token ([shared.ErrStateMismatch]);
// an `error` parameter from the server is logged and returns the controller to
// NoSession without re-redirecting. A replayed callback after the attempt has
// been consumed is a no-op when a session is already active.
func (f *Flow) HandleCallback(ctx context.Context, params CallbackParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if params.Err != "" {
		f.logger.Error("authorization denied", "error", params.Err)
		f.state = NoSession
		// attempted stays set: no automatic re-redirect until the user acts
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, params.Err)
	}

	attempt, err := f.store.ConsumeAttempt()
	if err != nil {
		f.state = NoSession
		return err
	}
	if attempt == nil {
		if session, _ := f.store.Load(); session != nil {
			// Replayed callback; the session is already active.
			f.state = SessionActive
			return nil
		}
		f.state = NoSession
		return fmt.Errorf("%w: no pending authorization attempt", shared.ErrStateMismatch)
	}

	if params.State != attempt.State {
		f.state = NoSession
		return fmt.Errorf("%w: got %q", shared.ErrStateMismatch, params.State)
	}

	token, expiresIn, err := f.strategy.Exchange(ctx, params, *attempt)
	if err != nil {
		f.state = NoSession
		return err
	}

	if err := f.store.Save(token, expiresIn, f.strategy.Name()); err != nil {
		f.state = NoSession
		return err
	}

	f.attempted = false
	f.state = SessionActive

	return nil
}

// Token returns the stored access token for use in a request.
//
// A missing or expired session transitions the controller to NoSession and
// surfaces [shared.ErrSessionExpired] so the caller can prompt a re-login
// rather than silently re-redirecting.
func (f *Flow) Token() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, err := f.store.Load()
	if err != nil {
		return "", err
	}
	if session == nil {
		f.state = NoSession
		return "", shared.ErrSessionExpired
	}

	f.state = SessionActive
	return session.AccessToken, nil
}

// Logout clears the stored session and resets the controller.
func (f *Flow) Logout() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.state = NoSession
	f.attempted = false
	return f.store.Clear()
}

// ImplicitGrant implements [GrantStrategy] for the implicit grant: the token
// arrives directly in the redirect fragment, no exchange round trip.
type ImplicitGrant struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	AuthURL     string
}

func (g *ImplicitGrant) Name() Grant { return GrantImplicit }

func (g *ImplicitGrant) NewAttempt() (Attempt, error) {
	return Attempt{State: GenerateState()}, nil
}

func (g *ImplicitGrant) AuthorizeURL(a Attempt) string {
	v := url.Values{}
	v.Set("client_id", g.ClientID)
	v.Set("response_type", "token")
	v.Set("redirect_uri", g.RedirectURI)
	v.Set("scope", strings.Join(g.Scopes, " "))
	v.Set("state", a.State)
	return g.AuthURL + "?" + v.Encode()
}

func (g *ImplicitGrant) Exchange(ctx context.Context, params CallbackParams, a Attempt) (string, int, error) {
	if params.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: callback carried no access token", shared.ErrAuthFailed)
	}
	return params.AccessToken, params.ExpiresIn, nil
}

// PKCEGrant implements [GrantStrategy] for the authorization-code grant with
// PKCE, using [oauth2.Config] for URL construction and the code exchange.
type PKCEGrant struct {
	Config *oauth2.Config
}

// NewPKCEGrant builds a PKCE strategy from client settings and endpoints.
func NewPKCEGrant(clientID, redirectURI string, scopes []string, endpoint oauth2.Endpoint) *PKCEGrant {
	return &PKCEGrant{
		Config: &oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURI,
			Scopes:      scopes,
			Endpoint:    endpoint,
		},
	}
}

func (g *PKCEGrant) Name() Grant { return GrantPKCE }

func (g *PKCEGrant) NewAttempt() (Attempt, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return Attempt{}, err
	}
	return Attempt{State: GenerateState(), Verifier: verifier}, nil
}

func (g *PKCEGrant) AuthorizeURL(a Attempt) string {
	return g.Config.AuthCodeURL(a.State,
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", DeriveChallenge(a.Verifier)),
	)
}

func (g *PKCEGrant) Exchange(ctx context.Context, params CallbackParams, a Attempt) (string, int, error) {
	if params.Code == "" {
		return "", 0, fmt.Errorf("%w: callback carried no authorization code", shared.ErrExchangeFailed)
	}

	token, err := g.Config.Exchange(ctx, params.Code,
		oauth2.SetAuthURLParam("code_verifier", a.Verifier))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
	}

	expiresIn := int(token.ExpiresIn)
	if expiresIn <= 0 && !token.Expiry.IsZero() {
		expiresIn = int(time.Until(token.Expiry).Seconds())
	}

	return token.AccessToken, expiresIn, nil
}
