package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/prismatify/internal/auth"
	"github.com/desertthunder/prismatify/internal/server"
	"github.com/desertthunder/prismatify/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the full browser authorization flow.
//
// Starts a local HTTP server for the redirect, opens the browser, and waits
// for the callback to complete the flow. The resulting session is persisted
// by the flow's session store.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.config.Credentials.Spotify.ClientID == "" {
		return fmt.Errorf("%w: spotify client_id must be set in config.toml", shared.ErrMissingCredentials)
	}

	if err := r.doAuthorize(ctx); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("You can now use: prismatify analyze <playlist link>\n")

	return nil
}

// AuthStatus reports whether a usable session is stored.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	session, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	if session == nil {
		r.writePlain("✗ Not authenticated\n")
		r.writePlain("Run 'prismatify auth login' to authorize with Spotify.\n")
		return nil
	}

	r.writePlain("✓ Authenticated\n")
	r.writePlain("Grant: %s\n", session.Grant)
	r.writePlain("Expires: %s (in %s)\n",
		session.ExpiresAt.Format(time.RFC1123),
		time.Until(session.ExpiresAt).Round(time.Second))

	return nil
}

// AuthLogout clears the stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.flow.Logout(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	r.writePlain("✓ Logged out\n")
	return nil
}

// doAuthorize executes the redirect-and-callback flow with a local HTTP server.
func (r *Runner) doAuthorize(ctx context.Context) error {
	authURL, err := r.flow.Begin(true)
	if err != nil {
		return fmt.Errorf("failed to start authorization: %w", err)
	}

	callbackHandler := server.NewCallbackHandler(r.flow, r.grantKind(), r.logger)
	router := server.NewBasicRouter()
	router.Handler(callbackHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.CallbackResult

	select {
	case result = <-callbackHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return fmt.Errorf("authorization failed: %w", result.Error())
	}

	if r.flow.State() != auth.SessionActive {
		return fmt.Errorf("%w: no session after callback", shared.ErrAuthFailed)
	}

	return nil
}
