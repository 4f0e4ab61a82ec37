package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/prismatify/internal/auth"
	"github.com/desertthunder/prismatify/internal/repositories"
	"github.com/desertthunder/prismatify/internal/services"
	"github.com/desertthunder/prismatify/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var store auth.SessionStore
	var history *repositories.HistoryRepository

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		logger.Warn("database unavailable, sessions will not persist", "error", err)
		store = auth.NewMemoryStore()
	} else {
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		store = auth.NewSQLiteStore(db)
		history = repositories.NewHistoryRepository(db)
		defer db.Close()
	}

	flow := auth.NewFlow(grantStrategy(config.Credentials.Spotify), store, logger)

	spotify, err := services.NewSpotifyService(services.SpotifyOpts{Tokens: flow, Logger: logger})
	if err != nil {
		logger.Fatalf("failed to create Spotify service: %v", err)
	}

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Flow:    flow,
		Store:   store,
		Service: spotify,
		History: history,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "prismatify",
		Usage:    "Analyze Spotify playlists from the terminal",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrLoginRequired) || errors.Is(err, shared.ErrSessionExpired) {
			logger.Error("no active session, run 'prismatify auth login'")
			os.Exit(1)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// grantStrategy selects the OAuth grant from configuration. PKCE is the
// default; the implicit grant remains available for legacy setups.
func grantStrategy(cfg shared.SpotifyConfig) auth.GrantStrategy {
	if cfg.Flow == "implicit" {
		return &auth.ImplicitGrant{
			ClientID:    cfg.ClientID,
			RedirectURI: cfg.RedirectURI,
			Scopes:      services.DefaultScopes,
			AuthURL:     services.Endpoint().AuthURL,
		}
	}
	return auth.NewPKCEGrant(cfg.ClientID, cfg.RedirectURI, services.DefaultScopes, services.Endpoint())
}
