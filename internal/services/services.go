// package services defines interface Service for interacting with HTTP music APIs
package services

import (
	"context"
)

// Service defines the interface for a music streaming provider that can
// describe playlists and their tracks.
type Service interface {
	// GetPlaylist retrieves a playlist's metadata by ID.
	GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error)

	// AllTracks retrieves every track of a playlist, following the provider's
	// pagination until exhausted, in server-returned order.
	AllTracks(ctx context.Context, playlistID string) ([]Track, error)

	// AudioFeatures retrieves supplementary per-track features keyed by track
	// ID. Missing entries mean the lookup failed or the provider has no data.
	AudioFeatures(ctx context.Context, trackIDs []string) (map[string]AudioFeature, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// TokenProvider supplies a bearer token for API requests.
//
// Implementations re-check session expiry on every call; [auth.Flow] satisfies
// this interface.
type TokenProvider interface {
	Token() (string, error)
}

// Playlist represents a music playlist from any service
type Playlist struct {
	ID          string
	Name        string
	Description string
	Owner       string
	TrackCount  int
	Public      bool
	ArtworkURL  string
}

// Track represents a music track from any service
type Track struct {
	ID          string
	Name        string
	Artists     []string
	Album       string
	ArtworkURL  string
	DurationMS  int
	Popularity  int // 0–100
	ExternalURL string
	TempoBPM    float64 // 0 when no feature data is available
}

// AudioFeature represents supplementary audio analysis for a track
type AudioFeature struct {
	ID       string
	TempoBPM float64
	Energy   float64
	Valence  float64
}
