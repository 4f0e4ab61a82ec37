// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/prismatify/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// pageLimit is the maximum page size for playlist track listings and the
	// maximum batch size for audio-feature lookups.
	pageLimit = 100
)

// DefaultScopes are the OAuth scopes needed to read playlists.
var DefaultScopes = []string{"playlist-read-private", "playlist-read-collaborative"}

// Endpoint returns the Spotify OAuth2 endpoints.
func Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: spotifyAuthURL, TokenURL: spotifyTokenURL}
}

var playlistLinkPattern = regexp.MustCompile(`playlist/([A-Za-z0-9_-]+)`)

// ExtractPlaylistID parses the playlist identifier following the literal path
// segment "playlist/" in a link or URI. Returns false when the input carries no
// identifier; it never errors on malformed input.
func ExtractPlaylistID(link string) (string, bool) {
	match := playlistLinkPattern.FindStringSubmatch(link)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Popularity   int             `json:"popularity"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is a pointer: deleted or region-restricted entries arrive as null and
// are filtered out rather than treated as errors.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents one page of a playlist's track listing.
type SpotifyPaginatedTracks struct {
	Items    []SpotifyPlaylistTrack `json:"items"`
	Total    int                    `json:"total"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
	Next     *string                `json:"next"`
	Previous *string                `json:"previous"`
}

type playlistTracksSummary struct {
	Total int `json:"total"`
}

type owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Owner       owner                 `json:"owner"`
	Public      bool                  `json:"public"`
	Tracks      playlistTracksSummary `json:"tracks"`
	Images      []SpotifyImage        `json:"images"`
}

// SpotifyAudioFeature represents the audio-features object for one track.
type SpotifyAudioFeature struct {
	ID     string  `json:"id"`
	Tempo  float64 `json:"tempo"`
	Energy float64 `json:"energy"`
	Valence float64 `json:"valence"`
}

// SpotifyService implements the [Service] interface for Spotify API interactions.
//
// Tokens come from a [TokenProvider] so every request re-checks session expiry;
// outbound calls go through a [rate.Limiter].
type SpotifyService struct {
	tokens     TokenProvider
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	baseURL    string
}

// SpotifyOpts contains configuration options for creating a SpotifyService.
type SpotifyOpts struct {
	Tokens     TokenProvider
	HTTPClient *http.Client
	Logger     *log.Logger
	BaseURL    string
}

// NewSpotifyService creates a Spotify API client.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	if opts.Tokens == nil {
		return nil, fmt.Errorf("%w: token provider is required", shared.ErrMissingCredentials)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}

	return &SpotifyService{
		tokens:     opts.Tokens,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(10), 5),
		logger:     opts.Logger,
		baseURL:    opts.BaseURL,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated, rate-limited GET against the Spotify API.
// The endpoint may be a path relative to the base URL or an absolute URL (as
// returned in pagination "next" links).
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	token, err := s.tokens.Token()
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http") {
		apiURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify rejected the access token", shared.ErrSessionExpired)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", shared.ErrPlaylistNotFound, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Playlist retrieves a playlist by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, fmt.Sprintf("/playlists/%s", playlistID), &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// PlaylistTracks retrieves one page of a playlist's track listing.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*SpotifyPaginatedTracks, error) {
	if limit <= 0 || limit > pageLimit {
		limit = pageLimit
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", playlistID, limit, offset)

	var page SpotifyPaginatedTracks
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// GetPlaylist retrieves playlist metadata mapped to the service-agnostic model.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	playlist := &Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		Owner:       sp.Owner.DisplayName,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
	}
	if len(sp.Images) > 0 {
		playlist.ArtworkURL = sp.Images[0].URL
	}

	return playlist, nil
}

// AllTracks retrieves every track of a playlist in server order.
//
// Pages are fetched strictly sequentially (each page's cursor comes from the
// prior response) following the "next" link until it is absent. Entries whose
// underlying track is null are filtered out.
func (s *SpotifyService) AllTracks(ctx context.Context, playlistID string) ([]Track, error) {
	var tracks []Track

	page, err := s.PlaylistTracks(ctx, playlistID, pageLimit, 0)
	for {
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil {
				continue
			}
			tracks = append(tracks, mapTrack(item.Track))
		}

		if page.Next == nil || *page.Next == "" {
			break
		}

		next := &SpotifyPaginatedTracks{}
		err = s.doRequest(ctx, *page.Next, next)
		page = next
	}

	return tracks, nil
}

// AudioFeatures retrieves audio features for the given track IDs, keyed by ID.
//
// IDs are partitioned into chunks of at most 100 and fetched concurrently; the
// merged result is keyed by track ID rather than response order. A failed chunk
// is logged and its entries omitted rather than failing the whole lookup.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]AudioFeature, error) {
	features := make(map[string]AudioFeature, len(trackIDs))
	if len(trackIDs) == 0 {
		return features, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, chunk := range chunkIDs(trackIDs, pageLimit) {
		g.Go(func() error {
			endpoint := fmt.Sprintf("/audio-features?ids=%s", url.QueryEscape(strings.Join(chunk, ",")))

			var response struct {
				AudioFeatures []*SpotifyAudioFeature `json:"audio_features"`
			}
			if err := s.doRequest(gctx, endpoint, &response); err != nil {
				s.logger.Warn("audio feature batch failed", "size", len(chunk), "error", err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for _, f := range response.AudioFeatures {
				if f == nil || f.ID == "" {
					continue
				}
				features[f.ID] = AudioFeature{ID: f.ID, TempoBPM: f.Tempo, Energy: f.Energy, Valence: f.Valence}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return features, nil
}

// mapTrack converts a Spotify track to the service-agnostic model.
func mapTrack(st *SpotifyTrack) Track {
	track := Track{
		ID:          st.ID,
		Name:        st.Name,
		Album:       st.Album.Name,
		DurationMS:  st.DurationMS,
		Popularity:  st.Popularity,
		ExternalURL: st.ExternalURLs.Spotify,
	}

	for _, artist := range st.Artists {
		track.Artists = append(track.Artists, artist.Name)
	}
	if len(st.Album.Images) > 0 {
		track.ArtworkURL = st.Album.Images[0].URL
	}

	return track
}

// chunkIDs partitions ids into slices of at most size elements, preserving order.
func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
