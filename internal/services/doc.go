// Package services defines the [Service] interface for music streaming providers and implements it for Spotify.
//
// # Service Interface
//
// The provider abstraction covers three read operations: playlist metadata,
// the full track listing, and supplementary audio features.
//
// # Spotify Implementation
//
// [SpotifyService] talks to the Spotify Web API with a bearer token obtained
// from a [TokenProvider]. The provider is consulted on every request, so an
// expired session surfaces as [shared.ErrSessionExpired] before any bytes go
// out. Outbound calls pass through a token-bucket rate limiter.
//
// Pagination follows the "next" link of each track page strictly sequentially;
// audio-feature lookups are batched (≤100 IDs per request) and issued
// concurrently, with the merged result keyed by track ID.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrSessionExpired] : no valid session, re-login needed
//   - [shared.ErrAPIRequest] : HTTP request failed or non-2xx response
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
//   - [shared.ErrTimeout] : request deadline exceeded
//
// # API Mappings
//
// Provider-specific JSON responses convert to the service-agnostic [Playlist]
// and [Track] models. Playlist entries whose underlying track is null (deleted
// or region-restricted) are filtered out, not treated as errors; missing album
// art maps to an empty artwork URL.
package services
