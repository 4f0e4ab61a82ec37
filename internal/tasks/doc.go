// Package tasks orchestrates playlist analysis with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines two operations:
//
//  1. [Engine.Analyze] : Full playlist analysis
//     - Resolves the playlist ID from a share link or bare ID
//     - Fetches metadata and every track page in order
//     - Enriches tracks with audio features (tempo), tolerating partial failures
//     - Returns a report with duration and popularity aggregates
//
//  2. [Engine.Export] : Analyze and write the report to disk
//     - Supports json, csv, markdown, and txt formats
//     - File naming defaults derive from the playlist ID
//
// [AnalysisEngine.BulkExport] extends Export to many playlists at once with a
// worker pool, a rate limiter on analysis starts, and a JSON manifest
// summarizing successes and failures.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Concurrency Rules
//
// Repeating an Analyze call for the playlist currently being analyzed returns
// [shared.ErrAnalysisInFlight]; an Analyze call for a different playlist
// cancels the running one and proceeds. Every run is bounded by the engine
// timeout.
//
// # Implementation
//
// [AnalysisEngine] implements [Engine] with a dependency on
// [services.Service], the music provider API client.
package tasks
