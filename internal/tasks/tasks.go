// package tasks implements playlist analysis operations.
//
// The core abstraction is Engine, which orchestrates link resolution, playlist fetching,
// audio-feature enrichment, and report building.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/prismatify/internal/formatter"
	"github.com/desertthunder/prismatify/internal/services"
	"github.com/desertthunder/prismatify/internal/shared"
)

// DefaultTimeout bounds a full analysis run, covering every page and feature batch.
const DefaultTimeout = 90 * time.Second

// Engine defines the playlist analysis operations.
type Engine interface {
	// Analyze resolves a playlist link, fetches every track with its audio
	// features, and builds a report.
	Analyze(ctx context.Context, progress chan<- ProgressUpdate, link string) (*formatter.Report, error)

	// Export analyzes a playlist and writes the report to disk in the given
	// format (json, csv, markdown, txt).
	Export(ctx context.Context, progress chan<- ProgressUpdate, link, format, output string) (*ExportResult, error)
}

// AnalysisEngine implements [Engine] against a music service.
//
// Concurrent Analyze calls follow two rules: a repeat request for the link
// already being analyzed is rejected with [shared.ErrAnalysisInFlight], while
// a request for a different link cancels the running analysis and takes its
// place (the newest request wins).
type AnalysisEngine struct {
	service services.Service
	logger  *log.Logger
	timeout time.Duration

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
}

// EngineOpts configures an [AnalysisEngine].
type EngineOpts struct {
	Service services.Service
	Logger  *log.Logger
	Timeout time.Duration // defaults to DefaultTimeout
}

// NewAnalysisEngine creates an engine with the provided service.
func NewAnalysisEngine(opts EngineOpts) *AnalysisEngine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &AnalysisEngine{
		service: opts.Service,
		logger:  opts.Logger,
		timeout: opts.Timeout,
	}
}

var bareIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// resolveLink extracts the playlist ID from a share link, URI, or bare ID.
func resolveLink(link string) (string, bool) {
	if id, ok := services.ExtractPlaylistID(link); ok {
		return id, true
	}
	if bareIDPattern.MatchString(link) {
		return link, true
	}
	return "", false
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *AnalysisEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// begin registers a run for the given playlist ID, cancelling any run for a
// different playlist. Returns the run context and false when an identical run
// is already in flight.
func (e *AnalysisEngine) begin(ctx context.Context, playlistID string) (context.Context, context.CancelFunc, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == playlistID && e.cancel != nil {
		return nil, nil, false
	}
	if e.cancel != nil {
		e.logger.Debug("superseding in-flight analysis", "previous", e.current, "next", playlistID)
		e.cancel()
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	e.current = playlistID
	e.cancel = cancel
	return runCtx, cancel, true
}

// finish releases the in-flight slot if this run still owns it.
func (e *AnalysisEngine) finish(playlistID string, cancel context.CancelFunc) {
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == playlistID {
		e.current = ""
		e.cancel = nil
	}
}

// Analyze performs a full playlist analysis.
func (e *AnalysisEngine) Analyze(ctx context.Context, progress chan<- ProgressUpdate, link string) (*formatter.Report, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: music service not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, resolveLinkUpdate(link))
	playlistID, ok := resolveLink(link)
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrInvalidPlaylistLink, link)
	}

	runCtx, cancel, ok := e.begin(ctx, playlistID)
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrAnalysisInFlight, playlistID)
	}
	defer e.finish(playlistID, cancel)

	return e.buildReport(runCtx, progress, playlistID)
}

// buildReport runs the fetch pipeline for a resolved playlist ID.
func (e *AnalysisEngine) buildReport(ctx context.Context, progress chan<- ProgressUpdate, playlistID string) (*formatter.Report, error) {
	e.sendProgress(progress, fetchPlaylistUpdate(playlistID))
	playlist, err := e.service.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, foundPlaylistUpdate(playlist))

	e.sendProgress(progress, fetchTracksUpdate(0, playlist.TrackCount))
	tracks, err := e.service.AllTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, fetchTracksUpdate(len(tracks), len(tracks)))

	ids := make([]string, 0, len(tracks))
	for _, track := range tracks {
		ids = append(ids, track.ID)
	}

	e.sendProgress(progress, fetchFeaturesUpdate(len(ids)))
	features, err := e.service.AudioFeatures(ctx, ids)
	if err != nil {
		// Features enrich the report but are not required for it.
		e.logger.Warn("audio feature lookup failed", "error", err)
		features = nil
	}
	for i := range tracks {
		if feature, found := features[tracks[i].ID]; found {
			tracks[i].TempoBPM = feature.TempoBPM
		}
	}

	e.sendProgress(progress, buildReportUpdate(playlist.Name))
	return &formatter.Report{Playlist: *playlist, Tracks: tracks}, nil
}

// ExportResult contains the files written by an export run.
type ExportResult struct {
	PlaylistID   string
	PlaylistName string
	Format       string
	Files        []string
}

// Export analyzes a playlist and writes the report in the requested format.
//
// Output semantics follow the formatter writers: an empty output falls back to
// filenames derived from the playlist ID.
func (e *AnalysisEngine) Export(ctx context.Context, progress chan<- ProgressUpdate, link, format, output string) (*ExportResult, error) {
	report, err := e.Analyze(ctx, progress, link)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{
		PlaylistID:   report.Playlist.ID,
		PlaylistName: report.Playlist.Name,
		Format:       format,
	}

	e.sendProgress(progress, exportingReportUpdate(report.Playlist.Name, format))

	switch format {
	case "csv":
		csvRes, err := formatter.WriteCSVExport(report, output)
		if err != nil {
			return nil, fmt.Errorf("CSV export failed: %w", err)
		}
		result.Files = []string{csvRes.TracksFile, csvRes.MetadataFile}

	case "markdown":
		mdRes, err := formatter.WriteMarkdownExport(report, output, report.Playlist.ArtworkURL)
		if err != nil {
			return nil, fmt.Errorf("markdown export failed: %w", err)
		}
		result.Files = mdRes.Files

	case "txt":
		path, err := formatter.WriteTextExport(report, output)
		if err != nil {
			return nil, fmt.Errorf("text export failed: %w", err)
		}
		result.Files = []string{path}

	case "json", "":
		path, err := formatter.WriteJSONExport(report, output)
		if err != nil {
			return nil, fmt.Errorf("JSON export failed: %w", err)
		}
		result.Files = []string{path}

	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}

	e.sendProgress(progress, exportCompletedUpdate(report.Playlist.Name, len(result.Files)))
	return result, nil
}
