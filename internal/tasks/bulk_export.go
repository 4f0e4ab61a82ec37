package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/prismatify/internal/formatter"
	"github.com/desertthunder/prismatify/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk report exports.
type BulkExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: playlist_reports_{epoch})
	NumWorkers int     // Concurrent workers (default: 5)
	RateLimit  float64 // Analysis starts per second (default: 5)
}

// ReportExportJob pairs a playlist with its analyzed report for a worker.
type ReportExportJob struct {
	PlaylistID string
	Report     *formatter.Report
}

// ReportExportResult records the outcome of exporting a single report.
type ReportExportResult struct {
	PlaylistID   string   `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	Status       string   `json:"status"`
	Files        []string `json:"files,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// BulkExportResult summarizes a bulk export run.
type BulkExportResult struct {
	Format            string               `json:"format"`
	TotalPlaylists    int                  `json:"total_playlists"`
	SuccessfulExports int                  `json:"successful_exports"`
	FailedExports     int                  `json:"failed_exports"`
	Results           []ReportExportResult `json:"results"`
	OutputDirectory   string               `json:"output_directory"`
	ManifestPath      string               `json:"manifest_path,omitempty"`
}

// BulkExport analyzes and exports multiple playlists concurrently with rate limiting and progress tracking.
//
// This method implements a worker pool pattern to efficiently export multiple reports.
// It respects API rate limits, handles partial failures gracefully, and generates a manifest file summarizing the export results.
func (e *AnalysisEngine) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	links []string,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: music service not initialized", shared.ErrServiceUnavailable)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("playlist_reports_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.Format == "" {
		opts.Format = "json"
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		Format:          opts.Format,
		TotalPlaylists:  len(links),
		OutputDirectory: opts.OutputDir,
		Results:         make([]ReportExportResult, 0, len(links)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan ReportExportJob, len(links))
	results := make(chan ReportExportResult, len(links))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		for i, link := range links {
			select {
			case <-ctx.Done():
				close(jobs)
				return
			default:
			}

			if err := limiter.Wait(ctx); err != nil {
				close(jobs)
				return
			}

			playlistID, ok := resolveLink(link)
			if !ok {
				results <- ReportExportResult{
					PlaylistID:   link,
					PlaylistName: fmt.Sprintf("Unknown (%s)", link),
					Status:       "failed",
					Error:        fmt.Sprintf("%v: %q", shared.ErrInvalidPlaylistLink, link),
				}
				continue
			}

			report, err := e.buildReport(ctx, nil, playlistID)
			if err != nil {
				results <- ReportExportResult{
					PlaylistID:   playlistID,
					PlaylistName: fmt.Sprintf("Unknown (%s)", playlistID),
					Status:       "failed",
					Error:        fmt.Sprintf("failed to analyze playlist: %v", err),
				}
				continue
			}

			jobs <- ReportExportJob{
				PlaylistID: playlistID,
				Report:     report,
			}

			e.sendProgress(prog, bulkExportingUpdate(i+1, len(links), report.Playlist.Name))
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Status == "success" {
			result.SuccessfulExports++
			e.sendProgress(prog, bulkCompletedUpdate(
				completed,
				len(links),
				res.PlaylistName,
				len(res.Files),
			))
		} else {
			result.FailedExports++
			e.sendProgress(prog, bulkFailedUpdate(
				completed,
				len(links),
				res.PlaylistName,
				fmt.Errorf("%s", res.Error),
			))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker is a worker goroutine that exports reports from the jobs channel.
func (e *AnalysisEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan ReportExportJob,
	results chan<- ReportExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res := e.exportSingleReport(job, opts)
		results <- res
	}
}

// exportSingleReport writes a single report to the appropriate format.
func (e *AnalysisEngine) exportSingleReport(j ReportExportJob, opts BulkExportOpts) ReportExportResult {
	result := ReportExportResult{
		PlaylistID:   j.PlaylistID,
		PlaylistName: j.Report.Playlist.Name,
		Status:       "failed",
		Files:        []string{},
	}

	switch opts.Format {
	case "csv":
		baseFilepath := filepath.Join(opts.OutputDir, j.Report.Playlist.ID)
		csvRes, err := formatter.WriteCSVExport(j.Report, baseFilepath)
		if err != nil {
			result.Error = fmt.Sprintf("CSV export failed: %v", err)
			return result
		}
		result.Files = []string{csvRes.TracksFile, csvRes.MetadataFile}
		result.Status = "success"

	case "markdown":
		outputDir := filepath.Join(opts.OutputDir, j.Report.Playlist.ID)
		mdRes, err := formatter.WriteMarkdownExport(j.Report, outputDir, j.Report.Playlist.ArtworkURL)
		if err != nil {
			result.Error = fmt.Sprintf("markdown export failed: %v", err)
			return result
		}
		result.Files = mdRes.Files
		result.Status = "success"

	case "txt":
		txtPath := filepath.Join(opts.OutputDir, fmt.Sprintf("%s_tracks.txt", j.Report.Playlist.ID))
		path, err := formatter.WriteTextExport(j.Report, txtPath)
		if err != nil {
			result.Error = fmt.Sprintf("text export failed: %v", err)
			return result
		}
		result.Files = []string{path}
		result.Status = "success"

	case "json":
		fallthrough
	default:
		jsonPath := filepath.Join(opts.OutputDir, fmt.Sprintf("%s.json", j.Report.Playlist.ID))
		path, err := formatter.WriteJSONExport(j.Report, jsonPath)
		if err != nil {
			result.Error = fmt.Sprintf("JSON export failed: %v", err)
			return result
		}
		result.Files = []string{path}
		result.Status = "success"
	}
	return result
}

// writeManifest records the bulk run summary next to the exported files.
func writeManifest(result *BulkExportResult, path string) error {
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
