package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/prismatify/internal/formatter"
	"github.com/desertthunder/prismatify/internal/shared"
	"github.com/desertthunder/prismatify/internal/tasks"
	"github.com/urfave/cli/v3"
)

// drainProgress consumes progress updates on a background goroutine, logging
// each phase transition. The returned stop function closes the channel and
// waits for the drain to finish.
func (r *Runner) drainProgress() (chan tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase.String())
		}
	}()

	return progress, func() {
		close(progress)
		<-done
	}
}

// Analyze fetches a playlist with its audio features and prints the report.
func (r *Runner) Analyze(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("link")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if link == "" {
		return fmt.Errorf("%w: playlist link or ID", shared.ErrMissingArgument)
	}
	if r.engine == nil {
		return fmt.Errorf("%w: analysis engine not initialized", shared.ErrServiceUnavailable)
	}

	progress, stop := r.drainProgress()
	report, err := r.engine.Analyze(ctx, progress, link)
	stop()
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	r.recordAnalysis(report, cmd.Bool("no-history"))

	if useJSON {
		return r.writeJSON(report, pretty)
	}

	r.printReport(report)
	return nil
}

// recordAnalysis persists a history row for a finished report. History is
// best-effort: failures are logged, never surfaced to the command.
func (r *Runner) recordAnalysis(report *formatter.Report, skip bool) {
	if r.history == nil || skip {
		return
	}

	if prev, err := r.history.Latest(report.Playlist.ID); err == nil {
		delta := len(report.Tracks) - prev.TrackCount
		r.logger.Info("previously analyzed",
			"at", prev.AnalyzedAt.Format("2006-01-02 15:04"), "track_delta", delta)
	}

	record, err := r.history.Record(report)
	if err != nil {
		r.logger.Warn("failed to record analysis history", "error", err)
		return
	}
	r.logger.Debug("analysis recorded", "id", record.ID, "sequence", record.Sequence)
}

// printReport writes the plain-text rendering of a report.
func (r *Runner) printReport(report *formatter.Report) {
	r.writePlainHeader(report.Playlist.Name)

	if report.Playlist.Description != "" {
		r.writePlain("%s\n\n", report.Playlist.Description)
	}
	r.writePlain("Owner: %s\n", report.Playlist.Owner)
	r.writePlain("Tracks: %d\n", len(report.Tracks))
	r.writePlain("Total Duration: %s\n", report.TotalDuration())
	r.writePlain("Average Popularity: %s\n", formatter.FormatPopularity(report.AveragePopularity()))
	if tempo, ok := report.AverageTempo(); ok {
		r.writePlain("Average Tempo: %.1f BPM\n", tempo)
	}

	r.writePlain("\n")
	for i, track := range report.Tracks {
		r.writePlain("%d. %s - %s [%s]\n",
			i+1, strings.Join(track.Artists, ", "), track.Name,
			shared.FormatDuration(track.DurationMS))
	}
}

// Export analyzes a playlist and writes the report to disk.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("link")
	format := cmd.String("format")
	output := cmd.String("output")

	if link == "" {
		return fmt.Errorf("%w: playlist link or ID", shared.ErrMissingArgument)
	}
	if r.engine == nil {
		return fmt.Errorf("%w: analysis engine not initialized", shared.ErrServiceUnavailable)
	}

	progress, stop := r.drainProgress()
	result, err := r.engine.Export(ctx, progress, link, format, output)
	stop()
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	r.writePlain("✓ Exported %s (%s)\n", result.PlaylistName, result.Format)
	for _, file := range result.Files {
		r.writePlain("  %s\n", file)
	}

	return nil
}

// ExportBulk exports reports for multiple playlists with a worker pool.
func (r *Runner) ExportBulk(ctx context.Context, cmd *cli.Command) error {
	links := cmd.Args().Slice()
	if len(links) == 0 {
		return fmt.Errorf("%w: at least one playlist link", shared.ErrMissingArgument)
	}
	if r.engine == nil {
		return fmt.Errorf("%w: analysis engine not initialized", shared.ErrServiceUnavailable)
	}

	opts := tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate"),
	}

	progress, stop := r.drainProgress()
	result, err := r.engine.BulkExport(ctx, progress, links, opts)
	stop()
	if err != nil {
		return fmt.Errorf("bulk export failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlain("✓ Exported %d/%d playlists to %s\n",
		result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)
	for _, res := range result.Results {
		if res.Status == "success" {
			r.writePlain("  ✓ %s\n", res.PlaylistName)
		} else {
			r.writePlain("  ✗ %s: %s\n", res.PlaylistID, res.Error)
		}
	}
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}

	return nil
}

// HistoryList prints recent analyses.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	if r.history == nil {
		return fmt.Errorf("%w: history store not initialized, run 'prismatify setup database'", shared.ErrServiceUnavailable)
	}

	records, err := r.history.Recent(int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}

	if len(records) == 0 {
		r.writePlain("No analyses recorded yet.\n")
		return nil
	}

	for _, record := range records {
		r.writePlain("#%d %s (%s)\n", record.Sequence, record.PlaylistName, record.PlaylistID)
		r.writePlain("   ID: %s\n", record.ID)
		r.writePlain("   Analyzed: %s\n", record.AnalyzedAt.Format("2006-01-02 15:04"))
		r.writePlain("   Tracks: %d, Duration: %s\n",
			record.TrackCount, shared.FormatDuration(record.TotalDurationMS))
		if record.AvgPopularity != nil {
			r.writePlain("   Average Popularity: %s\n",
				formatter.FormatPopularity(*record.AvgPopularity, true))
		}
		r.writePlain("\n")
	}

	return nil
}

// HistoryShow prints a single recorded analysis.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: record ID", shared.ErrMissingArgument)
	}
	if r.history == nil {
		return fmt.Errorf("%w: history store not initialized", shared.ErrServiceUnavailable)
	}

	record, err := r.history.Get(id)
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}

	r.writePlainHeader(record.PlaylistName)
	r.writePlain("Playlist: %s\n", record.PlaylistID)
	r.writePlain("Owner: %s\n", record.Owner)
	r.writePlain("Analyzed: %s\n", record.AnalyzedAt.Format("2006-01-02 15:04:05"))
	r.writePlain("Tracks: %d\n", record.TrackCount)
	r.writePlain("Total Duration: %s\n", shared.FormatDuration(record.TotalDurationMS))
	r.writePlain("Average Popularity: %s\n",
		formatter.FormatPopularity(derefOrZero(record.AvgPopularity), record.AvgPopularity != nil))
	if record.AvgTempo != nil {
		r.writePlain("Average Tempo: %.1f BPM\n", *record.AvgTempo)
	}

	return nil
}

// HistoryDelete removes a recorded analysis.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: record ID", shared.ErrMissingArgument)
	}
	if r.history == nil {
		return fmt.Errorf("%w: history store not initialized", shared.ErrServiceUnavailable)
	}

	if err := r.history.Delete(id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	r.writePlain("✓ Deleted analysis %s\n", id)
	return nil
}

func derefOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
