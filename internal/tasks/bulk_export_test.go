package tasks

import (
	"context"
	"strings"
	"testing"

	"github.com/desertthunder/prismatify/internal/services"
	th "github.com/desertthunder/prismatify/internal/testing"
)

func bulkFixture() *mockService {
	svc := analyzerFixture()
	svc.playlists["pl2"] = &services.Playlist{ID: "pl2", Name: "Evening Mix", Owner: "tester", TrackCount: 1}
	svc.tracks["pl2"] = []services.Track{
		{ID: "t3", Name: "Third", Artists: []string{"C"}, DurationMS: 90000, Popularity: 40},
	}
	return svc
}

func TestAnalysisEngine_BulkExport(t *testing.T) {
	t.Run("exports multiple playlists with manifest", func(t *testing.T) {
		tempDir := t.TempDir()
		engine := NewAnalysisEngine(EngineOpts{Service: bulkFixture()})

		links := []string{
			"https://open.spotify.com/playlist/pl1",
			"https://open.spotify.com/playlist/pl2",
		}
		result, err := engine.BulkExport(context.Background(), nil, links, BulkExportOpts{
			Format:    "json",
			OutputDir: tempDir,
		})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}

		if result.TotalPlaylists != 2 {
			t.Errorf("expected 2 total, got %d", result.TotalPlaylists)
		}
		if result.SuccessfulExports != 2 {
			t.Errorf("expected 2 successes, got %d", result.SuccessfulExports)
		}
		if result.FailedExports != 0 {
			t.Errorf("expected 0 failures, got %d", result.FailedExports)
		}

		th.AssertFileExists(t, result.ManifestPath)
		manifest := th.MustReadFile(t, result.ManifestPath)
		if !strings.Contains(manifest, `"format": "json"`) && !strings.Contains(manifest, `"format":"json"`) {
			t.Errorf("manifest missing format field")
		}
		if !strings.Contains(manifest, `"pl1"`) || !strings.Contains(manifest, `"pl2"`) {
			t.Errorf("manifest missing playlist IDs")
		}
		if !strings.Contains(manifest, `"status": "success"`) && !strings.Contains(manifest, `"status":"success"`) {
			t.Errorf("manifest missing success status")
		}

		for _, res := range result.Results {
			for _, file := range res.Files {
				th.AssertFileExists(t, file)
			}
		}
	})

	t.Run("records failures without aborting the run", func(t *testing.T) {
		tempDir := t.TempDir()
		engine := NewAnalysisEngine(EngineOpts{Service: bulkFixture()})

		links := []string{
			"https://open.spotify.com/playlist/pl1",
			"https://open.spotify.com/playlist/missing",
		}
		result, err := engine.BulkExport(context.Background(), nil, links, BulkExportOpts{
			Format:    "csv",
			OutputDir: tempDir,
		})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}

		if result.SuccessfulExports != 1 {
			t.Errorf("expected 1 success, got %d", result.SuccessfulExports)
		}
		if result.FailedExports != 1 {
			t.Errorf("expected 1 failure, got %d", result.FailedExports)
		}

		manifest := th.MustReadFile(t, result.ManifestPath)
		if !strings.Contains(manifest, `"status": "failed"`) && !strings.Contains(manifest, `"status":"failed"`) {
			t.Errorf("manifest missing failed status")
		}
	})

	t.Run("markdown export creates per-playlist directories", func(t *testing.T) {
		tempDir := t.TempDir()
		engine := NewAnalysisEngine(EngineOpts{Service: bulkFixture()})

		result, err := engine.BulkExport(context.Background(), nil,
			[]string{"https://open.spotify.com/playlist/pl1"},
			BulkExportOpts{Format: "markdown", OutputDir: tempDir})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		if result.SuccessfulExports != 1 {
			t.Fatalf("expected 1 success, got %d", result.SuccessfulExports)
		}

		th.AssertDirExists(t, tempDir+"/pl1")
		th.AssertFileExists(t, tempDir+"/pl1/README.md")
	})

	t.Run("invalid link is reported in manifest", func(t *testing.T) {
		tempDir := t.TempDir()
		engine := NewAnalysisEngine(EngineOpts{Service: bulkFixture()})

		result, err := engine.BulkExport(context.Background(), nil,
			[]string{"https://example.com/not-a-playlist!!"},
			BulkExportOpts{OutputDir: tempDir})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		if result.FailedExports != 1 {
			t.Errorf("expected 1 failure, got %d", result.FailedExports)
		}
	})
}

func TestAnalysisEngine_Export(t *testing.T) {
	t.Run("writes report in requested format", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := th.MustGetwd(t)
		th.MustChdir(t, tempDir)
		defer th.MustChdir(t, originalDir)

		engine := NewAnalysisEngine(EngineOpts{Service: bulkFixture()})
		result, err := engine.Export(context.Background(), nil, "playlist/pl1", "txt", "")
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}

		if result.Format != "txt" {
			t.Errorf("expected txt format, got %s", result.Format)
		}
		if len(result.Files) != 1 {
			t.Fatalf("expected 1 file, got %d", len(result.Files))
		}
		th.AssertFileExists(t, result.Files[0])

		content := th.MustReadFile(t, result.Files[0])
		if !strings.Contains(content, "Playlist: Morning Mix") {
			t.Errorf("export missing playlist summary")
		}
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		engine := NewAnalysisEngine(EngineOpts{Service: bulkFixture()})
		if _, err := engine.Export(context.Background(), nil, "playlist/pl1", "xml", ""); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}
