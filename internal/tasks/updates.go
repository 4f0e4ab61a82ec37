package tasks

import (
	"fmt"

	"github.com/desertthunder/prismatify/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolveLink Phase = iota
	FetchPlaylist
	FetchTracks
	FetchFeatures
	BuildReport
	ExportReport
)

func (p Phase) String() string {
	switch p {
	case ResolveLink:
		return "resolve_link"
	case FetchPlaylist:
		return "fetch_playlist"
	case FetchTracks:
		return "fetch_tracks"
	case FetchFeatures:
		return "fetch_features"
	case BuildReport:
		return "build_report"
	case ExportReport:
		return "export_report"
	default:
		return ""
	}
}

func resolveLinkUpdate(link string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveLink,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Resolving playlist link: %s", link),
	}
}

func fetchPlaylistUpdate(playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s...", playlistID),
	}
}

func foundPlaylistUpdate(playlist *services.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", playlist.Name, playlist.TrackCount),
		Data:    playlist,
	}
}

func fetchTracksUpdate(step, total int) ProgressUpdate {
	if step == 0 {
		return ProgressUpdate{
			Phase:   FetchTracks,
			Step:    step,
			Total:   total,
			Message: "Fetching tracks...",
		}
	}
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] tracks fetched", step, total),
	}
}

func fetchFeaturesUpdate(trackCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFeatures,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching audio features for %d tracks...", trackCount),
	}
}

func buildReportUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BuildReport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Building report for %s...", name),
	}
}

func exportingReportUpdate(name, format string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Exporting %s as %s...", name, format),
	}
}

func exportCompletedUpdate(name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ %s (%d files)", name, filesCount),
	}
}

func bulkExportingUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func bulkCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func bulkFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
