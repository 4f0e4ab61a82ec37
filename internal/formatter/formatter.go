// package formatter turns analysis results into terminal summaries and export files (CSV, Markdown, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/prismatify/internal/services"
	"github.com/desertthunder/prismatify/internal/shared"
)

// Report is the presentation model for an analyzed playlist: metadata plus
// the full track listing with popularity and tempo attached.
type Report struct {
	Playlist services.Playlist
	Tracks   []services.Track
}

// TotalDurationMS sums the duration of every track in milliseconds.
func (r *Report) TotalDurationMS() int {
	total := 0
	for _, track := range r.Tracks {
		total += track.DurationMS
	}
	return total
}

// TotalDuration renders the summed duration as M:SS.
func (r *Report) TotalDuration() string {
	return shared.FormatDuration(r.TotalDurationMS())
}

// AveragePopularity returns the mean track popularity (0–100).
//
// The boolean is false when the report holds no tracks; callers render a
// placeholder instead of a number in that case.
func (r *Report) AveragePopularity() (float64, bool) {
	if len(r.Tracks) == 0 {
		return 0, false
	}
	sum := 0
	for _, track := range r.Tracks {
		sum += track.Popularity
	}
	return float64(sum) / float64(len(r.Tracks)), true
}

// AverageTempo returns the mean tempo in BPM over tracks that have feature
// data, false when none do.
func (r *Report) AverageTempo() (float64, bool) {
	sum := 0.0
	count := 0
	for _, track := range r.Tracks {
		if track.TempoBPM > 0 {
			sum += track.TempoBPM
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// FormatPopularity renders an average popularity to one decimal place, or a
// dash when there is nothing to average.
func FormatPopularity(value float64, ok bool) string {
	if !ok {
		return "–"
	}
	return strconv.FormatFloat(value, 'f', 1, 64)
}

func visibilityString(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}

// ExportToCSV converts a Report to CSV with columns: ID, Title, Artist, Album, Duration, Popularity, Tempo
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "Popularity", "Tempo"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range report.Tracks {
		record := []string{
			track.ID,
			track.Name,
			strings.Join(track.Artists, ", "),
			track.Album,
			shared.FormatDuration(track.DurationMS),
			strconv.Itoa(track.Popularity),
			strconv.FormatFloat(track.TempoBPM, 'f', 1, 64),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Report to Markdown with optional cover image
func ExportToMarkdown(report *Report, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", report.Playlist.Name))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", imageFilename))
	}

	if report.Playlist.Description != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", report.Playlist.Description))
	}

	buf.WriteString(fmt.Sprintf("**Owner**: %s\n", report.Playlist.Owner))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n", len(report.Tracks)))
	buf.WriteString(fmt.Sprintf("**Total Duration**: %s\n", report.TotalDuration()))
	buf.WriteString(fmt.Sprintf("**Average Popularity**: %s\n", FormatPopularity(report.AveragePopularity())))
	buf.WriteString(fmt.Sprintf("**Visibility**: %s\n\n", visibilityString(report.Playlist.Public)))

	buf.WriteString("## Tracks\n\n")
	for i, track := range report.Tracks {
		duration := shared.FormatDuration(track.DurationMS)
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%s]\n",
			i+1, strings.Join(track.Artists, ", "), track.Name, albumPart, duration))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Report to the plain text summary shown in the terminal
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", report.Playlist.Name))
	if report.Playlist.Owner != "" {
		buf.WriteString(fmt.Sprintf("Owner: %s\n", report.Playlist.Owner))
	}
	if report.Playlist.Description != "" {
		buf.WriteString(fmt.Sprintf("Description: %s\n", report.Playlist.Description))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d\n", len(report.Tracks)))
	buf.WriteString(fmt.Sprintf("Total duration: %s\n", report.TotalDuration()))
	buf.WriteString(fmt.Sprintf("Average popularity: %s\n\n", FormatPopularity(report.AveragePopularity())))

	for i, track := range report.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s [%s]\n",
			i+1, strings.Join(track.Artists, ", "), track.Name, shared.FormatDuration(track.DurationMS)))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a Report to indented JSON
func ExportToJSON(report *Report) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without tracks)
func ToMetadataJSON(playlist services.Playlist) ([]byte, error) {
	return shared.MarshalJSON(playlist, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a report to CSV format with accompanying metadata JSON file.
//
// Defaults to playlist ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(report *Report, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = report.Playlist.ID
	}

	csvData, err := ExportToCSV(report)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(report.Playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a report to Markdown format in a dedicated directory.
//
// Directory name defaults to the playlist ID.
// The imageURL parameter is optional - if provided, attempts to download the cover image.
// Creates a directory structure: {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(report *Report, outputDir string, imageURL string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = report.Playlist.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := fmt.Sprintf("%s/%s", outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(report, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := fmt.Sprintf("%s/README.md", outputDir)
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a report summary to plain text format.
//
// Defaults to {playlist.ID}_tracks.txt as the filename.
func WriteTextExport(report *Report, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_tracks.txt", report.Playlist.ID)
	}

	textData, err := ExportToText(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}

// WriteJSONExport exports the full report as JSON.
//
// Defaults to {playlist.ID}.json as the filename.
func WriteJSONExport(report *Report, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s.json", report.Playlist.ID)
	}

	jsonData, err := ExportToJSON(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate JSON: %w", err)
	}

	if err := os.WriteFile(filepath, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}

	return filepath, nil
}
