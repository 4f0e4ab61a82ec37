package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/prismatify/internal/formatter"
	"github.com/desertthunder/prismatify/internal/shared"
)

// AnalysisRecord is a persisted summary of one completed playlist analysis.
//
// Aggregates are denormalized at write time so history listings never need
// the track data, which lives only in exported files.
type AnalysisRecord struct {
	ID              string
	Sequence        int
	PlaylistID      string
	PlaylistName    string
	Owner           string
	TrackCount      int
	TotalDurationMS int
	AvgPopularity   *float64 // nil when the playlist had no tracks
	AvgTempo        *float64 // nil when no track had feature data
	AnalyzedAt      time.Time
	DeletedAt       *time.Time
}

// HistoryRepository persists analysis records with soft delete support.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record inserts a history row derived from a finished report.
func (r *HistoryRepository) Record(report *formatter.Report) (*AnalysisRecord, error) {
	sequence, err := NextSequence(r.db, "analyses")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}

	record := &AnalysisRecord{
		ID:              shared.GenerateID(),
		Sequence:        sequence,
		PlaylistID:      report.Playlist.ID,
		PlaylistName:    report.Playlist.Name,
		Owner:           report.Playlist.Owner,
		TrackCount:      len(report.Tracks),
		TotalDurationMS: report.TotalDurationMS(),
		AnalyzedAt:      time.Now(),
	}
	if avg, ok := report.AveragePopularity(); ok {
		record.AvgPopularity = &avg
	}
	if tempo, ok := report.AverageTempo(); ok {
		record.AvgTempo = &tempo
	}

	query := `
		INSERT INTO analyses (id, sequence, playlist_id, playlist_name, owner, track_count, total_duration_ms, avg_popularity, avg_tempo, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		record.ID,
		record.Sequence,
		record.PlaylistID,
		record.PlaylistName,
		record.Owner,
		record.TrackCount,
		record.TotalDurationMS,
		record.AvgPopularity,
		record.AvgTempo,
		record.AnalyzedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert analysis record: %w", err)
	}

	return record, nil
}

// Get retrieves an analysis record by ID, excluding soft-deleted records
func (r *HistoryRepository) Get(id string) (*AnalysisRecord, error) {
	query := `
		SELECT id, sequence, playlist_id, playlist_name, owner, track_count, total_duration_ms, avg_popularity, avg_tempo, analyzed_at, deleted_at
		FROM analyses
		WHERE id = ? AND deleted_at IS NULL
	`

	record, err := scanRecord(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis record not found: %s", id)
	}
	return record, err
}

// Latest retrieves the most recent record for a playlist, excluding soft-deleted records
func (r *HistoryRepository) Latest(playlistID string) (*AnalysisRecord, error) {
	query := `
		SELECT id, sequence, playlist_id, playlist_name, owner, track_count, total_duration_ms, avg_popularity, avg_tempo, analyzed_at, deleted_at
		FROM analyses
		WHERE playlist_id = ? AND deleted_at IS NULL
		ORDER BY sequence DESC
		LIMIT 1
	`

	record, err := scanRecord(r.db.QueryRow(query, playlistID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no analysis recorded for playlist: %s", playlistID)
	}
	return record, err
}

// Recent lists the newest records first, up to the given limit.
func (r *HistoryRepository) Recent(limit int) ([]*AnalysisRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, sequence, playlist_id, playlist_name, owner, track_count, total_duration_ms, avg_popularity, avg_tempo, analyzed_at, deleted_at
		FROM analyses
		WHERE deleted_at IS NULL
		ORDER BY sequence DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis history: %w", err)
	}
	defer rows.Close()

	var records []*AnalysisRecord
	for rows.Next() {
		record, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Delete soft-deletes an analysis record by ID
func (r *HistoryRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE analyses
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("analysis record not found or already deleted: %s", id)
	}

	return nil
}

func scanRecord(row *sql.Row) (*AnalysisRecord, error) {
	var (
		record    AnalysisRecord
		deletedAt sql.NullTime
	)

	err := row.Scan(
		&record.ID, &record.Sequence, &record.PlaylistID, &record.PlaylistName,
		&record.Owner, &record.TrackCount, &record.TotalDurationMS,
		&record.AvgPopularity, &record.AvgTempo, &record.AnalyzedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan analysis record: %w", err)
	}

	if deletedAt.Valid {
		record.DeletedAt = &deletedAt.Time
	}
	return &record, nil
}

func scanRecordRows(rows *sql.Rows) (*AnalysisRecord, error) {
	var (
		record    AnalysisRecord
		deletedAt sql.NullTime
	)

	err := rows.Scan(
		&record.ID, &record.Sequence, &record.PlaylistID, &record.PlaylistName,
		&record.Owner, &record.TrackCount, &record.TotalDurationMS,
		&record.AvgPopularity, &record.AvgTempo, &record.AnalyzedAt, &deletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan analysis record: %w", err)
	}

	if deletedAt.Valid {
		record.DeletedAt = &deletedAt.Time
	}
	return &record, nil
}
