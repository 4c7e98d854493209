package repositories

import (
	"database/sql"
	"fmt"

	"github.com/regio-cloud/regioplayer/internal/models"
)

// PlayLogRepository implements the durable proof-of-play queue.
//
// Append commits before returning, so an entry survives a process crash the
// moment the scheduler has recorded it. Batch removal is keyed by the
// highest row id included in an upload: entries appended while a flush is in
// flight are never deleted by that flush.
type PlayLogRepository struct {
	db *sql.DB
}

// NewPlayLogRepository creates a new PlayLogRepository with the given database connection
func NewPlayLogRepository(db *sql.DB) *PlayLogRepository {
	return &PlayLogRepository{db: db}
}

// Append adds one entry to the queue.
func (r *PlayLogRepository) Append(entry models.PlaybackLogEntry) error {
	query := `
		INSERT INTO playback_logs (media_id, playlist_id, event_type, timestamp)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, entry.MediaID, entry.PlaylistID, entry.EventType, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append playback log: %w", err)
	}
	return nil
}

// All returns every queued entry in insertion order together with the
// highest row id in the batch, for use with [PlayLogRepository.ClearThrough].
func (r *PlayLogRepository) All() ([]models.PlaybackLogEntry, int64, error) {
	query := `
		SELECT id, media_id, playlist_id, event_type, timestamp
		FROM playback_logs
		ORDER BY id ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query playback logs: %w", err)
	}
	defer rows.Close()

	var (
		entries []models.PlaybackLogEntry
		maxID   int64
	)
	for rows.Next() {
		var (
			id    int64
			entry models.PlaybackLogEntry
		)
		if err := rows.Scan(&id, &entry.MediaID, &entry.PlaylistID, &entry.EventType, &entry.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("failed to scan playback log: %w", err)
		}
		entries = append(entries, entry)
		maxID = id
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, maxID, nil
}

// ClearThrough deletes every entry with a row id at or below maxID. Called
// only after the backend has confirmed receipt of the batch.
func (r *PlayLogRepository) ClearThrough(maxID int64) error {
	if _, err := r.db.Exec("DELETE FROM playback_logs WHERE id <= ?", maxID); err != nil {
		return fmt.Errorf("failed to clear playback logs: %w", err)
	}
	return nil
}

// Count returns the number of queued entries.
func (r *PlayLogRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM playback_logs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count playback logs: %w", err)
	}
	return count, nil
}
