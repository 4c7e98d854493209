package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/regio-cloud/regioplayer/internal/models"
)

// PlaylistRepository persists the current playlist.
//
// The full playlist (including locally derived cache metadata on each item)
// is stored as a JSON blob next to its version token. Saving replaces the
// previous playlist wholesale; there is never more than one row.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Get retrieves the cached playlist, or nil when none has been synced yet.
func (r *PlaylistRepository) Get() (*models.Playlist, error) {
	var data string
	err := r.db.QueryRow("SELECT data FROM playlists LIMIT 1").Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	var playlist models.Playlist
	if err := json.Unmarshal([]byte(data), &playlist); err != nil {
		return nil, fmt.Errorf("failed to decode cached playlist: %w", err)
	}

	return &playlist, nil
}

// Version returns the cached playlist's opaque version token, or "" when no
// playlist is cached. The token is only ever compared for equality.
func (r *PlaylistRepository) Version() (string, error) {
	var version string
	err := r.db.QueryRow("SELECT version FROM playlists LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to scan playlist version: %w", err)
	}
	return version, nil
}

// Save replaces the cached playlist with the given one.
func (r *PlaylistRepository) Save(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	data, err := json.Marshal(playlist)
	if err != nil {
		return fmt.Errorf("failed to encode playlist: %w", err)
	}

	rotation := 0
	if playlist.Rotation != nil {
		rotation = *playlist.Rotation
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM playlists"); err != nil {
		return fmt.Errorf("failed to clear old playlist: %w", err)
	}

	query := `
		INSERT INTO playlists (id, name, version, rotation, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query, playlist.ID, playlist.Name, playlist.Version, rotation, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return tx.Commit()
}

// Clear removes the cached playlist and version, used when the server
// reports the screen as deleted or unpaired.
func (r *PlaylistRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM playlists"); err != nil {
		return fmt.Errorf("failed to clear playlist: %w", err)
	}
	return nil
}
