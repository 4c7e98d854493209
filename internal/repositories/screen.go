package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/regio-cloud/regioplayer/internal/models"
)

// ScreenRepository persists the device identity.
//
// The screens table holds at most one row. Replacing the identity (after a
// server-side deletion) deletes the old row inside the same transaction that
// inserts the new one, so a crash can never leave the player with two keys.
type ScreenRepository struct {
	db *sql.DB
}

// NewScreenRepository creates a new ScreenRepository with the given database connection
func NewScreenRepository(db *sql.DB) *ScreenRepository {
	return &ScreenRepository{db: db}
}

// Get retrieves the persisted screen identity, or nil when none exists yet.
func (r *ScreenRepository) Get() (*models.Screen, error) {
	query := `
		SELECT unique_key, name, pairing_code, rotation, rotation_updated_at, is_active, created_at, last_sync_at
		FROM screens
		LIMIT 1
	`

	var (
		screen            models.Screen
		rotationUpdatedAt sql.NullTime
		createdAt         sql.NullTime
		lastSyncAt        sql.NullTime
	)

	err := r.db.QueryRow(query).Scan(
		&screen.UniqueKey,
		&screen.Name,
		&screen.PairingCode,
		&screen.Rotation,
		&rotationUpdatedAt,
		&screen.IsActive,
		&createdAt,
		&lastSyncAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan screen: %w", err)
	}

	if rotationUpdatedAt.Valid {
		screen.RotationUpdatedAt = rotationUpdatedAt.Time
	}
	if createdAt.Valid {
		screen.CreatedAt = createdAt.Time
	}
	if lastSyncAt.Valid {
		screen.LastSyncAt = lastSyncAt.Time
	}

	return &screen, nil
}

// Save upserts the screen row keyed by unique_key.
func (r *ScreenRepository) Save(screen *models.Screen) error {
	if err := screen.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if screen.CreatedAt.IsZero() {
		screen.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO screens (unique_key, name, pairing_code, rotation, rotation_updated_at, is_active, created_at, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(unique_key) DO UPDATE SET
			name = excluded.name,
			pairing_code = excluded.pairing_code,
			rotation = excluded.rotation,
			rotation_updated_at = excluded.rotation_updated_at,
			is_active = excluded.is_active,
			last_sync_at = excluded.last_sync_at
	`

	_, err := r.db.Exec(query,
		screen.UniqueKey,
		screen.Name,
		screen.PairingCode,
		screen.Rotation,
		nullableTime(screen.RotationUpdatedAt),
		screen.IsActive,
		screen.CreatedAt,
		nullableTime(screen.LastSyncAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save screen: %w", err)
	}

	return nil
}

// Replace atomically swaps the persisted identity for a new one.
func (r *ScreenRepository) Replace(screen *models.Screen) error {
	if err := screen.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if screen.CreatedAt.IsZero() {
		screen.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM screens"); err != nil {
		return fmt.Errorf("failed to clear old identity: %w", err)
	}

	query := `
		INSERT INTO screens (unique_key, name, pairing_code, rotation, rotation_updated_at, is_active, created_at, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		screen.UniqueKey,
		screen.Name,
		screen.PairingCode,
		screen.Rotation,
		nullableTime(screen.RotationUpdatedAt),
		screen.IsActive,
		screen.CreatedAt,
		nullableTime(screen.LastSyncAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert new identity: %w", err)
	}

	return tx.Commit()
}

// nullableTime maps the zero time to NULL for storage.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
