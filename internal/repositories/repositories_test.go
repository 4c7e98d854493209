package repositories

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/regio-cloud/regioplayer/internal/models"
	"github.com/regio-cloud/regioplayer/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func testScreen() *models.Screen {
	return &models.Screen{
		UniqueKey:   "abc123def456",
		Name:        "Lobby Screen",
		PairingCode: "X7K2P9",
		Rotation:    90,
	}
}

func testPlaylist() *models.Playlist {
	return &models.Playlist{
		ID:      42,
		Name:    "Morning Program",
		Version: "v7",
		Items: []models.PlaylistItem{
			{URL: "https://cdn.example.com/media/10", Type: "image/jpeg", Duration: 5},
			{URL: "https://cdn.example.com/media/11", Type: "video/mp4", Duration: 30},
		},
	}
}

func TestScreenRepository(t *testing.T) {
	t.Run("GetEmpty", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewScreenRepository(db)
		screen, err := repo.Get()
		if err != nil {
			t.Fatalf("failed to get screen: %v", err)
		}
		if screen != nil {
			t.Errorf("expected nil screen for empty table, got %+v", screen)
		}
	})

	t.Run("SaveAndGet", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewScreenRepository(db)
		screen := testScreen()
		if err := repo.Save(screen); err != nil {
			t.Fatalf("failed to save screen: %v", err)
		}

		retrieved, err := repo.Get()
		if err != nil {
			t.Fatalf("failed to get screen: %v", err)
		}
		if retrieved == nil {
			t.Fatal("expected a screen, got nil")
		}
		if retrieved.UniqueKey != screen.UniqueKey {
			t.Errorf("expected key %s, got %s", screen.UniqueKey, retrieved.UniqueKey)
		}
		if retrieved.Rotation != 90 {
			t.Errorf("expected rotation 90, got %d", retrieved.Rotation)
		}
		if !retrieved.LastSyncAt.IsZero() {
			t.Errorf("expected zero last sync time, got %v", retrieved.LastSyncAt)
		}
	})

	t.Run("SaveUpserts", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewScreenRepository(db)
		screen := testScreen()
		if err := repo.Save(screen); err != nil {
			t.Fatalf("failed to save screen: %v", err)
		}

		screen.Name = "Renamed"
		screen.IsActive = true
		screen.LastSyncAt = time.Now().UTC()
		if err := repo.Save(screen); err != nil {
			t.Fatalf("failed to re-save screen: %v", err)
		}

		retrieved, err := repo.Get()
		if err != nil {
			t.Fatalf("failed to get screen: %v", err)
		}
		if retrieved.Name != "Renamed" {
			t.Errorf("expected updated name, got %s", retrieved.Name)
		}
		if !retrieved.IsActive {
			t.Error("expected screen to be active")
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM screens").Scan(&count); err != nil {
			t.Fatalf("failed to count screens: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 screen row, got %d", count)
		}
	})

	t.Run("ReplaceSwapsIdentity", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewScreenRepository(db)
		if err := repo.Save(testScreen()); err != nil {
			t.Fatalf("failed to save screen: %v", err)
		}

		fresh := &models.Screen{UniqueKey: "fresh999", PairingCode: "AAAA"}
		if err := repo.Replace(fresh); err != nil {
			t.Fatalf("failed to replace screen: %v", err)
		}

		retrieved, err := repo.Get()
		if err != nil {
			t.Fatalf("failed to get screen: %v", err)
		}
		if retrieved.UniqueKey != "fresh999" {
			t.Errorf("expected new identity, got %s", retrieved.UniqueKey)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM screens").Scan(&count); err != nil {
			t.Fatalf("failed to count screens: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 screen row after replace, got %d", count)
		}
	})

	t.Run("SaveRejectsInvalid", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewScreenRepository(db)
		if err := repo.Save(&models.Screen{}); err == nil {
			t.Error("expected validation error for screen without identity")
		}
	})
}

func TestPlaylistRepository(t *testing.T) {
	t.Run("GetEmpty", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		playlist, err := repo.Get()
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if playlist != nil {
			t.Errorf("expected nil playlist for empty table, got %+v", playlist)
		}

		version, err := repo.Version()
		if err != nil {
			t.Fatalf("failed to get version: %v", err)
		}
		if version != "" {
			t.Errorf("expected empty version, got %q", version)
		}
	})

	t.Run("SaveAndGet", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		playlist := testPlaylist()
		playlist.Items[0].LocalPath = "/cache/media_10"
		playlist.Items[0].Checksum = "deadbeef"

		if err := repo.Save(playlist); err != nil {
			t.Fatalf("failed to save playlist: %v", err)
		}

		retrieved, err := repo.Get()
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if retrieved.Version != "v7" {
			t.Errorf("expected version v7, got %s", retrieved.Version)
		}
		if len(retrieved.Items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(retrieved.Items))
		}
		if retrieved.Items[0].LocalPath != "/cache/media_10" {
			t.Error("cache metadata should round-trip through the stored blob")
		}
		if retrieved.Items[0].Checksum != "deadbeef" {
			t.Error("checksum should round-trip through the stored blob")
		}
	})

	t.Run("SaveReplacesWholesale", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if err := repo.Save(testPlaylist()); err != nil {
			t.Fatalf("failed to save playlist: %v", err)
		}

		next := testPlaylist()
		next.ID = 43
		next.Version = "v8"
		next.Items = next.Items[:1]
		if err := repo.Save(next); err != nil {
			t.Fatalf("failed to save replacement playlist: %v", err)
		}

		version, err := repo.Version()
		if err != nil {
			t.Fatalf("failed to get version: %v", err)
		}
		if version != "v8" {
			t.Errorf("expected version v8, got %s", version)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM playlists").Scan(&count); err != nil {
			t.Fatalf("failed to count playlists: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 playlist row, got %d", count)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		if err := repo.Save(testPlaylist()); err != nil {
			t.Fatalf("failed to save playlist: %v", err)
		}
		if err := repo.Clear(); err != nil {
			t.Fatalf("failed to clear playlist: %v", err)
		}

		playlist, err := repo.Get()
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if playlist != nil {
			t.Error("expected nil playlist after clear")
		}
	})

	t.Run("SaveRejectsInvalid", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlaylistRepository(db)
		bad := testPlaylist()
		bad.Items[0].Duration = 0
		if err := repo.Save(bad); err == nil {
			t.Error("expected validation error for zero duration item")
		}
	})
}

func TestPlayLogRepository(t *testing.T) {
	t.Run("AppendAndAll", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlayLogRepository(db)
		for i, event := range []string{models.EventStart, models.EventEnd, models.EventStart} {
			if err := repo.Append(models.NewLogEntry(10+i, 42, event)); err != nil {
				t.Fatalf("failed to append entry %d: %v", i, err)
			}
		}

		entries, maxID, err := repo.All()
		if err != nil {
			t.Fatalf("failed to read queue: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
		if maxID != 3 {
			t.Errorf("expected max row id 3, got %d", maxID)
		}
		if entries[0].MediaID != 10 || entries[2].MediaID != 12 {
			t.Error("entries should come back in insertion order")
		}
	})

	t.Run("ClearThroughKeepsLaterEntries", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlayLogRepository(db)
		for i := 0; i < 3; i++ {
			if err := repo.Append(models.NewLogEntry(i, 1, models.EventStart)); err != nil {
				t.Fatalf("failed to append: %v", err)
			}
		}

		_, maxID, err := repo.All()
		if err != nil {
			t.Fatalf("failed to read queue: %v", err)
		}

		// Entries arriving while the batch upload is in flight.
		if err := repo.Append(models.NewLogEntry(99, 1, models.EventEnd)); err != nil {
			t.Fatalf("failed to append late entry: %v", err)
		}

		if err := repo.ClearThrough(maxID); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}

		remaining, _, err := repo.All()
		if err != nil {
			t.Fatalf("failed to re-read queue: %v", err)
		}
		if len(remaining) != 1 {
			t.Fatalf("expected 1 surviving entry, got %d", len(remaining))
		}
		if remaining[0].MediaID != 99 {
			t.Errorf("expected the late entry to survive, got media %d", remaining[0].MediaID)
		}
	})

	t.Run("SurvivesReopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "player.db")

		db, err := shared.NewDatabase(path)
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		if err := shared.RunMigrations(db); err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}

		repo := NewPlayLogRepository(db)
		if err := repo.Append(models.NewLogEntry(7, 42, models.EventStart)); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		db.Close()

		db, err = shared.NewDatabase(path)
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		entries, _, err := NewPlayLogRepository(db).All()
		if err != nil {
			t.Fatalf("failed to read queue after reopen: %v", err)
		}
		if len(entries) != 1 || entries[0].MediaID != 7 {
			t.Errorf("expected the entry to survive reopen, got %+v", entries)
		}
	})

	t.Run("RejectsUnknownEventType", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlayLogRepository(db)
		bad := models.NewLogEntry(1, 1, "PAUSE")
		if err := repo.Append(bad); err == nil {
			t.Error("expected CHECK constraint to reject unknown event type")
		}
	})

	t.Run("Count", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlayLogRepository(db)
		count, err := repo.Count()
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if count != 0 {
			t.Errorf("expected empty queue, got %d", count)
		}

		if err := repo.Append(models.NewLogEntry(1, 1, models.EventStart)); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		count, err = repo.Count()
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 entry, got %d", count)
		}
	})
}
