package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/regio-cloud/regioplayer/internal/cache"
	"github.com/regio-cloud/regioplayer/internal/models"
	"github.com/regio-cloud/regioplayer/internal/repositories"
	"github.com/regio-cloud/regioplayer/internal/services"
	"github.com/regio-cloud/regioplayer/internal/shared"
)

// Engine performs the conditional playlist sync for one screen.
//
// Sync calls are serialized behind a mutex: the realtime channel may trigger
// a sync concurrently with the periodic timer, and running the second pass
// after the first is redundant but never corrupting.
type Engine struct {
	backend   services.Backend
	screens   *repositories.ScreenRepository
	playlists *repositories.PlaylistRepository
	cache     *cache.Manager
	logger    *log.Logger

	mu      sync.Mutex
	current *models.Playlist

	onRotation func(degrees int)
}

// NewEngine creates a sync engine over the given backend and local state.
func NewEngine(backend services.Backend, screens *repositories.ScreenRepository, playlists *repositories.PlaylistRepository, cacheManager *cache.Manager, logger *log.Logger) *Engine {
	return &Engine{
		backend:   backend,
		screens:   screens,
		playlists: playlists,
		cache:     cacheManager,
		logger:    logger,
	}
}

// OnRotationChanged registers the callback invoked when the server reports
// a rotation differing from the stored one. The playback scheduler uses it
// to rebuild its render pipeline.
func (e *Engine) OnRotationChanged(fn func(degrees int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onRotation = fn
}

// Current returns the in-memory current playlist reference, loading it from
// storage on first use. Returns nil when nothing has ever been synced.
func (e *Engine) Current() *models.Playlist {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentLocked()
}

func (e *Engine) currentLocked() *models.Playlist {
	if e.current == nil {
		playlist, err := e.playlists.Get()
		if err != nil {
			e.logger.Warn("failed to load cached playlist", "error", err)
			return nil
		}
		e.current = playlist
	}
	return e.current
}

// Sync performs one conditional sync pass.
//
// The returned playlist is reference-identical to the previous one when the
// server reports no change. On network failure the cached playlist is
// served when one exists so offline playback continues; the error is
// returned only when there is nothing to fall back to.
func (e *Engine) Sync(ctx context.Context, progress chan<- ProgressUpdate) (*models.Playlist, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	screen, err := e.screens.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load screen: %w", err)
	}
	if screen == nil {
		return nil, shared.ErrNotRegistered
	}

	version := ""
	if current := e.currentLocked(); current != nil {
		version = current.Version
	}

	sendProgress(progress, syncingUpdate())

	result, err := e.backend.Sync(ctx, screen.UniqueKey, version)
	if err != nil {
		return e.classifySyncError(err)
	}

	if result.Status == services.SyncUnchanged {
		current := e.currentLocked()
		if current == nil {
			// 304 with an empty local cache is a state inconsistency; a
			// retry without a version header recovers on the next cycle.
			return nil, fmt.Errorf("%w: server reported unchanged but no playlist is cached", shared.ErrNoPlaylist)
		}
		e.logger.Debug("playlist unchanged", "version", current.Version)
		e.touchLastSync(screen)
		return current, nil
	}

	newPlaylist := result.Playlist
	e.logger.Info("playlist update received", "name", newPlaylist.Name, "version", newPlaylist.Version, "items", len(newPlaylist.Items))

	if err := e.cacheMedia(ctx, newPlaylist, progress); err != nil {
		// Leave the old playlist and version in place so the next sync
		// retries the download instead of playing a half-cached program.
		return nil, err
	}

	if err := e.playlists.Save(newPlaylist); err != nil {
		return nil, fmt.Errorf("failed to persist playlist: %w", err)
	}
	e.current = newPlaylist

	e.applyServerRotation(screen, newPlaylist)

	if newPlaylist.ScreenName != "" {
		screen.Name = newPlaylist.ScreenName
	}
	screen.IsActive = true
	e.touchLastSync(screen)

	sendProgress(progress, sweepUpdate())
	if err := e.cache.SweepUnreferenced(newPlaylist); err != nil {
		e.logger.Warn("cache sweep failed", "error", err)
	}

	return e.current, nil
}

// Deactivate clears the cached playlist and version, the recovery path for
// a screen deleted or un-paired server-side.
func (e *Engine) Deactivate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
	if err := e.playlists.Clear(); err != nil {
		return fmt.Errorf("failed to clear playlist: %w", err)
	}
	return nil
}

// ReportRotation persists a locally initiated rotation change and reports
// it to the backend so the dashboard stays in agreement.
func (e *Engine) ReportRotation(ctx context.Context, degrees int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	screen, err := e.screens.Get()
	if err != nil {
		return fmt.Errorf("failed to load screen: %w", err)
	}
	if screen == nil {
		return shared.ErrNotRegistered
	}

	now := time.Now().UTC()
	screen.Rotation = degrees
	screen.RotationUpdatedAt = now
	if err := e.screens.Save(screen); err != nil {
		return fmt.Errorf("failed to persist rotation: %w", err)
	}

	if err := e.backend.ReportRotation(ctx, screen.UniqueKey, degrees, now.Format(time.RFC3339)); err != nil {
		// Local state already holds the change; the server catches up on
		// its next sync response.
		e.logger.Warn("rotation report failed", "error", err)
	}

	return nil
}

// classifySyncError maps a backend error to the offline fallback or passes
// it through. Callers hold e.mu.
func (e *Engine) classifySyncError(err error) (*models.Playlist, error) {
	switch {
	case errors.Is(err, shared.ErrScreenNotFound):
		e.logger.Warn("screen deleted or unpaired server-side, clearing playlist")
		e.current = nil
		if clearErr := e.playlists.Clear(); clearErr != nil {
			e.logger.Error("failed to clear playlist after deactivation", "error", clearErr)
		}
		return nil, err

	case errors.Is(err, shared.ErrNotActivated):
		return nil, err

	case errors.Is(err, shared.ErrNetwork):
		if current := e.currentLocked(); current != nil {
			e.logger.Warn("sync failed, continuing with cached playlist", "error", err)
			return current, nil
		}
		return nil, err

	default:
		return nil, err
	}
}

// cacheMedia materializes every non-web item locally, one at a time to
// bound bandwidth and disk contention.
func (e *Engine) cacheMedia(ctx context.Context, playlist *models.Playlist, progress chan<- ProgressUpdate) error {
	total := 0
	for _, item := range playlist.Items {
		if !item.IsWeb() {
			total++
		}
	}

	step := 0
	for i := range playlist.Items {
		item := &playlist.Items[i]
		if item.IsWeb() {
			continue
		}
		step++
		sendProgress(progress, downloadUpdate(step, total, item.URL))
		if _, err := e.cache.EnsureCached(ctx, item); err != nil {
			return fmt.Errorf("failed to cache %s: %w", item.URL, err)
		}
	}

	return nil
}

// applyServerRotation adopts the server's rotation when its timestamp is
// newer than the locally stored one. Callers hold e.mu.
func (e *Engine) applyServerRotation(screen *models.Screen, playlist *models.Playlist) {
	if playlist.Rotation == nil || playlist.RotationUpdatedAt == "" {
		return
	}

	serverAt, err := time.Parse(time.RFC3339, playlist.RotationUpdatedAt)
	if err != nil {
		e.logger.Warn("unparseable rotation timestamp", "value", playlist.RotationUpdatedAt)
		return
	}
	if !screen.RotationUpdatedAt.IsZero() && !serverAt.After(screen.RotationUpdatedAt) {
		return
	}
	if *playlist.Rotation == screen.Rotation {
		return
	}

	screen.Rotation = *playlist.Rotation
	screen.RotationUpdatedAt = serverAt
	e.logger.Info("rotation updated from server", "degrees", screen.Rotation)

	if e.onRotation != nil {
		e.onRotation(screen.Rotation)
	}
}

// touchLastSync stamps and persists the screen's last sync time. Callers
// hold e.mu.
func (e *Engine) touchLastSync(screen *models.Screen) {
	screen.LastSyncAt = time.Now().UTC()
	if err := e.screens.Save(screen); err != nil {
		e.logger.Warn("failed to persist last sync time", "error", err)
	}
}
