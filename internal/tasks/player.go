package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/regio-cloud/regioplayer/internal/cache"
	"github.com/regio-cloud/regioplayer/internal/models"
	"github.com/regio-cloud/regioplayer/internal/player"
	"github.com/regio-cloud/regioplayer/internal/repositories"
	"github.com/regio-cloud/regioplayer/internal/shared"
)

// flushTimeout bounds the final log upload during shutdown.
const flushTimeout = 5 * time.Second

// PlayerStatus is a point-in-time snapshot of the running player, consumed
// by the TUI and the status command.
type PlayerStatus struct {
	PairingState PairingState
	PairingCode  string
	ScreenName   string
	Connection   models.ConnectionState
	PlaylistName string
	Version      string
	CurrentURL   string
	CurrentIndex int
	PendingLogs  int
	CacheBytes   int64
}

// Player is the top-level supervisor tying pairing, sync, realtime push,
// proof-of-play and the playback scheduler together. It owns the periodic
// sync loop and the reaction to server-side deactivation.
type Player struct {
	engine    *Engine
	pairing   *PairingCoordinator
	logs      *ProofOfPlayLogger
	realtime  *RealtimeChannel
	scheduler *player.Scheduler
	screens   *repositories.ScreenRepository
	cache     *cache.Manager
	logger    *log.Logger

	syncInterval time.Duration
	progress     chan<- ProgressUpdate
	onFatal      func(reason any)

	mu       sync.Mutex
	last     *models.Playlist
	screen   *models.Screen
	cancel   context.CancelFunc
	done     chan struct{}
	syncReq  chan struct{}
	resetReq chan struct{}
}

// NewPlayer wires the supervisor. progress may be nil when nobody renders
// updates.
func NewPlayer(engine *Engine, pairing *PairingCoordinator, logs *ProofOfPlayLogger, realtime *RealtimeChannel, scheduler *player.Scheduler, screens *repositories.ScreenRepository, cacheManager *cache.Manager, syncInterval time.Duration, progress chan<- ProgressUpdate, logger *log.Logger) *Player {
	if syncInterval <= 0 {
		syncInterval = 60 * time.Second
	}

	p := &Player{
		engine:       engine,
		pairing:      pairing,
		logs:         logs,
		realtime:     realtime,
		scheduler:    scheduler,
		screens:      screens,
		cache:        cacheManager,
		logger:       logger,
		syncInterval: syncInterval,
		progress:     progress,
		syncReq:      make(chan struct{}, 1),
		resetReq:     make(chan struct{}, 1),
	}

	engine.OnRotationChanged(scheduler.RotationChanged)
	realtime.handlers = RealtimeHandlers{
		PlaylistUpdated: p.requestSync,
		ScreenDeleted:   p.requestReset,
	}

	return p
}

// OnFatal installs a handler invoked when the supervisor loop panics. The
// handler decides the relaunch policy, typically exiting so the service
// manager restarts the process. Must be called before [Player.Start].
func (p *Player) OnFatal(fn func(reason any)) {
	p.onFatal = fn
}

// Start establishes the device identity, performs the initial sync and
// launches the periodic loop. It returns once the loop is running;
// activation polling, when needed, happens inside the loop so an unpaired
// player still starts and shows its pairing code.
func (p *Player) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		cancel()
		return errors.New("player already started")
	}
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	screen, err := p.pairing.Initialize(runCtx)
	if err != nil {
		cancel()
		return err
	}
	p.mu.Lock()
	p.screen = screen
	p.mu.Unlock()

	go p.run(runCtx)
	return nil
}

// Stop shuts the player down in order: no new syncs, realtime closed, a
// final END event for whatever was on screen, then a bounded best-effort
// log flush.
func (p *Player) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	p.realtime.Disconnect()
	p.scheduler.Stop()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), flushTimeout)
	defer flushCancel()
	if err := p.logs.Flush(flushCtx); err != nil {
		p.logger.Warn("final log flush failed, entries kept for next start", "error", err)
	}
}

// SyncNow requests an immediate sync pass outside the periodic cadence.
func (p *Player) SyncNow() {
	p.requestSync()
}

// Skip advances playback to the next item.
func (p *Player) Skip() {
	p.scheduler.Skip()
}

// Rotate advances the display rotation by 90 degrees, persists and reports
// it, and rebuilds the render pipeline.
func (p *Player) Rotate(ctx context.Context) error {
	screen, err := p.screens.Get()
	if err != nil {
		return err
	}
	if screen == nil {
		return shared.ErrNotRegistered
	}

	degrees := (screen.Rotation + 90) % 360
	if err := p.engine.ReportRotation(ctx, degrees); err != nil {
		return err
	}
	p.scheduler.RotationChanged(degrees)
	return nil
}

// Status returns a snapshot for display.
func (p *Player) Status() PlayerStatus {
	p.mu.Lock()
	screen := p.screen
	last := p.last
	p.mu.Unlock()

	status := PlayerStatus{
		PairingState: p.pairing.State(),
		Connection:   p.realtime.State(),
	}
	if screen != nil {
		status.PairingCode = screen.PairingCode
		status.ScreenName = screen.Name
	}
	if last != nil {
		status.PlaylistName = last.Name
		status.Version = last.Version
	}
	if active := p.scheduler.Current(); active != nil {
		status.CurrentURL = active.Item.URL
		status.CurrentIndex = active.Index
	}
	if pending, err := p.logs.Pending(); err == nil {
		status.PendingLogs = pending
	}
	if size, err := p.cache.Size(); err == nil {
		status.CacheBytes = size
	}
	return status
}

func (p *Player) run(ctx context.Context) {
	defer close(p.done)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("supervisor loop panicked", "reason", r)
			if p.onFatal != nil {
				p.onFatal(r)
			}
		}
	}()

	p.syncOnce(ctx)

	ticker := time.NewTicker(p.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.syncOnce(ctx)
			if err := p.logs.Flush(ctx); err != nil {
				p.logger.Warn("log flush failed", "error", err)
			}
		case <-p.syncReq:
			p.syncOnce(ctx)
		case <-p.resetReq:
			p.handleDeactivation(ctx)
		}
	}
}

// syncOnce performs one sync pass and reacts to its outcome. Playlists are
// applied by reference comparison: an unchanged sync returns the identical
// pointer, so playback is never restarted for a 304.
func (p *Player) syncOnce(ctx context.Context) {
	playlist, err := p.engine.Sync(ctx, p.progress)

	switch {
	case err == nil:
		if playlist != nil {
			p.pairing.Activate()
		}
		p.applyPlaylist(playlist)
		p.connectRealtime()

	case errors.Is(err, shared.ErrNotActivated):
		// Paired key exists but no program yet; stay on the pairing
		// screen and let the next cycle retry.
		p.logger.Debug("awaiting activation")

	case errors.Is(err, shared.ErrScreenNotFound):
		p.handleDeactivation(ctx)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):

	default:
		p.logger.Warn("sync failed", "error", err)
	}
}

// applyPlaylist hands a playlist to the scheduler only when it actually
// changed.
func (p *Player) applyPlaylist(playlist *models.Playlist) {
	p.mu.Lock()
	changed := playlist != p.last
	p.last = playlist
	p.mu.Unlock()

	if changed {
		p.scheduler.SetPlaylist(playlist)
	}
}

// handleDeactivation reacts to the screen being deleted server-side: stop
// playback, regenerate the identity and re-enter pairing.
func (p *Player) handleDeactivation(ctx context.Context) {
	p.logger.Warn("screen deactivated, regenerating identity")

	p.realtime.Disconnect()
	p.applyPlaylist(nil)

	screen, err := p.pairing.Reset(ctx)
	if err != nil {
		p.logger.Error("identity reset failed", "error", err)
	}
	if screen != nil {
		p.mu.Lock()
		p.screen = screen
		p.mu.Unlock()
	}
}

// connectRealtime is idempotent; the channel ignores it while healthy.
func (p *Player) connectRealtime() {
	p.mu.Lock()
	screen := p.screen
	p.mu.Unlock()
	if screen == nil {
		return
	}

	p.realtime.Connect(screen.UniqueKey, func() string {
		if current := p.engine.Current(); current != nil {
			return current.Version
		}
		return ""
	})
}

// requestSync queues an immediate sync. Coalesces when one is pending.
func (p *Player) requestSync() {
	select {
	case p.syncReq <- struct{}{}:
	default:
	}
}

func (p *Player) requestReset() {
	select {
	case p.resetReq <- struct{}{}:
	default:
	}
}
