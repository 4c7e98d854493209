package player

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/regio-cloud/regioplayer/internal/models"
)

// Resolver maps playlist items to playable local paths. Implemented by
// cache.Manager.
type Resolver interface {
	Resolve(item *models.PlaylistItem) (string, bool)
}

// EventSink receives proof-of-play events. Implemented by
// tasks.ProofOfPlayLogger.
type EventSink interface {
	RecordEvent(entry models.PlaybackLogEntry) error
}

// Scheduler drives the playback loop over the current playlist.
type Scheduler struct {
	surface  RenderSurface
	resolver Resolver
	events   EventSink
	logger   *log.Logger

	// tick scales item durations; one duration unit plays for one tick.
	// Production uses the second it defaults to.
	tick time.Duration

	mu       sync.Mutex
	playlist *models.Playlist
	active   *ResolvedItem
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a stopped scheduler. Call SetPlaylist to begin.
func NewScheduler(surface RenderSurface, resolver Resolver, events EventSink, logger *log.Logger) *Scheduler {
	s := &Scheduler{
		surface:  surface,
		resolver: resolver,
		events:   events,
		logger:   logger,
		tick:     time.Second,
	}
	if nop, ok := surface.(*NopSurface); ok && nop.RunEnded == nil {
		nop.RunEnded = s.OnVideoRunEnded
	}
	return s
}

// SetPlaylist replaces the current playlist and restarts playback from the
// first item. A nil playlist stops playback and blanks the surface.
func (s *Scheduler) SetPlaylist(playlist *models.Playlist) {
	s.mu.Lock()
	s.stopLoopLocked()
	s.playlist = playlist
	if playlist == nil || len(playlist.Items) == 0 {
		s.mu.Unlock()
		s.surface.Clear()
		return
	}
	s.startLoopLocked(0)
	s.mu.Unlock()
}

// OnVideoRunEnded resumes the loop after the surface reports that a video
// run finished with lastIndex as its final item.
func (s *Scheduler) OnVideoRunEnded(lastIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playlist == nil || len(s.playlist.Items) == 0 {
		return
	}
	s.stopLoopLocked()
	s.startLoopLocked((lastIndex + 1) % len(s.playlist.Items))
}

// RotationChanged tears down and rebuilds the render pipeline, carrying the
// current position across the rebuild for visual continuity.
func (s *Scheduler) RotationChanged(degrees int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resume := 0
	playing := false
	if s.active != nil {
		resume = s.active.Index
		playing = true
	}
	s.stopLoopLocked()

	if err := s.surface.Rebuild(RebuildState{RotationDegrees: degrees, ResumeIndex: resume, Playing: playing}); err != nil {
		s.logger.Error("render pipeline rebuild failed", "error", err)
	}

	if s.playlist != nil && len(s.playlist.Items) > 0 {
		s.startLoopLocked(resume)
	}
}

// Skip advances past the active item immediately.
func (s *Scheduler) Skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playlist == nil || len(s.playlist.Items) == 0 {
		return
	}
	next := 0
	if s.active != nil {
		next = (s.active.Index + 1) % len(s.playlist.Items)
	}
	s.stopLoopLocked()
	s.startLoopLocked(next)
}

// Stop halts playback, emitting a final END event for the active item.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLoopLocked()
}

// Current returns the item being played, or nil while idle.
func (s *Scheduler) Current() *ResolvedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// stopLoopLocked cancels the running loop, waits for it to exit, and emits
// the END event for whatever was playing. Callers hold s.mu.
func (s *Scheduler) stopLoopLocked() {
	if s.cancel != nil {
		s.cancel()
		done := s.done
		s.cancel = nil
		s.done = nil
		// The loop only touches s.active under s.mu before blocking, so
		// unlocking here is safe and avoids a join deadlock.
		s.mu.Unlock()
		<-done
		s.mu.Lock()
	}
	if s.active != nil {
		playlistID := 0
		if s.playlist != nil {
			playlistID = s.playlist.ID
		}
		s.emitEvent(*s.active, playlistID, models.EventEnd)
		s.active = nil
	}
}

// startLoopLocked launches a new playback goroutine at startIndex. Callers
// hold s.mu and must have stopped any previous loop first.
func (s *Scheduler) startLoopLocked(startIndex int) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	playlist := s.playlist
	go func() {
		defer close(done)
		s.run(ctx, playlist, startIndex)
	}()
}

// run is the playback loop body. It reads the playlist reference it was
// started with; a swap restarts the loop rather than mutating its view.
func (s *Scheduler) run(ctx context.Context, playlist *models.Playlist, startIndex int) {
	items := playlist.Items
	n := len(items)
	i := startIndex % n
	skipped := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item := items[i]
		localPath, ok := s.resolver.Resolve(&item)
		if !ok {
			s.logger.Warn("skipping item with no local media", "url", item.URL)
			i = (i + 1) % n
			skipped++
			if skipped >= n {
				// Nothing in the playlist is playable; hold until the
				// next sync restarts us with cached media.
				s.logger.Error("no playable items in playlist", "playlist", playlist.Name)
				s.surface.Clear()
				return
			}
			continue
		}
		skipped = 0

		resolved := ResolvedItem{Item: item, Index: i, LocalPath: localPath}

		if item.IsVideo() {
			run := s.videoRun(items, i)
			s.transition(resolved, playlist.ID)
			if err := s.surface.PlayVideoRun(run); err != nil {
				s.logger.Error("video run failed, skipping", "error", err)
				i = (run[len(run)-1].Index + 1) % n
				continue
			}
			// The surface owns playback until it calls OnVideoRunEnded.
			return
		}

		s.transition(resolved, playlist.ID)

		var err error
		if item.IsWeb() {
			err = s.surface.ShowWeb(resolved)
		} else {
			err = s.surface.ShowImage(resolved)
		}
		if err != nil {
			s.logger.Error("surface display failed, skipping", "url", item.URL, "error", err)
			i = (i + 1) % n
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(item.Duration) * s.tick):
		}

		i = (i + 1) % n
	}
}

// transition records the END of the previous item and the START of the next.
func (s *Scheduler) transition(next ResolvedItem, playlistID int) {
	s.mu.Lock()
	prev := s.active
	s.active = &next
	s.mu.Unlock()

	if prev != nil {
		s.emitEvent(*prev, playlistID, models.EventEnd)
	}
	s.emitEvent(next, playlistID, models.EventStart)
}

// emitEvent sends one proof-of-play event. Items whose URL does not end in
// a numeric media id are not logged.
func (s *Scheduler) emitEvent(item ResolvedItem, playlistID int, eventType string) {
	mediaID, ok := item.Item.MediaID()
	if !ok {
		return
	}
	entry := models.NewLogEntry(mediaID, playlistID, eventType)
	if err := s.events.RecordEvent(entry); err != nil {
		s.logger.Error("failed to record playback event", "error", err)
	}
}

// videoRun collects the contiguous run of resolvable video items starting
// at index i. The first item is known resolvable; later items with missing
// media are dropped from the run rather than stalling it.
func (s *Scheduler) videoRun(items []models.PlaylistItem, i int) []ResolvedItem {
	var run []ResolvedItem
	for j := i; j < len(items) && items[j].IsVideo(); j++ {
		localPath, ok := s.resolver.Resolve(&items[j])
		if !ok {
			s.logger.Warn("dropping unresolvable video from run", "url", items[j].URL)
			continue
		}
		run = append(run, ResolvedItem{Item: items[j], Index: j, LocalPath: localPath})
	}
	return run
}
