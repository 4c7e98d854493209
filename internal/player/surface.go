package player

import (
	"sync"
	"time"

	"github.com/regio-cloud/regioplayer/internal/models"
)

// ResolvedItem pairs a playlist item with its position and playable path.
type ResolvedItem struct {
	Item      models.PlaylistItem
	Index     int
	LocalPath string
}

// RebuildState carries playback continuity across a render pipeline rebuild
// so a rotation change does not visually restart the program.
type RebuildState struct {
	RotationDegrees int
	ResumeIndex     int
	Playing         bool
}

// RenderSurface is the boundary between the scheduler and whatever actually
// puts pixels on the screen (GUI shell, TUI shell, or a test double). The
// scheduler stays agnostic to how surfaces are created or recreated.
type RenderSurface interface {
	// ShowImage displays a still image for the item's duration.
	ShowImage(item ResolvedItem) error

	// ShowWeb displays web content; the URL is passed through uncached.
	ShowWeb(item ResolvedItem) error

	// PlayVideoRun hands a contiguous run of video items to the surface.
	// When the run's last item finishes the surface must call the
	// scheduler's OnVideoRunEnded with the run's final index.
	PlayVideoRun(run []ResolvedItem) error

	// Rebuild tears down and recreates the render pipeline after a
	// rotation change, preserving the given playback state.
	Rebuild(state RebuildState) error

	// Clear blanks the surface when there is nothing to play.
	Clear()
}

// NopSurface is a RenderSurface that renders nothing, for headless operation
// and tests. It still honors the playback contract: a video run completes
// after its summed durations, reported through RunEnded, so the loop keeps
// advancing and proof-of-play events keep flowing without a video pipeline.
type NopSurface struct {
	// RunEnded reports video run completion. [NewScheduler] wires it to
	// [Scheduler.OnVideoRunEnded] when left nil.
	RunEnded func(lastIndex int)
	// Tick scales one duration unit. Defaults to a second.
	Tick time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewNopSurface creates a headless surface with real-time pacing.
func NewNopSurface() *NopSurface {
	return &NopSurface{Tick: time.Second}
}

func (n *NopSurface) ShowImage(ResolvedItem) error { return nil }
func (n *NopSurface) ShowWeb(ResolvedItem) error   { return nil }

// PlayVideoRun schedules the run-ended callback after the run's total
// duration, standing in for actual video playback.
func (n *NopSurface) PlayVideoRun(run []ResolvedItem) error {
	if len(run) == 0 {
		return nil
	}

	total := 0
	for _, item := range run {
		total += item.Item.Duration
	}
	last := run[len(run)-1].Index

	tick := n.Tick
	if tick <= 0 {
		tick = time.Second
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(time.Duration(total)*tick, func() {
		if n.RunEnded != nil {
			n.RunEnded(last)
		}
	})
	return nil
}

func (n *NopSurface) Rebuild(RebuildState) error { return nil }

// Clear cancels any pending run completion so a stale callback cannot
// resume a playlist that was swapped out.
func (n *NopSurface) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
