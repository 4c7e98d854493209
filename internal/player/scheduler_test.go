package player

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/regio-cloud/regioplayer/internal/models"
)

// surfaceCall is one recorded render operation.
type surfaceCall struct {
	kind  string // "image", "web", "video", "rebuild", "clear"
	index int
	run   []ResolvedItem
	state RebuildState
}

// fakeSurface records render operations and exposes them on a channel so
// tests can follow the loop in real time.
type fakeSurface struct {
	calls chan surfaceCall
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{calls: make(chan surfaceCall, 100)}
}

func (f *fakeSurface) ShowImage(item ResolvedItem) error {
	f.calls <- surfaceCall{kind: "image", index: item.Index}
	return nil
}

func (f *fakeSurface) ShowWeb(item ResolvedItem) error {
	f.calls <- surfaceCall{kind: "web", index: item.Index}
	return nil
}

func (f *fakeSurface) PlayVideoRun(run []ResolvedItem) error {
	f.calls <- surfaceCall{kind: "video", index: run[0].Index, run: run}
	return nil
}

func (f *fakeSurface) Rebuild(state RebuildState) error {
	f.calls <- surfaceCall{kind: "rebuild", state: state}
	return nil
}

func (f *fakeSurface) Clear() {
	f.calls <- surfaceCall{kind: "clear"}
}

func (f *fakeSurface) next(t *testing.T) surfaceCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for surface call")
		return surfaceCall{}
	}
}

// mapResolver resolves items present in the map.
type mapResolver struct {
	mu    sync.Mutex
	paths map[string]string
}

func (r *mapResolver) Resolve(item *models.PlaylistItem) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path, ok := r.paths[item.URL]
	return path, ok
}

// recordingSink collects proof-of-play events.
type recordingSink struct {
	mu      sync.Mutex
	entries []models.PlaybackLogEntry
}

func (s *recordingSink) RecordEvent(entry models.PlaybackLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *recordingSink) snapshot() []models.PlaybackLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PlaybackLogEntry{}, s.entries...)
}

func mediaURL(id int) string {
	return fmt.Sprintf("https://cdn.example.com/media/%d", id)
}

// testPlaylist is [image 1, image 2, video 3], all resolvable.
func testPlaylist() (*models.Playlist, *mapResolver) {
	playlist := &models.Playlist{
		ID:      42,
		Name:    "Test Loop",
		Version: "v1",
		Items: []models.PlaylistItem{
			{URL: mediaURL(1), Type: "image/png", Duration: 5},
			{URL: mediaURL(2), Type: "image/png", Duration: 5},
			{URL: mediaURL(3), Type: "video/mp4", Duration: 30},
		},
	}
	resolver := &mapResolver{paths: map[string]string{
		mediaURL(1): "/cache/media_1",
		mediaURL(2): "/cache/media_2",
		mediaURL(3): "/cache/media_3",
	}}
	return playlist, resolver
}

func newTestScheduler(surface RenderSurface, resolver Resolver, sink EventSink) *Scheduler {
	s := NewScheduler(surface, resolver, sink, log.New(io.Discard))
	s.tick = time.Millisecond
	return s
}

func TestSchedulerOrdering(t *testing.T) {
	surface := newFakeSurface()
	playlist, resolver := testPlaylist()
	sink := &recordingSink{}
	s := newTestScheduler(surface, resolver, sink)
	defer s.Stop()

	s.SetPlaylist(playlist)

	if call := surface.next(t); call.kind != "image" || call.index != 0 {
		t.Fatalf("expected image 0 first, got %+v", call)
	}
	if call := surface.next(t); call.kind != "image" || call.index != 1 {
		t.Fatalf("expected image 1 second, got %+v", call)
	}

	call := surface.next(t)
	if call.kind != "video" {
		t.Fatalf("expected video run third, got %+v", call)
	}
	if len(call.run) != 1 || call.run[0].Index != 2 {
		t.Fatalf("expected single-video run at index 2, got %+v", call.run)
	}
	if call.run[0].LocalPath != "/cache/media_3" {
		t.Errorf("video run should carry local paths, got %q", call.run[0].LocalPath)
	}

	// The surface owns playback during the run; reporting its end resumes
	// the loop at the item after the run.
	s.OnVideoRunEnded(2)
	if call := surface.next(t); call.kind != "image" || call.index != 0 {
		t.Fatalf("expected loop to wrap to image 0, got %+v", call)
	}
}

func TestSchedulerEvents(t *testing.T) {
	surface := newFakeSurface()
	playlist, resolver := testPlaylist()
	sink := &recordingSink{}
	s := newTestScheduler(surface, resolver, sink)

	s.SetPlaylist(playlist)

	surface.next(t) // image 0
	surface.next(t) // image 1
	surface.next(t) // video run
	s.Stop()

	entries := sink.snapshot()
	want := []struct {
		mediaID int
		event   string
	}{
		{1, models.EventStart},
		{1, models.EventEnd},
		{2, models.EventStart},
		{2, models.EventEnd},
		{3, models.EventStart},
		{3, models.EventEnd}, // final END from Stop
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(entries), entries)
	}
	for i, w := range want {
		if entries[i].MediaID != w.mediaID || entries[i].EventType != w.event {
			t.Errorf("event %d: expected %s for media %d, got %s for media %d",
				i, w.event, w.mediaID, entries[i].EventType, entries[i].MediaID)
		}
		if entries[i].PlaylistID != 42 {
			t.Errorf("event %d: expected playlist 42, got %d", i, entries[i].PlaylistID)
		}
	}
}

func TestSchedulerSkipsUnresolvable(t *testing.T) {
	surface := newFakeSurface()
	playlist, resolver := testPlaylist()
	sink := &recordingSink{}
	s := newTestScheduler(surface, resolver, sink)
	defer s.Stop()

	// Remove item 0's media; playback must start at item 1.
	resolver.mu.Lock()
	delete(resolver.paths, mediaURL(1))
	resolver.mu.Unlock()

	s.SetPlaylist(playlist)

	if call := surface.next(t); call.kind != "image" || call.index != 1 {
		t.Fatalf("expected loop to skip to image 1, got %+v", call)
	}
}

func TestSchedulerClearsWhenNothingPlayable(t *testing.T) {
	surface := newFakeSurface()
	playlist, _ := testPlaylist()
	sink := &recordingSink{}
	resolver := &mapResolver{paths: map[string]string{}}
	s := newTestScheduler(surface, resolver, sink)
	defer s.Stop()

	s.SetPlaylist(playlist)

	if call := surface.next(t); call.kind != "clear" {
		t.Fatalf("expected surface clear for unplayable playlist, got %+v", call)
	}
}

func TestSchedulerNilPlaylistStops(t *testing.T) {
	surface := newFakeSurface()
	playlist, resolver := testPlaylist()
	sink := &recordingSink{}
	s := newTestScheduler(surface, resolver, sink)

	s.SetPlaylist(playlist)
	surface.next(t) // image 0

	s.SetPlaylist(nil)

	// Drain until the clear; the loop may emit at most one more item
	// between the stop request and the join.
	for i := 0; i < 5; i++ {
		if call := surface.next(t); call.kind == "clear" {
			return
		}
	}
	t.Fatal("expected surface clear after nil playlist")
}

func TestSchedulerRotationChanged(t *testing.T) {
	surface := newFakeSurface()
	playlist, resolver := testPlaylist()
	sink := &recordingSink{}
	s := newTestScheduler(surface, resolver, sink)
	defer s.Stop()

	s.SetPlaylist(playlist)
	surface.next(t) // image 0

	s.RotationChanged(90)

	var rebuild *surfaceCall
	for i := 0; i < 5; i++ {
		call := surface.next(t)
		if call.kind == "rebuild" {
			rebuild = &call
			break
		}
	}
	if rebuild == nil {
		t.Fatal("expected a rebuild call after rotation change")
	}
	if rebuild.state.RotationDegrees != 90 {
		t.Errorf("expected 90 degrees, got %d", rebuild.state.RotationDegrees)
	}
	if !rebuild.state.Playing {
		t.Error("expected playing state carried across rebuild")
	}

	// Playback resumes at the item that was active.
	call := surface.next(t)
	if call.kind != "image" || call.index != rebuild.state.ResumeIndex {
		t.Fatalf("expected resume at index %d, got %+v", rebuild.state.ResumeIndex, call)
	}
}

func TestNopSurfaceAdvancesPastVideo(t *testing.T) {
	playlist := &models.Playlist{
		ID:      42,
		Name:    "Headless Loop",
		Version: "v1",
		Items: []models.PlaylistItem{
			{URL: mediaURL(1), Type: "video/mp4", Duration: 1},
			{URL: mediaURL(2), Type: "image/png", Duration: 1},
		},
	}
	resolver := &mapResolver{paths: map[string]string{
		mediaURL(1): "/cache/media_1",
		mediaURL(2): "/cache/media_2",
	}}

	surface := NewNopSurface()
	surface.Tick = time.Millisecond
	sink := &recordingSink{}
	s := newTestScheduler(surface, resolver, sink)
	defer s.Stop()

	s.SetPlaylist(playlist)

	// The headless surface must end the video run on its own so the loop
	// reaches the image that follows it.
	want := []struct {
		mediaID int
		event   string
	}{
		{1, models.EventStart},
		{1, models.EventEnd},
		{2, models.EventStart},
	}

	deadline := time.After(2 * time.Second)
	for {
		entries := sink.snapshot()
		if len(entries) >= len(want) {
			for i, w := range want {
				if entries[i].MediaID != w.mediaID || entries[i].EventType != w.event {
					t.Fatalf("event %d = %+v, want media %d %s", i, entries[i], w.mediaID, w.event)
				}
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("playback never advanced past the video item; events: %+v", entries)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSchedulerCurrent(t *testing.T) {
	surface := newFakeSurface()
	playlist, resolver := testPlaylist()
	sink := &recordingSink{}
	s := newTestScheduler(surface, resolver, sink)

	if s.Current() != nil {
		t.Error("expected no active item before playback")
	}

	s.SetPlaylist(playlist)
	surface.next(t)

	active := s.Current()
	if active == nil || active.Index != 0 {
		t.Errorf("expected active item 0, got %+v", active)
	}

	s.Stop()
	if s.Current() != nil {
		t.Error("expected no active item after stop")
	}
}
