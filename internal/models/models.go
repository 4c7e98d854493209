package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Playback log event types.
const (
	EventStart = "START"
	EventEnd   = "END"
)

// Screen represents the persistent device identity recognized by the backend.
//
// UniqueKey is immutable once generated; it is destroyed and regenerated only
// when the server reports the screen as deleted or unpaired.
type Screen struct {
	UniqueKey         string
	Name              string
	PairingCode       string
	Rotation          int
	RotationUpdatedAt time.Time
	IsActive          bool
	CreatedAt         time.Time
	LastSyncAt        time.Time
}

// Validate checks that the screen carries a usable identity.
func (s *Screen) Validate() error {
	if s.UniqueKey == "" {
		return fmt.Errorf("screen is missing a unique key")
	}
	if s.PairingCode == "" {
		return fmt.Errorf("screen is missing a pairing code")
	}
	return nil
}

// Playlist is the current playback program for a screen.
//
// Version is an opaque token compared only for equality; the client never
// orders versions. Rotation and RotationUpdatedAt piggyback on the sync
// response so the server can push orientation changes.
type Playlist struct {
	ID                int            `json:"id"`
	Name              string         `json:"name"`
	Items             []PlaylistItem `json:"items"`
	Version           string         `json:"playlist_version"`
	ScreenName        string         `json:"screen_name,omitempty"`
	Rotation          *int           `json:"rotation,omitempty"`
	RotationUpdatedAt string         `json:"rotation_updated_at,omitempty"`
}

// Validate checks wire-level invariants on a freshly parsed playlist.
func (p *Playlist) Validate() error {
	for i, item := range p.Items {
		if item.URL == "" {
			return fmt.Errorf("playlist item %d has no URL", i)
		}
		if item.Duration < 1 {
			return fmt.Errorf("playlist item %d has duration %d, want >= 1", i, item.Duration)
		}
	}
	return nil
}

// PlaylistItem is one entry in a playlist.
//
// Type is a content-type-like tag from the server ("image/jpeg",
// "video/mp4", "web/html"). The LocalPath, FileSize, Checksum and CachedAt
// fields are derived locally by the media cache and round-trip through the
// persisted playlist blob only.
type PlaylistItem struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	Duration int    `json:"duration"`

	LocalPath string    `json:"local_path,omitempty"`
	FileSize  int64     `json:"file_size,omitempty"`
	Checksum  string    `json:"checksum,omitempty"`
	CachedAt  time.Time `json:"cached_at,omitzero"`
}

// IsImage reports whether the item renders as a still image.
func (i PlaylistItem) IsImage() bool { return strings.HasPrefix(i.Type, "image/") }

// IsVideo reports whether the item renders as a video.
func (i PlaylistItem) IsVideo() bool { return strings.HasPrefix(i.Type, "video/") }

// IsWeb reports whether the item is web content, which is never cached.
func (i PlaylistItem) IsWeb() bool { return strings.HasPrefix(i.Type, "web/") }

// MediaID derives the numeric media identifier from the item URL, which the
// backend terminates with the media's database id. Returns false when the
// last path segment is not numeric (such items are not logged).
func (i PlaylistItem) MediaID() (int, bool) {
	seg := i.URL
	if idx := strings.LastIndex(seg, "/"); idx >= 0 {
		seg = seg[idx+1:]
	}
	id, err := strconv.Atoi(seg)
	if err != nil {
		return 0, false
	}
	return id, true
}

// PlaybackLogEntry is one proof-of-play event.
//
// Entries are appended to a durable local queue before playback continues and
// removed only after a confirmed batch upload.
type PlaybackLogEntry struct {
	MediaID    int    `json:"media_id"`
	PlaylistID int    `json:"playlist_id"`
	EventType  string `json:"event_type"`
	Timestamp  string `json:"timestamp"`
}

// NewLogEntry builds a playback log entry stamped with the current UTC time.
func NewLogEntry(mediaID, playlistID int, eventType string) PlaybackLogEntry {
	return PlaybackLogEntry{
		MediaID:    mediaID,
		PlaylistID: playlistID,
		EventType:  eventType,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// ConnectionState tracks the realtime channel lifecycle.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}
