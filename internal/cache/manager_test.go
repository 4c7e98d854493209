package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/regio-cloud/regioplayer/internal/models"
	"github.com/regio-cloud/regioplayer/internal/shared"
)

// fakeDownloader serves fixed content per URL and counts calls.
type fakeDownloader struct {
	files map[string][]byte
	calls int
	err   error
}

func (d *fakeDownloader) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	d.calls++
	if d.err != nil {
		return 0, d.err
	}
	data, ok := d.files[url]
	if !ok {
		return 0, shared.ErrCacheDownload
	}
	n, err := w.Write(data)
	return int64(n), err
}

func testManager(t *testing.T, maxBytes int64, dl Downloader) *Manager {
	t.Helper()
	m, err := New(t.TempDir(), maxBytes, 0, dl, log.New(io.Discard))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return m
}

func sha256hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestFileNameForURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/media/video.mp4", "media_video.mp4"},
		{"https://cdn.example.com/media/42", "media_42"},
		{"https://cdn.example.com/media/video:1.mp4", "media_video_1.mp4"},
	}
	for _, tc := range tests {
		if got := FileNameForURL(tc.url); got != tc.want {
			t.Errorf("FileNameForURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}

	t.Run("NoBasenameFallsBackToHash", func(t *testing.T) {
		got := FileNameForURL("https://cdn.example.com/")
		if !strings.HasPrefix(got, "media_") || len(got) != len("media_")+16 {
			t.Errorf("expected hash fallback name, got %q", got)
		}
	})
}

func TestEnsureCached(t *testing.T) {
	content := []byte("pretend this is a video")
	url := "https://cdn.example.com/media/10"
	item := func() *models.PlaylistItem {
		return &models.PlaylistItem{URL: url, Type: "video/mp4", Duration: 10}
	}

	t.Run("DownloadsAndFillsMetadata", func(t *testing.T) {
		dl := &fakeDownloader{files: map[string][]byte{url: content}}
		m := testManager(t, 0, dl)

		it := item()
		path, err := m.EnsureCached(context.Background(), it)
		if err != nil {
			t.Fatalf("EnsureCached failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read cached file: %v", err)
		}
		if string(data) != string(content) {
			t.Error("cached content mismatch")
		}
		if it.FileSize != int64(len(content)) {
			t.Errorf("expected size %d, got %d", len(content), it.FileSize)
		}
		if it.Checksum != sha256hex(content) {
			t.Errorf("unexpected checksum %s", it.Checksum)
		}
		if it.CachedAt.IsZero() {
			t.Error("expected CachedAt to be stamped")
		}
	})

	t.Run("HitSkipsDownload", func(t *testing.T) {
		dl := &fakeDownloader{files: map[string][]byte{url: content}}
		m := testManager(t, 0, dl)

		it := item()
		if _, err := m.EnsureCached(context.Background(), it); err != nil {
			t.Fatalf("first EnsureCached failed: %v", err)
		}
		if _, err := m.EnsureCached(context.Background(), it); err != nil {
			t.Fatalf("second EnsureCached failed: %v", err)
		}
		if dl.calls != 1 {
			t.Errorf("expected 1 download, got %d", dl.calls)
		}
	})

	t.Run("CorruptionTriggersRedownload", func(t *testing.T) {
		dl := &fakeDownloader{files: map[string][]byte{url: content}}
		m := testManager(t, 0, dl)

		it := item()
		path, err := m.EnsureCached(context.Background(), it)
		if err != nil {
			t.Fatalf("EnsureCached failed: %v", err)
		}

		// Flip a byte on disk. Size stays the same, so only the checksum
		// catches this.
		corrupted := append([]byte{}, content...)
		corrupted[0] ^= 0xFF
		if err := os.WriteFile(path, corrupted, 0644); err != nil {
			t.Fatalf("failed to corrupt file: %v", err)
		}

		if m.IsCached(it) {
			t.Error("corrupted file should not count as cached")
		}
		if err := m.verify(it); !errors.Is(err, shared.ErrIntegrity) {
			t.Errorf("expected ErrIntegrity for corrupted entry, got %v", err)
		}

		if _, err := m.EnsureCached(context.Background(), it); err != nil {
			t.Fatalf("re-download failed: %v", err)
		}
		if dl.calls != 2 {
			t.Errorf("expected re-download, got %d calls", dl.calls)
		}

		data, _ := os.ReadFile(path)
		if string(data) != string(content) {
			t.Error("expected restored content after re-download")
		}
	})

	t.Run("FailedDownloadLeavesNoPartial", func(t *testing.T) {
		dl := &fakeDownloader{err: errors.New("connection reset")}
		m := testManager(t, 0, dl)

		it := item()
		_, err := m.EnsureCached(context.Background(), it)
		if !errors.Is(err, shared.ErrCacheDownload) {
			t.Fatalf("expected ErrCacheDownload, got %v", err)
		}

		entries, err := os.ReadDir(m.dir)
		if err != nil {
			t.Fatalf("failed to read cache dir: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected empty cache dir after failure, found %d entries", len(entries))
		}
	})

	t.Run("WebPassthrough", func(t *testing.T) {
		dl := &fakeDownloader{}
		m := testManager(t, 0, dl)

		web := &models.PlaylistItem{URL: "https://example.com/board", Type: "web/html", Duration: 30}
		path, err := m.EnsureCached(context.Background(), web)
		if err != nil {
			t.Fatalf("EnsureCached failed: %v", err)
		}
		if path != web.URL {
			t.Errorf("expected URL passthrough, got %s", path)
		}
		if dl.calls != 0 {
			t.Error("web items must not be downloaded")
		}
	})
}

func TestEnforceCapacity(t *testing.T) {
	m := testManager(t, 1000, &fakeDownloader{})

	// Three 400-byte files with distinct access times, oldest first.
	names := []string{"media_a", "media_b", "media_c"}
	base := time.Now().Add(-time.Hour)
	for i, name := range names {
		path := filepath.Join(m.dir, name)
		if err := os.WriteFile(path, make([]byte, 400), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		at := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, at, at); err != nil {
			t.Fatalf("failed to set times: %v", err)
		}
	}

	if err := m.EnforceCapacity(); err != nil {
		t.Fatalf("EnforceCapacity failed: %v", err)
	}

	// 1200 bytes total, cap 1000, target 800: exactly the least recently
	// used file goes.
	if _, err := os.Stat(filepath.Join(m.dir, "media_a")); !os.IsNotExist(err) {
		t.Error("expected oldest file evicted")
	}
	for _, name := range names[1:] {
		if _, err := os.Stat(filepath.Join(m.dir, name)); err != nil {
			t.Errorf("expected %s to survive eviction: %v", name, err)
		}
	}
}

func TestCapacityHoldsAfterCachingPass(t *testing.T) {
	url := "https://cdn.example.com/media/50"
	dl := &fakeDownloader{files: map[string][]byte{url: make([]byte, 80)}}
	m := testManager(t, 100, dl)

	// 90 bytes already cached, accessed an hour ago.
	old := filepath.Join(m.dir, "media_old")
	if err := os.WriteFile(old, make([]byte, 90), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	at := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, at, at); err != nil {
		t.Fatalf("failed to set times: %v", err)
	}

	it := &models.PlaylistItem{URL: url, Type: "video/mp4", Duration: 10}
	if _, err := m.EnsureCached(context.Background(), it); err != nil {
		t.Fatalf("EnsureCached failed: %v", err)
	}

	size, err := m.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size > 100 {
		t.Errorf("cache is %d bytes after the caching pass, cap is 100", size)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expected the stale file evicted, not the fresh download")
	}
	if _, err := os.Stat(m.LocalPath(it)); err != nil {
		t.Errorf("expected downloaded file to survive: %v", err)
	}
}

func TestLRUOrderRespectsAccess(t *testing.T) {
	content := []byte(strings.Repeat("x", 400))
	urls := map[string][]byte{
		"https://cdn.example.com/media/1": content,
		"https://cdn.example.com/media/2": content,
	}
	m := testManager(t, 1000, &fakeDownloader{files: urls})

	one := &models.PlaylistItem{URL: "https://cdn.example.com/media/1", Type: "image/png", Duration: 5}
	two := &models.PlaylistItem{URL: "https://cdn.example.com/media/2", Type: "image/png", Duration: 5}

	for _, it := range []*models.PlaylistItem{one, two} {
		if _, err := m.EnsureCached(context.Background(), it); err != nil {
			t.Fatalf("EnsureCached failed: %v", err)
		}
	}

	// Age both files, then touch file 1 via a cache hit so file 2 becomes
	// the eviction candidate despite being written later.
	old := time.Now().Add(-time.Hour)
	for _, name := range []string{"media_1", "media_2"} {
		if err := os.Chtimes(filepath.Join(m.dir, name), old, old); err != nil {
			t.Fatalf("failed to age file: %v", err)
		}
	}
	if _, err := m.EnsureCached(context.Background(), one); err != nil {
		t.Fatalf("cache hit failed: %v", err)
	}

	// Push over capacity and evict.
	if err := os.WriteFile(filepath.Join(m.dir, "media_3"), make([]byte, 400), 0644); err != nil {
		t.Fatalf("failed to write filler: %v", err)
	}
	if err := m.EnforceCapacity(); err != nil {
		t.Fatalf("EnforceCapacity failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(m.dir, "media_2")); !os.IsNotExist(err) {
		t.Error("expected least recently accessed file evicted")
	}
	if _, err := os.Stat(filepath.Join(m.dir, "media_1")); err != nil {
		t.Error("recently accessed file should survive eviction")
	}
}

func TestSweepUnreferenced(t *testing.T) {
	m := testManager(t, 0, &fakeDownloader{})

	for _, name := range []string{"media_keep.png", "media_stale.mp4"} {
		if err := os.WriteFile(filepath.Join(m.dir, name), []byte("data"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
	}

	playlist := &models.Playlist{
		Items: []models.PlaylistItem{
			{URL: "https://cdn.example.com/media/keep.png", Type: "image/png", Duration: 5},
			{URL: "https://example.com/dashboard", Type: "web/html", Duration: 30},
		},
	}

	if err := m.SweepUnreferenced(playlist); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(m.dir, "media_keep.png")); err != nil {
		t.Error("referenced file should survive sweep")
	}
	if _, err := os.Stat(filepath.Join(m.dir, "media_stale.mp4")); !os.IsNotExist(err) {
		t.Error("unreferenced file should be swept")
	}
}

func TestResolve(t *testing.T) {
	m := testManager(t, 0, &fakeDownloader{})

	item := &models.PlaylistItem{URL: "https://cdn.example.com/media/7", Type: "image/png", Duration: 5}
	if _, ok := m.Resolve(item); ok {
		t.Error("missing media should not resolve")
	}

	if err := os.WriteFile(filepath.Join(m.dir, "media_7"), []byte("img"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	path, ok := m.Resolve(item)
	if !ok {
		t.Fatal("expected media to resolve once present")
	}
	if filepath.Base(path) != "media_7" {
		t.Errorf("unexpected resolved path %s", path)
	}

	web := &models.PlaylistItem{URL: "https://example.com/board", Type: "web/html", Duration: 30}
	if path, ok := m.Resolve(web); !ok || path != web.URL {
		t.Error("web items should resolve to their URL")
	}
}

func TestSizeAndClear(t *testing.T) {
	m := testManager(t, 0, &fakeDownloader{})

	if err := os.WriteFile(filepath.Join(m.dir, "media_x"), make([]byte, 123), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	size, err := m.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 123 {
		t.Errorf("expected size 123, got %d", size)
	}

	if err := m.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	size, err = m.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 0 {
		t.Errorf("expected empty cache, got %d bytes", size)
	}
}
