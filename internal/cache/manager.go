package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/regio-cloud/regioplayer/internal/models"
	"github.com/regio-cloud/regioplayer/internal/shared"
)

// evictTargetRatio is the fill level eviction trims to, as a fraction of
// the configured capacity.
const evictTargetRatio = 0.8

// Downloader streams a remote file into a writer. Implemented by
// services.APIService.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// Manager is the media cache.
type Manager struct {
	dir        string
	maxBytes   int64
	downloader Downloader
	limiter    *rate.Limiter
	logger     *log.Logger
}

// New creates a Manager rooted at dir with the given capacity in bytes.
// rateLimitBytes caps download throughput in bytes per second; zero
// disables throttling.
func New(dir string, maxBytes int64, rateLimitBytes int64, downloader Downloader, logger *log.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	var limiter *rate.Limiter
	if rateLimitBytes > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateLimitBytes), int(rateLimitBytes))
	}

	return &Manager{
		dir:        dir,
		maxBytes:   maxBytes,
		downloader: downloader,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// FileNameForURL derives the stable cache filename for a media URL.
//
// The URL path's basename is used when present (the backend terminates media
// URLs with the asset id), with a hash fallback for URLs without one.
// Separator characters are sanitized so the name is always a single path
// element.
func FileNameForURL(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		sum := sha256.Sum256([]byte(rawURL))
		name = hex.EncodeToString(sum[:8])
	}

	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)

	return "media_" + name
}

// LocalPath returns where the item's media lives (or would live) on disk.
// Web items pass through their URL untouched.
func (m *Manager) LocalPath(item *models.PlaylistItem) string {
	if item.IsWeb() {
		return item.URL
	}
	return filepath.Join(m.dir, FileNameForURL(item.URL))
}

// IsCached reports whether a valid cache entry exists for the item.
//
// Valid means the file exists, its size matches the recorded size when one
// is known, and its checksum matches the recorded checksum when one is
// known. Any mismatch invalidates the entry.
func (m *Manager) IsCached(item *models.PlaylistItem) bool {
	if item.IsWeb() {
		return true
	}

	if err := m.verify(item); err != nil {
		if errors.Is(err, shared.ErrIntegrity) {
			m.logger.Warn("invalidating cache entry", "error", err)
		}
		return false
	}
	return true
}

// verify checks an existing cache entry against the item's recorded size and
// checksum. A mismatch is reported as [shared.ErrIntegrity]; a missing file
// is an ordinary stat error.
func (m *Manager) verify(item *models.PlaylistItem) error {
	localPath := m.LocalPath(item)
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}

	if item.FileSize > 0 && info.Size() != item.FileSize {
		return fmt.Errorf("%w: %s: size %d, want %d", shared.ErrIntegrity, localPath, info.Size(), item.FileSize)
	}

	if item.Checksum != "" {
		sum, err := fileChecksum(localPath)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", shared.ErrIntegrity, localPath, err)
		}
		if sum != item.Checksum {
			return fmt.Errorf("%w: %s: checksum mismatch", shared.ErrIntegrity, localPath)
		}
	}

	return nil
}

// EnsureCached makes the item's media available locally and returns its
// path, downloading it when no valid entry exists. The item's derived
// metadata (LocalPath, FileSize, Checksum, CachedAt) is filled in on
// success. A failed or partial download removes the partial file and
// returns an error so the caller can retry on the next sync cycle.
func (m *Manager) EnsureCached(ctx context.Context, item *models.PlaylistItem) (string, error) {
	if item.IsWeb() {
		return item.URL, nil
	}

	localPath := m.LocalPath(item)

	if m.IsCached(item) {
		m.touch(localPath)
		item.LocalPath = localPath
		return localPath, nil
	}

	if err := m.EnforceCapacity(); err != nil {
		m.logger.Warn("capacity enforcement failed, downloading anyway", "error", err)
	}

	m.logger.Info("downloading media", "url", item.URL, "path", localPath)

	tmpPath := localPath + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", shared.ErrCacheDownload, tmpPath, err)
	}

	var w io.Writer = f
	if m.limiter != nil {
		w = &throttledWriter{ctx: ctx, w: f, limiter: m.limiter}
	}

	size, err := m.downloader.Download(ctx, item.URL, w)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %s: %v", shared.ErrCacheDownload, item.URL, err)
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: finalize %s: %v", shared.ErrCacheDownload, localPath, err)
	}

	sum, err := fileChecksum(localPath)
	if err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("%w: checksum %s: %v", shared.ErrCacheDownload, localPath, err)
	}

	item.LocalPath = localPath
	item.FileSize = size
	item.Checksum = sum
	item.CachedAt = time.Now().UTC()

	m.logger.Debug("media cached", "path", localPath, "bytes", size)

	// The pre-download pass cannot account for the bytes just written, so
	// enforce again to keep the cap holding after every caching pass. The
	// fresh file has the newest access time and is evicted last.
	if err := m.EnforceCapacity(); err != nil {
		m.logger.Warn("capacity enforcement failed", "error", err)
	}

	return localPath, nil
}

// Resolve returns the playable local path for an item, for the scheduler's
// per-transition lookup. Unlike [Manager.IsCached] this is a bare existence
// check; integrity validation happens on the sync path, not between slides.
func (m *Manager) Resolve(item *models.PlaylistItem) (string, bool) {
	if item.IsWeb() {
		return item.URL, true
	}
	localPath := m.LocalPath(item)
	if _, err := os.Stat(localPath); err != nil {
		return "", false
	}
	return localPath, true
}

// SweepUnreferenced deletes every cached file whose name is not referenced
// by any item of the given playlist. Called after each successful update.
func (m *Manager) SweepUnreferenced(playlist *models.Playlist) error {
	referenced := make(map[string]bool)
	if playlist != nil {
		for _, item := range playlist.Items {
			if !item.IsWeb() {
				referenced[FileNameForURL(item.URL)] = true
			}
		}
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || referenced[entry.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, entry.Name())); err != nil {
			m.logger.Warn("failed to delete unreferenced cache file", "name", entry.Name(), "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		m.logger.Info("cache sweep complete", "deleted", deleted)
	}

	return nil
}

// EnforceCapacity evicts least-recently-accessed files until total usage is
// at or below 80% of the configured cap. A no-op while under the cap.
func (m *Manager) EnforceCapacity() error {
	if m.maxBytes <= 0 {
		return nil
	}

	files, total, err := m.listFiles()
	if err != nil {
		return err
	}
	if total <= m.maxBytes {
		return nil
	}

	target := int64(float64(m.maxBytes) * evictTargetRatio)
	m.logger.Info("cache over capacity, evicting", "total", total, "cap", m.maxBytes, "target", target)

	// Oldest access first. Partial downloads never appear here because
	// .part files are renamed or removed before EnforceCapacity runs again.
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	for _, f := range files {
		if total <= target {
			break
		}
		if err := os.Remove(f.path); err != nil {
			m.logger.Warn("failed to evict cache file", "path", f.path, "error", err)
			continue
		}
		total -= f.size
		m.logger.Debug("evicted cache file", "path", f.path, "bytes", f.size)
	}

	return nil
}

// Entry describes one cached file for listings.
type Entry struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	LastAccess time.Time `json:"last_access"`
}

// Entries lists cache contents ordered least recently used first.
func (m *Manager) Entries() ([]Entry, error) {
	files, _, err := m.listFiles()
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	entries := make([]Entry, len(files))
	for i, f := range files {
		entries[i] = Entry{
			Name:       filepath.Base(f.path),
			SizeBytes:  f.size,
			LastAccess: f.modTime,
		}
	}
	return entries, nil
}

// Size returns the total size in bytes of all cached files.
func (m *Manager) Size() (int64, error) {
	_, total, err := m.listFiles()
	return total, err
}

// Clear deletes every cached file.
func (m *Manager) Clear() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, entry.Name())); err != nil {
			m.logger.Warn("failed to delete cache file", "name", entry.Name(), "error", err)
		}
	}

	return nil
}

type cacheFile struct {
	path    string
	size    int64
	modTime time.Time
}

// listFiles enumerates cache contents with their sizes and access times.
func (m *Manager) listFiles() ([]cacheFile, int64, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var (
		files []cacheFile
		total int64
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, cacheFile{
			path:    filepath.Join(m.dir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}

	return files, total, nil
}

// touch bumps a file's mtime to record an access for LRU ordering.
func (m *Manager) touch(path string) {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		m.logger.Debug("failed to touch cache file", "path", path, "error", err)
	}
}

// fileChecksum computes the SHA-256 digest of a file as lowercase hex.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// throttledWriter paces writes through a byte-rate limiter.
type throttledWriter struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := p
		if burst := t.limiter.Burst(); len(chunk) > burst {
			chunk = chunk[:burst]
		}
		if err := t.limiter.WaitN(t.ctx, len(chunk)); err != nil {
			return written, err
		}
		n, err := t.w.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}
