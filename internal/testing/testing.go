// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/regio-cloud/regioplayer/internal/models"
	"github.com/regio-cloud/regioplayer/internal/services"
	"github.com/regio-cloud/regioplayer/internal/shared"
)

// MockBackend is a configurable test double for [services.Backend]. Zero
// value behaves like an empty but reachable server; set the func fields to
// script responses and the counters record call volume.
type MockBackend struct {
	RegisterFunc       func(ctx context.Context, uniqueKey, pairingCode string) error
	SyncFunc           func(ctx context.Context, screenKey, version string) (*services.SyncResult, error)
	ReportRotationFunc func(ctx context.Context, screenKey string, rotation int, timestamp string) error
	SubmitLogsFunc     func(ctx context.Context, screenKey string, entries []models.PlaybackLogEntry) error
	DownloadFunc       func(ctx context.Context, url string, w io.Writer) (int64, error)

	RegisterCalls int
	SyncCalls     int
	SubmitCalls   int
	DownloadCalls int

	// Submitted accumulates every entry handed to SubmitLogs, across calls.
	Submitted []models.PlaybackLogEntry
}

var _ services.Backend = (*MockBackend)(nil)

func (m *MockBackend) Register(ctx context.Context, uniqueKey, pairingCode string) error {
	m.RegisterCalls++
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, uniqueKey, pairingCode)
	}
	return nil
}

func (m *MockBackend) Sync(ctx context.Context, screenKey, version string) (*services.SyncResult, error) {
	m.SyncCalls++
	if m.SyncFunc != nil {
		return m.SyncFunc(ctx, screenKey, version)
	}
	return nil, shared.ErrNotActivated
}

func (m *MockBackend) ReportRotation(ctx context.Context, screenKey string, rotation int, timestamp string) error {
	if m.ReportRotationFunc != nil {
		return m.ReportRotationFunc(ctx, screenKey, rotation, timestamp)
	}
	return nil
}

func (m *MockBackend) SubmitLogs(ctx context.Context, screenKey string, entries []models.PlaybackLogEntry) error {
	m.SubmitCalls++
	if m.SubmitLogsFunc != nil {
		return m.SubmitLogsFunc(ctx, screenKey, entries)
	}
	m.Submitted = append(m.Submitted, entries...)
	return nil
}

func (m *MockBackend) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	m.DownloadCalls++
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, url, w)
	}
	return 0, shared.ErrCacheDownload
}

// StaticDownloader serves fixed byte content per URL, the shape of a media
// CDN for cache tests.
type StaticDownloader struct {
	Files map[string][]byte
	Calls int
}

func (d *StaticDownloader) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	d.Calls++
	data, ok := d.Files[url]
	if !ok {
		return 0, shared.ErrCacheDownload
	}
	n, err := w.Write(data)
	return int64(n), err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// TempDB creates and migrates a throwaway database under t.TempDir.
func TempDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "player.db")
	db, err := shared.NewDatabase(path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileAbsent(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}
