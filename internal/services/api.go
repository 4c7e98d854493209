// Backend client for the signage control plane HTTP API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/regio-cloud/regioplayer/internal/models"
	"github.com/regio-cloud/regioplayer/internal/shared"
)

// Header names of the screen identity contract.
const (
	headerScreenKey       = "X-Screen-Key"
	headerPlaylistVersion = "X-Playlist-Version"
)

// Placeholder playlist names the backend serves to screens that exist but
// have no assigned playlist yet. Treated the same as "not activated."
var notActivatedNames = []string{"Ecran Neactivat", "Niciun Playlist Asignat"}

// SyncStatus classifies a successful sync response.
type SyncStatus int

const (
	// SyncUnchanged means the server replied 304: keep using the cache.
	SyncUnchanged SyncStatus = iota
	// SyncUpdated means the server returned a new playlist body.
	SyncUpdated
)

// SyncResult carries the outcome of a conditional sync call.
type SyncResult struct {
	Status   SyncStatus
	Playlist *models.Playlist
}

// Backend defines the control plane operations the player depends on.
type Backend interface {
	// Register announces a new screen identity to the backend.
	Register(ctx context.Context, uniqueKey, pairingCode string) error

	// Sync performs a conditional playlist fetch. version may be empty on
	// the first sync.
	Sync(ctx context.Context, screenKey, version string) (*SyncResult, error)

	// ReportRotation informs the backend of a locally initiated rotation
	// change so the dashboard stays in agreement with the device.
	ReportRotation(ctx context.Context, screenKey string, rotation int, timestamp string) error

	// SubmitLogs uploads a proof-of-play batch. A nil error means the
	// server confirmed receipt of the whole batch.
	SubmitLogs(ctx context.Context, screenKey string, entries []models.PlaybackLogEntry) error

	// Download streams the media file at url into w and returns the number
	// of bytes written.
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// APIService implements [Backend] over HTTP.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

var _ Backend = (*APIService)(nil)

// NewAPIService creates a new API client for the control backend.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// Register announces the screen identity to the backend.
func (a *APIService) Register(ctx context.Context, uniqueKey, pairingCode string) error {
	payload := struct {
		UniqueKey   string `json:"unique_key"`
		PairingCode string `json:"pairing_code"`
	}{uniqueKey, pairingCode}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal registration payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/client/register", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: register: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: register returned status %d", shared.ErrServer, resp.StatusCode)
	}

	return nil
}

// Sync performs the conditional playlist fetch.
func (a *APIService) Sync(ctx context.Context, screenKey, version string) (*SyncResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/client/sync", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(headerScreenKey, screenKey)
	if version != "" {
		req.Header.Set(headerPlaylistVersion, version)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sync: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var playlist models.Playlist
		if err := json.NewDecoder(resp.Body).Decode(&playlist); err != nil {
			return nil, fmt.Errorf("%w: sync body: %v", shared.ErrServer, err)
		}
		if isNotActivated(&playlist) {
			return nil, fmt.Errorf("%w: server assigned placeholder playlist %q", shared.ErrNotActivated, playlist.Name)
		}
		if err := playlist.Validate(); err != nil {
			return nil, fmt.Errorf("%w: sync playlist: %v", shared.ErrServer, err)
		}
		return &SyncResult{Status: SyncUpdated, Playlist: &playlist}, nil

	case http.StatusNotModified:
		return &SyncResult{Status: SyncUnchanged}, nil

	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: sync returned 404", shared.ErrScreenNotFound)

	default:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: sync returned status %d", shared.ErrServer, resp.StatusCode)
	}
}

// ReportRotation posts a locally initiated rotation change.
func (a *APIService) ReportRotation(ctx context.Context, screenKey string, rotation int, timestamp string) error {
	payload := struct {
		Rotation  int    `json:"rotation"`
		Timestamp string `json:"timestamp"`
	}{rotation, timestamp}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal rotation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/client/report_rotation", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerScreenKey, screenKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: report rotation: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: report rotation returned status %d", shared.ErrServer, resp.StatusCode)
	}

	return nil
}

// SubmitLogs uploads the proof-of-play batch as a single JSON array.
func (a *APIService) SubmitLogs(ctx context.Context, screenKey string, entries []models.PlaybackLogEntry) error {
	body, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal log batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/reports/player-logs/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerScreenKey, screenKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: submit logs: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: submit logs returned status %d", shared.ErrServer, resp.StatusCode)
	}

	return nil
}

// Download streams a media file into w. Media URLs are absolute, so the
// request goes to the URL as-is rather than under baseURL.
func (a *APIService) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: download %s: %v", shared.ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("%w: download %s returned status %d", shared.ErrServer, url, resp.StatusCode)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: download %s: %v", shared.ErrNetwork, url, err)
	}

	return n, nil
}

// isNotActivated reports whether the playlist is a placeholder the backend
// serves to screens awaiting activation.
func isNotActivated(playlist *models.Playlist) bool {
	if playlist.Version == "none" {
		return true
	}
	for _, name := range notActivatedNames {
		if strings.EqualFold(playlist.Name, name) {
			return true
		}
	}
	return false
}
