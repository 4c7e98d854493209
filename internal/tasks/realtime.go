package tasks

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/regio-cloud/regioplayer/internal/models"
)

const (
	msgPlaylistUpdated = "playlist_updated"
	msgScreenDeleted   = "screen_deleted"
	msgPing            = "ping"

	handshakeTimeout = 10 * time.Second
)

// serverMessage is the envelope pushed by the realtime endpoint.
type serverMessage struct {
	Type string `json:"type"`
}

// deviceInfo is the hello frame sent after every successful connect. The
// version field carries the player software version; the playlist version
// rides along so the server can skip a redundant update push.
type deviceInfo struct {
	Type            string `json:"type"`
	Version         string `json:"version"`
	PlaylistVersion string `json:"playlist_version"`
	Resolution      string `json:"resolution"`
}

// RealtimeHandlers are invoked from the read loop when the server pushes a
// notification. Handlers should return quickly; long work belongs on the
// caller's own goroutine.
type RealtimeHandlers struct {
	PlaylistUpdated func()
	ScreenDeleted   func()
}

// RealtimeChannel maintains a websocket connection to the control backend
// and reconnects on a fixed delay until stopped. All notifications are
// advisory; the periodic sync remains the source of truth, so a dropped
// message is only latency, never lost state.
type RealtimeChannel struct {
	wsURL          string
	playerVersion  string
	resolution     string
	reconnectDelay time.Duration
	handlers       RealtimeHandlers
	logger         *log.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	state     models.ConnectionState
	stopped   bool
	screenKey string
	version   func() string
	timer     *time.Timer
}

// NewRealtimeChannel creates a channel for the given endpoint. playerVersion
// identifies the client software in the hello frame; the playlist version
// func passed to [RealtimeChannel.Connect] is consulted at each (re)connect
// so the hello always reports the currently persisted playlist version.
func NewRealtimeChannel(wsURL, playerVersion, resolution string, reconnectDelay time.Duration, handlers RealtimeHandlers, logger *log.Logger) *RealtimeChannel {
	if reconnectDelay <= 0 {
		reconnectDelay = 15 * time.Second
	}
	return &RealtimeChannel{
		wsURL:          wsURL,
		playerVersion:  playerVersion,
		resolution:     resolution,
		reconnectDelay: reconnectDelay,
		handlers:       handlers,
		logger:         logger,
		state:          models.Disconnected,
	}
}

// Connect starts the connection loop for the given screen key. Calling it
// while already connected or connecting is a no-op, so supervisors can call
// it after every sync without tearing down a healthy connection.
func (c *RealtimeChannel) Connect(screenKey string, version func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != models.Disconnected && c.screenKey == screenKey {
		return
	}
	c.stopped = false
	c.screenKey = screenKey
	c.version = version
	c.dialLocked()
}

// Disconnect tears down the connection and cancels any pending reconnect.
func (c *RealtimeChannel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = models.Disconnected
}

// State returns the current connection state.
func (c *RealtimeChannel) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *RealtimeChannel) dialLocked() {
	if c.stopped {
		return
	}
	c.state = models.Connecting

	url := strings.TrimRight(c.wsURL, "/") + "/" + c.screenKey
	key := c.screenKey

	go func() {
		dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
		conn, _, err := dialer.Dial(url, nil)

		c.mu.Lock()
		if c.stopped || c.screenKey != key {
			c.mu.Unlock()
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil {
			c.logger.Warn("realtime connect failed", "error", err)
			c.state = models.Disconnected
			c.scheduleReconnectLocked()
			c.mu.Unlock()
			return
		}
		c.conn = conn
		c.state = models.Connected
		version := "none"
		if c.version != nil {
			if v := c.version(); v != "" {
				version = v
			}
		}
		c.mu.Unlock()

		hello := deviceInfo{
			Type:            "device_info",
			Version:         c.playerVersion,
			PlaylistVersion: version,
			Resolution:      c.resolution,
		}
		if err := conn.WriteJSON(hello); err != nil {
			c.logger.Warn("realtime hello failed", "error", err)
			c.dropAndReconnect(conn)
			return
		}
		c.logger.Debug("realtime channel connected")
		c.readLoop(conn)
	}()
}

func (c *RealtimeChannel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.dropAndReconnect(conn)
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("realtime message unparseable", "error", err)
			continue
		}

		switch msg.Type {
		case msgPing:
			// Keepalive, nothing to do.
		case msgPlaylistUpdated:
			c.logger.Info("playlist update pushed")
			if c.handlers.PlaylistUpdated != nil {
				c.handlers.PlaylistUpdated()
			}
		case msgScreenDeleted:
			c.logger.Info("screen deletion pushed")
			if c.handlers.ScreenDeleted != nil {
				c.handlers.ScreenDeleted()
			}
			c.Disconnect()
			return
		default:
			c.logger.Debug("realtime message ignored", "type", msg.Type)
		}
	}
}

// dropAndReconnect closes a failed connection and schedules a retry unless
// the channel was stopped or a newer connection replaced this one.
func (c *RealtimeChannel) dropAndReconnect(conn *websocket.Conn) {
	conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.conn = nil
	c.state = models.Disconnected
	if c.stopped {
		return
	}
	c.logger.Warn(fmt.Sprintf("realtime channel lost, reconnecting in %s", c.reconnectDelay))
	c.scheduleReconnectLocked()
}

func (c *RealtimeChannel) scheduleReconnectLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.timer = nil
		if c.stopped || c.state != models.Disconnected {
			return
		}
		c.dialLocked()
	})
}
