package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/regio-cloud/regioplayer/internal/models"
	"github.com/regio-cloud/regioplayer/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PairingView ViewState = iota
	StatusView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	player       *tasks.Player
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	status       tasks.PlayerStatus
	width        int
	height       int
	err          error
	help         help.Model
	keys         keyMap
}

type statusTickMsg tasks.PlayerStatus

type progressUpdateMsg tasks.ProgressUpdate

type actionErrMsg struct{ err error }

// NewModel creates a new TUI model over a started supervisor. progressChan
// must be the same channel handed to the supervisor so downloads surface
// here.
func NewModel(ctx context.Context, player *tasks.Player, progressChan chan tasks.ProgressUpdate) *Model {
	return &Model{
		ctx:          ctx,
		player:       player,
		progressChan: progressChan,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init starts the status poll and progress drain.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tickStatus(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case statusTickMsg:
		m.status = tasks.PlayerStatus(msg)
		return m, m.tickStatus()

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case actionErrMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

// View renders the UI based on the supervisor state.
func (m *Model) View() string {
	switch m.view() {
	case PairingView:
		return m.renderPairing()
	default:
		return m.renderStatus()
	}
}

// view derives the active view from the pairing state rather than keeping
// it as separate state that could drift.
func (m *Model) view() ViewState {
	if m.status.PairingState == tasks.Activated {
		return StatusView
	}
	return PairingView
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "s":
		m.player.SyncNow()
		return m, nil
	case "n":
		m.player.Skip()
		return m, nil
	case "r":
		return m, m.rotate()
	}
	return m, nil
}

func (m *Model) tickStatus() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return statusTickMsg(m.player.Status())
	})
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.progressChan
		if !ok {
			return nil
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) rotate() tea.Cmd {
	return func() tea.Msg {
		if err := m.player.Rotate(m.ctx); err != nil {
			return actionErrMsg{err: err}
		}
		return nil
	}
}

func (m *Model) renderPairing() string {
	title := styles.title.Render("Pair This Screen")

	code := m.status.PairingCode
	if code == "" {
		code = "......"
	}

	var state string
	switch m.status.PairingState {
	case tasks.Registering:
		state = "Contacting server..."
	case tasks.AwaitingActivation:
		state = "Enter this code in the dashboard to activate the screen."
	case tasks.PairingFailed:
		state = styles.err.Render("Registration failed. Retrying on the next sync cycle.")
	default:
		state = "Preparing device identity..."
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())

	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s\n\n%s",
		title, styles.code.Render(code), state, m.progressLine(), helpView)
}

func (m *Model) renderStatus() string {
	title := styles.title.Render("Now Playing")

	name := m.status.ScreenName
	if name == "" {
		name = "(unnamed screen)"
	}

	playlist := m.status.PlaylistName
	if playlist == "" {
		playlist = "(no playlist)"
	}

	current := m.status.CurrentURL
	if current == "" {
		current = "idle"
	} else {
		current = fmt.Sprintf("#%d %s", m.status.CurrentIndex+1, current)
	}

	var conn string
	switch m.status.Connection {
	case models.Connected:
		conn = styles.ok.Render("connected")
	case models.Connecting:
		conn = styles.warn.Render("connecting")
	default:
		conn = styles.err.Render("offline")
	}

	info := fmt.Sprintf(
		"Screen: %s\nPlaylist: %s (v%s)\nItem: %s\nRealtime: %s\nQueued logs: %d\nCache: %s",
		name, playlist, m.status.Version, current, conn,
		m.status.PendingLogs, formatBytes(m.status.CacheBytes),
	)

	var errLine string
	if m.err != nil {
		errLine = "\n\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())

	return fmt.Sprintf("%s\n%s\n\n%s%s\n\n%s",
		title, info, m.progressLine(), errLine, helpView)
}

// progressLine shows the latest sync progress; stale non-terminal phases
// read fine because the next sync overwrites them.
func (m *Model) progressLine() string {
	if m.progress.Message == "" {
		return ""
	}
	return styles.help.Render(m.progress.Message)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
