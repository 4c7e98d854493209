package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/regio-cloud/regioplayer/internal/models"
	"github.com/regio-cloud/regioplayer/internal/repositories"
	"github.com/regio-cloud/regioplayer/internal/services"
	"github.com/regio-cloud/regioplayer/internal/shared"
)

// PairingState tracks the device identity lifecycle.
type PairingState int

const (
	Unregistered PairingState = iota
	Registering
	AwaitingActivation
	Activated
	PairingFailed
)

func (s PairingState) String() string {
	switch s {
	case Registering:
		return "registering"
	case AwaitingActivation:
		return "awaiting_activation"
	case Activated:
		return "activated"
	case PairingFailed:
		return "failed"
	default:
		return "unregistered"
	}
}

// PairingCoordinator establishes the device identity and drives activation
// before a playlist exists.
type PairingCoordinator struct {
	backend      services.Backend
	screens      *repositories.ScreenRepository
	engine       *Engine
	logger       *log.Logger
	codeLength   int
	pollInterval time.Duration
	maxAttempts  int

	mu    sync.Mutex
	state PairingState
}

// NewPairingCoordinator creates a coordinator in the Unregistered state.
func NewPairingCoordinator(backend services.Backend, screens *repositories.ScreenRepository, engine *Engine, cfg shared.PlayerConfig, logger *log.Logger) *PairingCoordinator {
	interval := cfg.PairingPollInterval()
	if interval <= 0 {
		interval = 15 * time.Second
	}
	attempts := cfg.PairingMaxAttempts
	if attempts <= 0 {
		attempts = 240
	}
	codeLength := cfg.PairingCodeLength
	if codeLength == 0 {
		codeLength = 6
	}

	return &PairingCoordinator{
		backend:      backend,
		screens:      screens,
		engine:       engine,
		logger:       logger,
		codeLength:   codeLength,
		pollInterval: interval,
		maxAttempts:  attempts,
	}
}

// State returns the current pairing state.
func (p *PairingCoordinator) State() PairingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *PairingCoordinator) setState(s PairingState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Activate marks the screen activated. The supervisor calls it whenever a
// sync delivers a real playlist, so activation is observed even when nobody
// runs the foreground polling loop.
func (p *PairingCoordinator) Activate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Activated {
		return
	}
	p.state = Activated
	p.logger.Info("screen activated")
}

// Initialize loads the persisted screen identity, generating and persisting
// a fresh one when none exists, then registers it with the backend.
// Registration failure is reported through the state, not a lost identity:
// the screen keeps its key and the caller may retry.
func (p *PairingCoordinator) Initialize(ctx context.Context) (*models.Screen, error) {
	screen, err := p.screens.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load screen identity: %w", err)
	}

	if screen == nil {
		screen, err = p.createIdentity()
		if err != nil {
			return nil, err
		}
	}

	if err := p.Register(ctx, screen); err != nil {
		p.logger.Warn("registration failed, pairing code shown offline", "error", err)
	}

	return screen, nil
}

// Register announces the identity to the backend and advances the state to
// AwaitingActivation on success.
func (p *PairingCoordinator) Register(ctx context.Context, screen *models.Screen) error {
	p.setState(Registering)

	if err := p.backend.Register(ctx, screen.UniqueKey, screen.PairingCode); err != nil {
		p.setState(PairingFailed)
		return fmt.Errorf("failed to register screen: %w", err)
	}

	p.setState(AwaitingActivation)
	p.logger.Info("screen registered", "pairing_code", screen.PairingCode)
	return nil
}

// Reset destroys the current identity and creates, persists and registers a
// fresh one. This is the deactivation recovery path: the old unique key is
// gone server-side, so a new one is the only way back in.
func (p *PairingCoordinator) Reset(ctx context.Context) (*models.Screen, error) {
	if err := p.engine.Deactivate(); err != nil {
		p.logger.Warn("failed to clear playlist during reset", "error", err)
	}

	screen, err := p.createIdentity()
	if err != nil {
		return nil, err
	}

	if err := p.Register(ctx, screen); err != nil {
		return screen, err
	}

	return screen, nil
}

// PollForActivation repeatedly syncs at the configured interval until the
// backend assigns a real playlist, the attempt limit is reached, or ctx
// is cancelled. Exhaustion returns [shared.ErrPairingTimeout] without
// destroying the identity, so a later foreground sync can still succeed.
func (p *PairingCoordinator) PollForActivation(ctx context.Context, progress chan<- ProgressUpdate) (*models.Playlist, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		sendProgress(progress, pairingUpdate(attempt, p.maxAttempts))

		playlist, err := p.engine.Sync(ctx, progress)
		if err == nil && playlist != nil {
			p.setState(Activated)
			p.logger.Info("screen activated", "playlist", playlist.Name)
			return playlist, nil
		}

		switch {
		case err == nil:
			// No playlist and no error: keep polling.
		case errors.Is(err, shared.ErrNotActivated),
			errors.Is(err, shared.ErrScreenNotFound),
			errors.Is(err, shared.ErrNetwork):
			// All expected while the operator has not paired us yet; a
			// network blip must not abort an hour-long pairing window.
			p.logger.Debug("still awaiting activation", "attempt", attempt, "error", err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			p.logger.Warn("activation poll error", "attempt", attempt, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}

	return nil, fmt.Errorf("%w: no activation after %d attempts", shared.ErrPairingTimeout, p.maxAttempts)
}

// createIdentity generates, persists and returns a fresh screen identity.
func (p *PairingCoordinator) createIdentity() (*models.Screen, error) {
	screen := &models.Screen{
		UniqueKey:   shared.GenerateUniqueKey(),
		PairingCode: shared.GeneratePairingCode(p.codeLength),
		CreatedAt:   time.Now().UTC(),
	}

	if err := p.screens.Replace(screen); err != nil {
		return nil, fmt.Errorf("failed to persist new identity: %w", err)
	}

	p.setState(Unregistered)
	p.logger.Info("generated new screen identity", "pairing_code", screen.PairingCode)
	return screen, nil
}
