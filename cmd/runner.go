package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/regio-cloud/regioplayer/internal/cache"
	"github.com/regio-cloud/regioplayer/internal/repositories"
	"github.com/regio-cloud/regioplayer/internal/services"
	"github.com/regio-cloud/regioplayer/internal/shared"
	"github.com/regio-cloud/regioplayer/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	backend    services.Backend // nil means build from config per command
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner. Backend
// overrides the HTTP client construction, used by tests.
type RunnerOpts struct {
	Config     *shared.Config
	Backend    services.Backend
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{
		config:     opts.Config,
		backend:    opts.Backend,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the runner's logger, used when the TUI owns stderr.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, runCommand, pairCommand, syncCommand, statusCommand, rotateCommand, cacheCommand, logsCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// deps bundles the stateful pieces every player command needs. close
// releases the database.
type deps struct {
	db        *sql.DB
	screens   *repositories.ScreenRepository
	playlists *repositories.PlaylistRepository
	playlogs  *repositories.PlayLogRepository
	cache     *cache.Manager
	engine    *tasks.Engine
	logs      *tasks.ProofOfPlayLogger
	pairing   *tasks.PairingCoordinator
}

// backendService returns the configured backend, constructing the HTTP
// client from the current config on first use.
func (r *Runner) backendService() services.Backend {
	if r.backend == nil {
		if r.httpClient == nil {
			r.httpClient = &http.Client{Timeout: r.config.Server.Timeout()}
		}
		r.backend = services.NewAPIService(r.config.Server.BaseURL, r.httpClient)
	}
	return r.backend
}

// buildDeps opens the database and assembles the repository and task layer.
func (r *Runner) buildDeps() (*deps, func(), error) {
	backend := r.backendService()

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	manager, err := cache.New(r.config.Cache.Dir, r.config.Cache.MaxSizeBytes, r.config.Cache.RateLimitBytes, backend, r.logger)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize media cache: %w", err)
	}

	screens := repositories.NewScreenRepository(db)
	playlists := repositories.NewPlaylistRepository(db)
	playlogs := repositories.NewPlayLogRepository(db)

	engine := tasks.NewEngine(backend, screens, playlists, manager, r.logger)
	logs := tasks.NewProofOfPlayLogger(backend, screens, playlogs, r.logger)
	pairing := tasks.NewPairingCoordinator(backend, screens, engine, r.config.Player, r.logger)

	d := &deps{
		db:        db,
		screens:   screens,
		playlists: playlists,
		playlogs:  playlogs,
		cache:     manager,
		engine:    engine,
		logs:      logs,
		pairing:   pairing,
	}
	return d, func() { db.Close() }, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
