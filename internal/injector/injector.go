// Package injector runs the universal-links injection for one build.
//
// A run resolves the link variables for the invocation context and merges
// them into the application manifest, the plugin descriptor and the iOS
// entitlements. Missing or malformed targets are skipped with a log line;
// I/O failures are collected and returned together.
package injector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/AntoineGS/ulinject/internal/config"
	"github.com/AntoineGS/ulinject/internal/resolve"
	"github.com/AntoineGS/ulinject/internal/state"
)

// Injector holds the settings and collaborators for injection runs.
type Injector struct {
	ctx     context.Context
	Config  *config.Config
	logger  *slog.Logger
	env     resolve.EnvFunc
	history *history
	out     io.Writer
	newID   func() string
	DryRun  bool
	Verbose bool
}

// New creates an Injector with the given settings. The environment tier is
// empty until WithEnv is used.
func New(cfg *config.Config) *Injector {
	if cfg == nil {
		cfg = config.Default()
	}

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)

	return &Injector{
		Config: cfg,
		ctx:    context.Background(),
		logger: slog.New(handler),
		env:    resolve.NoEnv,
		out:    os.Stderr,
		newID:  uuid.NewString,
	}
}

// history is the run history database of one project. It is shared by
// the copies made by the With methods and opened on first use.
type history struct {
	path  string
	store *state.Store
}

func (h *history) open() (*state.Store, error) {
	if h.store != nil {
		return h.store, nil
	}

	store, err := state.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	h.store = store
	return store, nil
}

// InitHistory points the Injector at the project's run history database when
// history is enabled. The database is created by the first run that writes a
// target.
func (inj *Injector) InitHistory(projectRoot string) error {
	if !inj.Config.History.Enabled {
		return nil
	}

	inj.history = &history{path: config.ProjectPath(projectRoot, inj.Config.History.Path)}
	return nil
}

// Close releases resources held by the Injector, including the history store.
func (inj *Injector) Close() error {
	if inj.history != nil && inj.history.store != nil {
		return inj.history.store.Close()
	}
	return nil
}

// WithContext returns a new Injector with the given context
func (inj *Injector) WithContext(ctx context.Context) *Injector {
	inj2 := *inj
	inj2.ctx = ctx

	return &inj2
}

// WithLogger sets a custom logger
func (inj *Injector) WithLogger(logger *slog.Logger) *Injector {
	inj2 := *inj
	inj2.logger = logger

	return &inj2
}

// WithVerbose returns a new Injector whose log handler writes to the
// configured output at debug level when verbose is set.
func (inj *Injector) WithVerbose(verbose bool) *Injector {
	inj2 := *inj
	inj2.Verbose = verbose

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	handler := slog.NewTextHandler(inj2.out, opts)
	inj2.logger = slog.New(handler)

	return &inj2
}

// WithEnv sets the lookup used for the environment tier.
func (inj *Injector) WithEnv(env resolve.EnvFunc) *Injector {
	inj2 := *inj
	if env == nil {
		env = resolve.NoEnv
	}
	inj2.env = env

	return &inj2
}

// WithOutput sets where WithVerbose sends log output.
func (inj *Injector) WithOutput(w io.Writer) *Injector {
	inj2 := *inj
	inj2.out = w

	return &inj2
}

// checkContext checks if context is canceled and returns error
func (inj *Injector) checkContext() error {
	select {
	case <-inj.ctx.Done():
		return inj.ctx.Err()
	default:
		return nil
	}
}
