package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"bssh/internal/config"
	"bssh/internal/logging"
	"bssh/internal/proc"
	"bssh/internal/rank"
	"bssh/internal/session"
	"bssh/internal/storage"
)

// app bundles the shared subsystems a command needs: validated config, the
// opened store with its repositories, the ranking engine, and the session
// tracker. It is initialized lazily on first use so commands like version
// and completion never touch the database.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *storage.DB
	conns    *storage.ConnectionRepository
	sessions *storage.SessionRepository
	aliases  *storage.AliasRepository
	engine   *rank.Engine
	tracker  *session.Tracker
	spawner  *proc.Spawner
}

var (
	appOnce   sync.Once
	sharedApp *app
	appErr    error
)

// getApp returns the shared app instance, building it on first call.
func getApp() (*app, error) {
	appOnce.Do(func() {
		cfg, err := config.Load(configFlag)
		if err != nil {
			appErr = err
			return
		}
		if dbFlag != "" {
			cfg.DatabasePath = dbFlag
		}
		if logLevelFlag != "" {
			cfg.Logging.Level = logLevelFlag
		}
		if logFormatFlag != "" {
			cfg.Logging.Format = logFormatFlag
		}
		if err := cfg.Validate(); err != nil {
			appErr = err
			return
		}

		logger := logging.NewStderr(
			logging.LevelFromString(cfg.Logging.Level),
			logging.ParseFormat(cfg.Logging.Format),
		)

		db, err := storage.Open(cfg.DatabasePath, logger)
		if err != nil {
			appErr = fmt.Errorf("failed to open database: %w", err)
			return
		}

		conns := storage.NewConnectionRepository(db)
		sessions := storage.NewSessionRepository(db)

		sharedApp = &app{
			cfg:      cfg,
			logger:   logger,
			db:       db,
			conns:    conns,
			sessions: sessions,
			aliases:  storage.NewAliasRepository(db),
			engine:   rank.New(conns, sessions, cfg, logger),
			tracker:  session.New(db, proc.NewProbe(), proc.NewTerminator(), cfg.CleanupWorkers, logger),
			spawner:  proc.NewSpawner(logger),
		}
	})

	return sharedApp, appErr
}

// mustApp returns the shared app or exits on error.
func mustApp() *app {
	a, err := getApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return a
}

// newContext creates the context for a command invocation.
func newContext() context.Context {
	return context.Background()
}

// newSignalContext creates a context cancelled by Ctrl+C, for commands that
// sweep over many sessions and must stop cleanly between them.
func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// fail prints an error and exits with the generic failure code.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
