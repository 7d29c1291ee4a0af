// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger setup and database opening.
package appctx

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/slub/qucosa-migrate/internal/config"
	"github.com/slub/qucosa-migrate/internal/db"
	"github.com/slub/qucosa-migrate/internal/store"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	Logger *slog.Logger

	// DB is the opened database connection (nil if NeedsDB is false)
	DB *db.DB

	// Store wraps DB (nil if NeedsDB is false)
	Store *store.Store
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
		a.Store = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to open the database.
	NeedsDB bool

	// AutoMigrate applies pending migrations. Without it a database with
	// pending migrations is rejected.
	AutoMigrate bool
}

// DefaultOptions returns default options (DB required, migrated on open).
func DefaultOptions() Options {
	return Options{NeedsDB: true, AutoMigrate: true}
}

// ReadOnly returns options for commands that only read the database.
func ReadOnly() Options {
	return Options{NeedsDB: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The database is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Flags override config
	if v := flagValue(cmd, "db"); v != "" {
		app.Config.DBPath = v
	}
	if v := flagValue(cmd, "log-level"); v != "" {
		app.Config.LogLevel = v
	}

	app.Logger = NewLogger(cmd, app.Config.Level())

	if opts.NeedsDB {
		database, err := db.Open(app.Config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if opts.AutoMigrate {
			applied, err := database.MigrateWithInfo()
			if err != nil {
				database.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
			for _, m := range applied {
				app.Logger.Debug("applied migration", "migration", m)
			}
		} else if err := database.RequiresMigrationError(); err != nil {
			database.Close()
			return nil, fmt.Errorf("%w (run 'qucosa-migrate run' once to migrate it)", err)
		}
		app.DB = database
		app.Store = store.New(database)
	}

	return app, nil
}

// NewLogger returns a text logger writing to the command's error stream.
func NewLogger(cmd *cobra.Command, level slog.Level) *slog.Logger {
	var w io.Writer = os.Stderr
	if cmd != nil {
		w = cmd.ErrOrStderr()
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func flagValue(cmd *cobra.Command, name string) string {
	if cmd == nil {
		return ""
	}
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}
