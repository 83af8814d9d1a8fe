// Package app provides the application context and dependency management
// for the tally CLI: configuration, logging, and store construction live
// here so commands stay thin.
package app

import (
	"github.com/rs/zerolog"

	"github.com/tallyhq/tally/pkg/errors"
	"github.com/tallyhq/tally/pkg/store"
	"github.com/tallyhq/tally/pkg/store/sqlite"
)

// App represents the tally application with its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger
}

// New creates a new App instance with the given version information.
func New(version, commit, date string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	// Load lazily so callers that pass WithConfig (the CLI does, after
	// flag parsing) don't trigger a second config-file and .env read.
	if app.config == nil {
		config, err := LoadConfig()
		if err != nil {
			return nil, errors.NewConfigError("app", "loading configuration", err)
		}
		app.config = config
	}

	if app.logger == nil {
		logger := NewLogger(app.config)
		app.logger = &logger
	}

	return app, nil
}

// Version returns the version string.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Store opens the configured fact store. With dryRun set, the store is
// wrapped so candidates are still classified against the real stored
// facts, but nothing is written.
func (a *App) Store(dryRun bool) (store.Store, error) {
	s, err := sqlite.New(a.config.DBPath)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return store.DryRun(s), nil
	}
	return s, nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}
