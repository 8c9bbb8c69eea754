package internal

import "log/slog"

// Option is a functional option for configuring the application.
type Option func(*application)

// application is the daemon's context: everything Run builds hangs off it
// instead of living in package globals.
type application struct {
	config   *Config
	logger   *slog.Logger
	openNote string
	services *Services
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger replaces the default JSON logger on stdout.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}

// WithOpenNote asks the UI to show the named note once it connects.
func WithOpenNote(name string) Option {
	return func(a *application) {
		a.openNote = name
	}
}
