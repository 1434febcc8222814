package internal

import "github.com/akida/ankitex/internal/syncer"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	store  syncer.Store
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithStore overrides the remote note-store client, used by tests.
func WithStore(store syncer.Store) Option {
	return func(a *application) {
		a.store = store
	}
}
