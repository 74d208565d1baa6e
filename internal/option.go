package internal

import (
	"github.com/starford/notepane/internal/gateway"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	version string
	store   gateway.Store
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server and logs.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithStore supplies an already opened store instead of opening one from
// the gateway configuration. The caller keeps ownership of it.
func WithStore(s gateway.Store) Option {
	return func(a *application) {
		a.store = s
	}
}
