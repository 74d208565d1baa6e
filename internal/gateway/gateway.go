// Package gateway defines the remote store contract the note controller depends on
// and opens one of the concrete drivers from configuration.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/notepane/internal/gateway/rest"
	"github.com/starford/notepane/internal/gateway/sqlite"
	"github.com/starford/notepane/internal/gateway/vault"
	"github.com/starford/notepane/internal/models"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverREST   = "rest"
	DriverVault  = "vault"
)

// Gateway is the minimal table contract over the "notes" collection.
// Implementations return apperr.ErrNotFound (possibly wrapped) when Update or
// Delete reference an unknown id.
type Gateway interface {
	// List returns every note ordered by UpdatedAt descending.
	List(ctx context.Context) ([]models.Note, error)
	// Insert stores a new note; the store assigns ID and UpdatedAt.
	Insert(ctx context.Context, title, content string) (models.Note, error)
	// Update rewrites title and content of an existing note.
	Update(ctx context.Context, id, title, content string) error
	// Delete removes the note with the given id.
	Delete(ctx context.Context, id string) error
}

// Store is a Gateway that holds resources until closed.
type Store interface {
	Gateway
	Close() error
}

var (
	_ Store = (*sqlite.DB)(nil)
	_ Store = (*rest.Client)(nil)
	_ Store = (*vault.Vault)(nil)
)

// Config selects and configures the gateway driver.
type Config struct {
	Driver string       `yaml:"driver"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	REST   RESTConfig   `yaml:"rest"`
	Vault  VaultConfig  `yaml:"vault"`
}

// Validate validates the driver choice and the section it needs.
func (c *Config) Validate() error {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverREST, DriverVault)),
	); err != nil {
		return err
	}
	switch c.Driver {
	case DriverREST:
		return c.REST.Validate()
	case DriverVault:
		return c.Vault.Validate()
	default:
		return c.SQLite.Validate()
	}
}

// SQLiteConfig holds the SQLite database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// RESTConfig holds connection settings for a PostgREST-compatible table API.
type RESTConfig struct {
	URL       string        `yaml:"url"`
	Key       string        `yaml:"key"`
	Table     string        `yaml:"table"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	Burst     int           `yaml:"burst"`
}

// Validate validates the REST configuration.
func (c *RESTConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.Key, validation.Required),
		validation.Field(&c.Table, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RateLimit, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(0)),
	)
}

// VaultConfig holds the directory of Markdown note files.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// Open constructs the configured driver.
func Open(cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return sqlite.Open(cfg.SQLite.Path)
	case DriverREST:
		return rest.New(rest.Options{
			BaseURL:   cfg.REST.URL,
			APIKey:    cfg.REST.Key,
			Table:     cfg.REST.Table,
			Timeout:   cfg.REST.Timeout,
			RateLimit: cfg.REST.RateLimit,
			Burst:     cfg.REST.Burst,
		})
	case DriverVault:
		return vault.New(cfg.Vault.Path, vault.WithLogger(logger))
	default:
		return nil, fmt.Errorf("gateway: unknown driver %q", cfg.Driver)
	}
}
