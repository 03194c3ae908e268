package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/seqsync/internal/addressing"
)

var httpURL = regexp.MustCompile(`^https?://\S+$`)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Structures StructuresConfig  `yaml:"structures"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Selection  SelectionConfig   `yaml:"selection"`
	Visibility VisibilityConfig  `yaml:"visibility"`
	Sync       SyncConfig        `yaml:"sync"`
	Sequence   SequenceConfig    `yaml:"sequence"`
	Events     EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Structures, &c.SQLite, &c.Auth,
		&c.Selection, &c.Visibility, &c.Sequence, &c.Events,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StructuresConfig holds the path to the watched manifest directory.
type StructuresConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the structures configuration.
func (c *StructuresConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SelectionConfig constrains the selection model. MaxSelections of zero
// means unlimited.
type SelectionConfig struct {
	MaxSelections int `yaml:"max_selections"`
}

// Validate validates the selection configuration.
func (c *SelectionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSelections, validation.Min(0)),
	)
}

// VisibilityConfig holds the addressing scheme and the isolate-range sentinel.
type VisibilityConfig struct {
	Addressing string `yaml:"addressing"`
	MaxResidue int    `yaml:"max_residue"`
}

// Validate validates the visibility configuration.
func (c *VisibilityConfig) Validate() error {
	if c.Addressing == "" {
		c.Addressing = string(addressing.Label)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Addressing, validation.In(string(addressing.Label), string(addressing.Auth))),
		validation.Field(&c.MaxResidue, validation.Required, validation.Min(1)),
	)
}

// Mode returns the parsed addressing mode. Call after Validate.
func (c *VisibilityConfig) Mode() addressing.Mode {
	m, err := addressing.ParseMode(c.Addressing)
	if err != nil {
		return addressing.Label
	}
	return m
}

// SyncConfig controls the structure to sequence direction.
type SyncConfig struct {
	PromotePicks bool `yaml:"promote_picks"`
}

// SequenceConfig selects the sequence provider. An empty RemoteURL reads
// sequences from the local catalogue.
type SequenceConfig struct {
	RemoteURL string        `yaml:"remote_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Validate validates the sequence configuration.
func (c *SequenceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RemoteURL, validation.Match(httpURL).Error("must be an http(s) URL")),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

// EventsConfig holds SSE settings.
type EventsConfig struct {
	CatalogThrottle time.Duration `yaml:"catalog_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CatalogThrottle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Structures: StructuresConfig{
			Path: "./structures",
		},
		SQLite: SQLiteConfig{
			Path: "./seqsync.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Visibility: VisibilityConfig{
			Addressing: string(addressing.Label),
			MaxResidue: 100000,
		},
		Sync: SyncConfig{
			PromotePicks: true,
		},
		Sequence: SequenceConfig{
			Timeout: 10 * time.Second,
		},
		Events: EventsConfig{
			CatalogThrottle: 2 * time.Second,
		},
	}
}
