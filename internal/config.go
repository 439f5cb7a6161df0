package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jotter/internal/imagecodec"
	"github.com/starford/jotter/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Notes  NotesConfig       `yaml:"notes"`
	Images ImagesConfig      `yaml:"images"`
	Inbox  InboxConfig       `yaml:"inbox"`
	Events EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.SQLite, &c.Auth, &c.Notes, &c.Images, &c.Events} {
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
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Duration(0))),
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
//   - "disabled" (default): no authentication required, suitable for local use.
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

// NotesConfig holds the colors offered for new notes as #AARRGGBB or
// #RRGGBB strings.
type NotesConfig struct {
	Palette []string `yaml:"palette"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Palette, validation.Required, validation.Each(validation.By(func(v interface{}) error {
			_, err := models.ParseColor(v.(string))
			return err
		}))),
	)
}

// ParsedPalette returns the configured palette as packed ARGB values.
func (c *NotesConfig) ParsedPalette() (models.Palette, error) {
	return models.ParsePalette(c.Palette)
}

// ImagesConfig bounds attached images.
type ImagesConfig struct {
	// MaxDimension is the longest side, in pixels, an image is scaled down
	// to. 0 keeps the original size.
	MaxDimension int `yaml:"max_dimension"`
	// MaxPixels rejects sources whose declared width×height exceeds it.
	MaxPixels      int64 `yaml:"max_pixels"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// Limits returns the image bounds passed to the codec.
func (c *ImagesConfig) Limits() imagecodec.Limits {
	return imagecodec.Limits{MaxDimension: c.MaxDimension, MaxPixels: c.MaxPixels}
}

// Validate validates the images configuration.
func (c *ImagesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxDimension, validation.Min(0), validation.Max(16384)),
		validation.Field(&c.MaxPixels, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
	)
}

// InboxConfig names a directory watched for dropped note files. An empty
// Path disables the watcher.
type InboxConfig struct {
	Path   string        `yaml:"path"`
	Settle time.Duration `yaml:"settle"`
}

// Enabled reports whether the inbox watcher should run.
func (c *InboxConfig) Enabled() bool {
	return c.Path != ""
}

// EventsConfig holds settings of the /api/events stream.
type EventsConfig struct {
	// ChangedThrottle is the minimum gap between notes.changed events.
	ChangedThrottle time.Duration `yaml:"changed_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	if c.ChangedThrottle < 0 {
		return errors.New("events: changed_throttle must not be negative")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:            8080,
				ShutdownTimeout: 10 * time.Second,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./jotter.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Notes: NotesConfig{
			Palette: append([]string(nil), models.DefaultPalette...),
		},
		Images: ImagesConfig{
			MaxDimension:   1024,
			MaxPixels:      imagecodec.DefaultMaxPixels,
			MaxUploadBytes: 10 << 20,
		},
		Inbox: InboxConfig{
			Settle: 200 * time.Millisecond,
		},
		Events: EventsConfig{
			ChangedThrottle: time.Second,
		},
	}
}
