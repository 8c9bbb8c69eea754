package internal

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/xnote/internal/ai"
	"github.com/starford/xnote/internal/share"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// DataDirEnv overrides the default data directory.
const DataDirEnv = "XNOTE_HOME"

// PidFileName is the daemon's pid file inside the data directory.
const PidFileName = "xnote.pid"

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Data  DataConfig        `yaml:"data"`
	AI    AIConfig          `yaml:"ai"`
	Share ShareConfig       `yaml:"share"`
	Auth  AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.AI.Validate(); err != nil {
		return err
	}
	if err := c.Share.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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

// HTTPConfig holds HTTP server configuration. The daemon is meant to stay
// on loopback; Host defaults to 127.0.0.1.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL returns the URL clients use to reach the daemon.
func (c *HTTPConfig) BaseURL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DataConfig locates the data directory and the derived index.
type DataConfig struct {
	Dir string `yaml:"dir"`
	// IndexPath defaults to <Dir>/index.db.
	IndexPath string `yaml:"index_path"`
	// ExportDir is where exports land when no destination is given.
	ExportDir string `yaml:"export_dir"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// IndexFile returns the search index database path.
func (c *DataConfig) IndexFile() string {
	if c.IndexPath != "" {
		return expandHome(c.IndexPath)
	}
	return filepath.Join(c.Root(), "index.db")
}

// PidFile returns the path of the daemon's pid file.
func (c *DataConfig) PidFile() string {
	return filepath.Join(c.Root(), PidFileName)
}

// Root returns the data directory with a leading ~ expanded.
func (c *DataConfig) Root() string {
	return expandHome(c.Dir)
}

// Exports returns the default export directory.
func (c *DataConfig) Exports() string {
	if c.ExportDir != "" {
		return expandHome(c.ExportDir)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Downloads")
	}
	return filepath.Join(c.Root(), "exports")
}

// AIConfig configures the generative-text provider. APIKey is the fallback
// when the stored AI settings carry none.
type AIConfig struct {
	Model      string        `yaml:"model"`
	TitleModel string        `yaml:"title_model"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.TitleModel, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Second)),
	)
}

// ShareConfig configures gist publication through the gh CLI.
type ShareConfig struct {
	GHPath  string        `yaml:"gh_path"`
	Timeout time.Duration `yaml:"timeout"`
	// Public makes new gists public by default.
	Public bool `yaml:"public"`
}

// Validate validates the share configuration.
func (c *ShareConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Second)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for loopback use.
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

// DefaultDataDir returns $XNOTE_HOME, or ~/.xnote.
func DefaultDataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".xnote"
	}
	return filepath.Join(home, ".xnote")
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 7733,
			},
		},
		Data: DataConfig{
			Dir: DefaultDataDir(),
		},
		AI: AIConfig{
			Model:      ai.DefaultModel,
			TitleModel: ai.DefaultTitleModel,
			Timeout:    2 * time.Minute,
		},
		Share: ShareConfig{
			GHPath:  "gh",
			Timeout: share.DefaultTimeout,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/") && !strings.HasPrefix(rest, string(filepath.Separator))) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
