package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	coretypes "github.com/projecteru2/core/types"
)

const (
	DefaultEndpoint     = "https://cloud.skytap.com"
	DefaultPollInterval = time.Second
	DefaultPollLimit    = 60
	DefaultHTTPTimeout  = 30 * time.Second
)

// Config holds global envdo configuration.
type Config struct {
	// Endpoint is the base URL of the cloud REST API.
	// Env: ENVDO_ENDPOINT. Default: https://cloud.skytap.com.
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	// Username and Token are the HTTP Basic credentials. The token is the
	// account's API security token.
	// Env: ENVDO_USERNAME, ENVDO_TOKEN.
	Username string `json:"username" mapstructure:"username"`
	Token    string `json:"-" mapstructure:"token"`
	// PollInterval is the wait between two runstate observations.
	// Default: 1s.
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval"`
	// PollLimit caps the number of observations per wait.
	// Default: 60.
	PollLimit int `json:"poll_limit" mapstructure:"poll_limit"`
	// PoolSize is how many environments are processed at once.
	// Default: 1 (strictly sequential).
	PoolSize int `json:"pool_size" mapstructure:"pool_size"`
	// HTTPTimeout bounds a single API request.
	// Default: 30s.
	HTTPTimeout time.Duration `json:"http_timeout" mapstructure:"http_timeout"`
	// RunDir holds the per-environment lock files.
	// Env: ENVDO_RUN_DIR. Default: $TMPDIR/envdo.
	RunDir string `json:"run_dir" mapstructure:"run_dir"`
	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log" mapstructure:"log"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:     DefaultEndpoint,
		PollInterval: DefaultPollInterval,
		PollLimit:    DefaultPollLimit,
		PoolSize:     1,
		HTTPTimeout:  DefaultHTTPTimeout,
		RunDir:       filepath.Join(os.TempDir(), "envdo"),
		Log: coretypes.ServerLogConfig{
			Level:      "info",
			MaxSize:    500,
			MaxAge:     28,
			MaxBackups: 3,
		},
	}
}

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q", c.Endpoint)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.PollLimit <= 0 {
		return fmt.Errorf("poll limit must be positive, got %d", c.PollLimit)
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool size must be at least 1, got %d", c.PoolSize)
	}
	return nil
}

// EnsureDirs creates RunDir.
func (c *Config) EnsureDirs() error {
	return os.MkdirAll(c.RunDir, 0o750)
}

// EnvLockPath is the lock file guarding writes to one environment.
func (c *Config) EnvLockPath(envID string) string {
	return filepath.Join(c.RunDir, fmt.Sprintf("env-%s.lock", envID))
}
