// Package config loads StaffProof client and mock-server settings.
//
// Settings come from ~/.staffproof/config.yaml (written with defaults on first
// run) and may be overridden by STAFFPROOF_* environment variables, e.g.
// STAFFPROOF_API_URL or STAFFPROOF_RETRY_MAX_ATTEMPTS.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abelbrown/staffproof/internal/query"
)

const (
	envPrefix = "STAFFPROOF"
	fileName  = "config.yaml"

	KeyAPIURL         = "api_url"
	KeyAPIToken       = "api_token"
	KeyTimeout        = "timeout"
	KeyRatePerSecond  = "rate_per_second"
	KeyPageSize       = "page_size"
	KeySearchDebounce = "search_debounce"
	KeyRetryAttempts  = "retry.max_attempts"
	KeyListen         = "listen"
	KeyDBPath         = "db_path"
	KeyLatency        = "latency"
	KeyLogLevel       = "log_level"
	KeyEventsPath     = "events_path"
)

// defaultYAML is written to config.yaml on first run.
const defaultYAML = `# StaffProof configuration. Environment variables STAFFPROOF_<KEY>
# override these (dots become underscores).

api_url: http://localhost:8088
api_token: ""
timeout: 12s
rate_per_second: 0 # 0 disables client-side rate limiting
page_size: 10
search_debounce: 350ms
retry:
  max_attempts: 1

# mock backend
listen: 127.0.0.1:8088
db_path: "" # empty keeps the mock store in memory
latency: 0s

log_level: info
`

// Config is the resolved configuration.
type Config struct {
	API    APIConfig
	List   ListConfig
	Server ServerConfig

	LogLevel   string
	EventsPath string

	// File is the config file that was read, empty if none.
	File string
}

// APIConfig configures the HTTP client.
type APIConfig struct {
	URL           string
	Token         string
	Timeout       time.Duration
	RatePerSecond float64
}

// ListConfig configures list screens.
type ListConfig struct {
	PageSize       int
	SearchDebounce time.Duration
	RetryAttempts  int
}

// ServerConfig configures the mock backend.
type ServerConfig struct {
	Listen  string
	DBPath  string
	Latency time.Duration
}

// Dir returns ~/.staffproof.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".staffproof"), nil
}

// DefaultPath returns ~/.staffproof/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIURL, "http://localhost:8088")
	v.SetDefault(KeyAPIToken, "")
	v.SetDefault(KeyTimeout, 12*time.Second)
	v.SetDefault(KeyRatePerSecond, 0.0)
	v.SetDefault(KeyPageSize, query.DefaultPageSize)
	v.SetDefault(KeySearchDebounce, 350*time.Millisecond)
	v.SetDefault(KeyRetryAttempts, 1)
	v.SetDefault(KeyListen, "127.0.0.1:8088")
	v.SetDefault(KeyDBPath, "")
	v.SetDefault(KeyLatency, time.Duration(0))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyEventsPath, "")
}

// Load reads the config file at path, creating it with defaults when it
// does not exist. An empty path means DefaultPath. Environment variables
// override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := ensureFile(path); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Defaults returns the configuration without reading any file. Environment
// overrides still apply.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		API: APIConfig{
			URL:           strings.TrimRight(strings.TrimSpace(v.GetString(KeyAPIURL)), "/"),
			Token:         strings.TrimSpace(v.GetString(KeyAPIToken)),
			Timeout:       v.GetDuration(KeyTimeout),
			RatePerSecond: v.GetFloat64(KeyRatePerSecond),
		},
		List: ListConfig{
			PageSize:       query.NormalizePageSize(v.GetInt(KeyPageSize)),
			SearchDebounce: v.GetDuration(KeySearchDebounce),
			RetryAttempts:  v.GetInt(KeyRetryAttempts),
		},
		Server: ServerConfig{
			Listen:  v.GetString(KeyListen),
			DBPath:  v.GetString(KeyDBPath),
			Latency: v.GetDuration(KeyLatency),
		},
		LogLevel:   v.GetString(KeyLogLevel),
		EventsPath: v.GetString(KeyEventsPath),
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.API.URL == "" {
		return errors.New("api_url is required")
	}
	if !strings.HasPrefix(c.API.URL, "http://") && !strings.HasPrefix(c.API.URL, "https://") {
		return fmt.Errorf("api_url %q must be http or https", c.API.URL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.API.Timeout)
	}
	if c.API.RatePerSecond < 0 {
		return fmt.Errorf("rate_per_second must not be negative, got %v", c.API.RatePerSecond)
	}
	if c.List.SearchDebounce < 0 {
		return fmt.Errorf("search_debounce must not be negative, got %s", c.List.SearchDebounce)
	}
	if c.List.RetryAttempts < 1 {
		c.List.RetryAttempts = 1
	}
	if c.Server.Latency < 0 {
		return fmt.Errorf("latency must not be negative, got %s", c.Server.Latency)
	}
	return nil
}

// ensureFile writes the default config file if path does not exist.
func ensureFile(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	// The file may hold an API token.
	return os.WriteFile(path, []byte(defaultYAML), 0o600)
}
