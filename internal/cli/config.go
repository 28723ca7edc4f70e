package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/inbound"
	"gopkg.in/yaml.v3"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a double
// underscore: DONATIONS_PAYPAL__CLIENT_SECRET sets paypal.client_secret.
const EnvPrefix = "DONATIONS_"

const (
	defaultHTTPAddress = ":8080"
	defaultDriver      = "sqlite3"
	defaultDSN         = "file:donations.db?cache=shared&_foreign_keys=on"
)

type HTTPConfig struct {
	Address      string `yaml:"address"`
	WebhookPath  string `yaml:"webhook_path"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

type DatabaseConfig struct {
	Driver      string        `yaml:"driver"`
	DSN         string        `yaml:"dsn"`
	Debug       bool          `yaml:"debug"`
	PingTimeout time.Duration `yaml:"ping_timeout"`
	AutoMigrate bool          `yaml:"auto_migrate"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CacheConfig struct {
	SummaryTTL time.Duration `yaml:"summary_ttl"`
}

// AppConfig is the process configuration. Donation settings stay raw here and
// are resolved by the service's own config provider.
type AppConfig struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Cache    CacheConfig    `yaml:"cache"`

	Donations map[string]any `yaml:"-"`
}

func DefaultAppConfig() AppConfig {
	return AppConfig{
		HTTP: HTTPConfig{
			Address:      defaultHTTPAddress,
			WebhookPath:  core.DefaultWebhookPath,
			MaxBodyBytes: inbound.DefaultMaxBodyBytes,
		},
		Database: DatabaseConfig{
			Driver:      defaultDriver,
			DSN:         defaultDSN,
			PingTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Cache: CacheConfig{
			SummaryTTL: time.Minute,
		},
		Donations: map[string]any{},
	}
}

// LoadConfig reads the YAML file at path (optional) and applies environment
// overrides from environ.
func LoadConfig(path string, environ []string) (AppConfig, error) {
	raw := map[string]any{}
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return AppConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}
	if err := applyEnvOverrides(raw, environ); err != nil {
		return AppConfig{}, err
	}

	cfg := DefaultAppConfig()
	sections := map[string]any{}
	for _, key := range []string{"http", "database", "log", "cache"} {
		if value, ok := raw[key]; ok {
			sections[key] = value
			delete(raw, key)
		}
	}
	if len(sections) > 0 {
		// Round trip through yaml so durations and numbers decode with the
		// struct tags above.
		data, err := yaml.Marshal(sections)
		if err != nil {
			return AppConfig{}, fmt.Errorf("encode config sections: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("decode config sections: %w", err)
		}
	}
	cfg.Donations = raw
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.Database.Driver) == "" {
		return fmt.Errorf("database.driver is required")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must not be negative")
	}
	if path := strings.TrimSpace(c.HTTP.WebhookPath); path != "" && !strings.HasPrefix(path, "/") {
		return fmt.Errorf("http.webhook_path must start with /")
	}
	return nil
}

func applyEnvOverrides(raw map[string]any, environ []string) error {
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "__")
		if len(path) == 0 || path[0] == "" {
			continue
		}
		if err := setPath(raw, path, parseScalar(value)); err != nil {
			return fmt.Errorf("apply %s: %w", key, err)
		}
	}
	return nil
}

func setPath(target map[string]any, path []string, value any) error {
	current := target
	for _, segment := range path[:len(path)-1] {
		next, exists := current[segment]
		if !exists || next == nil {
			child := map[string]any{}
			current[segment] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%q is not a section", segment)
		}
		current = child
	}
	current[path[len(path)-1]] = value
	return nil
}

// parseScalar decodes an environment value the way a YAML scalar would be
// read, so "8080" becomes an int and "true" a bool.
func parseScalar(value string) any {
	var out any
	if err := yaml.Unmarshal([]byte(value), &out); err != nil {
		return value
	}
	switch out.(type) {
	case map[string]any, []any, nil:
		return value
	}
	return out
}
