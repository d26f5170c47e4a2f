package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leafsii/kvconn/pkg/kv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env      string `mapstructure:"KVC_ENV"`
	HTTPAddr string `mapstructure:"KVC_HTTP_ADDR"`

	Client   ClientConfig   `mapstructure:",squash"`
	Redis    RedisConfig    `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type ClientConfig struct {
	ConnectionName string        `mapstructure:"KVC_CONNECTION_NAME"` // empty generates kvconn-<uuid>
	KeyPrefix      string        `mapstructure:"KVC_KEY_PREFIX"`      // standalone only
	ReadyTimeout   time.Duration `mapstructure:"KVC_READY_TIMEOUT"`
}

type RedisConfig struct {
	Type     string   `mapstructure:"KVC_REDIS_TYPE"` // "STANDALONE", "CLUSTER"
	Host     string   `mapstructure:"KVC_REDIS_HOST"`
	Port     int      `mapstructure:"KVC_REDIS_PORT"`
	Password string   `mapstructure:"KVC_REDIS_PASSWORD"`
	TLS      bool     `mapstructure:"KVC_REDIS_TLS"`
	DB       *int     `mapstructure:"KVC_REDIS_DB"`
	URLs     []string `mapstructure:"KVC_REDIS_URLS"`

	// ClusterOptionsJSON is a JSON object such as {"max-redirects":5}
	ClusterOptionsJSON string `mapstructure:"KVC_REDIS_CLUSTER_OPTIONS"`
	ClusterOptions     map[string]any
}

type SecurityConfig struct {
	RateLimitRPM int `mapstructure:"KVC_RATE_LIMIT_RPM"`
}

// envKeys lists every variable read from the environment. Keys without a
// default must be bound explicitly or Unmarshal never sees them.
var envKeys = []string{
	"KVC_ENV",
	"KVC_HTTP_ADDR",
	"KVC_CONNECTION_NAME",
	"KVC_KEY_PREFIX",
	"KVC_READY_TIMEOUT",
	"KVC_RATE_LIMIT_RPM",
	"KVC_REDIS_TYPE",
	"KVC_REDIS_HOST",
	"KVC_REDIS_PORT",
	"KVC_REDIS_PASSWORD",
	"KVC_REDIS_TLS",
	"KVC_REDIS_DB",
	"KVC_REDIS_URLS",
	"KVC_REDIS_CLUSTER_OPTIONS",
}

// flagKeys maps command-line flags to the variables they override
var flagKeys = map[string]string{
	"env":       "KVC_ENV",
	"http-addr": "KVC_HTTP_ADDR",
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // ignore errors; env vars already set take precedence
		}
	}
}

// Load reads .env files, the environment and, when fs is non-nil, the --env and
// --http-addr flags. Flags win over the environment.
func Load(fs *pflag.FlagSet) (*Config, error) {
	loadDotEnvFiles()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("KVC_ENV", "dev")
	v.SetDefault("KVC_HTTP_ADDR", ":8080")
	v.SetDefault("KVC_READY_TIMEOUT", kv.DefaultReadyTimeout.String())
	v.SetDefault("KVC_RATE_LIMIT_RPM", 120)
	v.SetDefault("KVC_REDIS_TYPE", string(kv.TopologyStandalone))
	v.SetDefault("KVC_REDIS_HOST", "127.0.0.1")
	v.SetDefault("KVC_REDIS_PORT", 6379)
	v.SetDefault("KVC_REDIS_TLS", false)

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if flag := fs.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("failed to bind --%s: %w", name, err)
				}
			}
		}
	}

	// Handle array parsing for comma-separated values
	if urls := v.GetString("KVC_REDIS_URLS"); urls != "" {
		v.Set("KVC_REDIS_URLS", splitList(urls))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Redis.Type = strings.ToUpper(strings.TrimSpace(cfg.Redis.Type))
	if raw := strings.TrimSpace(cfg.Redis.ClusterOptionsJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Redis.ClusterOptions); err != nil {
			return nil, fmt.Errorf("invalid KVC_REDIS_CLUSTER_OPTIONS: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) validate() error {
	switch c.Env {
	case "dev", "prod":
	default:
		return fmt.Errorf("invalid KVC_ENV %q (must be dev or prod)", c.Env)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("KVC_HTTP_ADDR is required")
	}
	if c.Security.RateLimitRPM <= 0 {
		return fmt.Errorf("KVC_RATE_LIMIT_RPM must be positive")
	}
	if c.Client.ReadyTimeout <= 0 {
		return fmt.Errorf("KVC_READY_TIMEOUT must be positive")
	}
	return c.KV().Validate()
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// KV returns the client configuration for the selected topology. Fields of the
// other topology are left out, so defaults such as the standalone host never
// leak into a cluster config.
func (c *Config) KV() kv.Config {
	topology := kv.Topology(c.Redis.Type)
	cfg := kv.Config{
		Topology: topology,
		Password: c.Redis.Password,
		TLS:      c.Redis.TLS,
	}

	switch topology {
	case kv.TopologyCluster:
		cfg.URLs = c.Redis.URLs
		cfg.ClusterOptions = c.Redis.ClusterOptions
	default:
		cfg.Host = c.Redis.Host
		cfg.Port = c.Redis.Port
		cfg.DB = c.Redis.DB
	}
	return cfg
}

// ClientOptions returns the kv options carried by the configuration
func (c *Config) ClientOptions() []kv.Option {
	return []kv.Option{
		kv.WithKeyPrefix(c.Client.KeyPrefix),
		kv.WithReadyTimeout(c.Client.ReadyTimeout),
	}
}
