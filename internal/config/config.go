package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	// ReadLimit caps one inbound frame. Larger frames close the socket with 1009,
	// so it has to fit a data-URL screen-share frame.
	ReadLimit  int64         `mapstructure:"read_limit"`
	SendBuffer int           `mapstructure:"send_buffer"`
	WriteWait  time.Duration `mapstructure:"write_wait"`

	Liveness  LivenessConfig  `mapstructure:"liveness"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Store     StoreConfig     `mapstructure:"store"`
	Validator ValidatorConfig `mapstructure:"validator"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`

	ICEServers []ICEServerConfig `mapstructure:"ice_servers"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type LivenessConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type AuthConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type StoreConfig struct {
	Driver   string          `mapstructure:"driver"`
	DSN      string          `mapstructure:"dsn"`
	Meetings []MeetingConfig `mapstructure:"meetings"`
}

// MeetingConfig seeds the memory store.
type MeetingConfig struct {
	ID         string `mapstructure:"id"`
	Status     string `mapstructure:"status"`
	HostJoined bool   `mapstructure:"host_joined"`
}

// ValidatorConfig tunes the meeting validity cache. A verdict is reused for
// CacheTTL, so a meeting whose host left can keep relaying for up to that long
// before its members are closed. Zero makes every message hit the store.
type ValidatorConfig struct {
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CacheSize    int           `mapstructure:"cache_size"`
	LiveStatuses []string      `mapstructure:"live_statuses"`
}

type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

const envPrefix = "MEETHUB"

// Load reads config/config.<CONFIG_ENV>.yaml, or the file given by --config,
// with MEETHUB_* environment overrides on top.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("meethub", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to a yaml config file")
	port := fs.IntP("port", "p", 0, "listen port, overrides the config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")

	fileName := *configPath
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if *configPath != "" {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}
	if fs.Changed("port") {
		v.Set("port", *port)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 8<<20)
	v.SetDefault("send_buffer", 256)
	v.SetDefault("write_wait", "5s")
	v.SetDefault("liveness.interval", "30s")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("validator.cache_ttl", "2s")
	v.SetDefault("validator.cache_size", 4096)
	v.SetDefault("validator.live_statuses", []string{"live", "in_progress"})
	v.SetDefault("ratelimit.per_second", 30)
	v.SetDefault("ratelimit.burst", 60)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("metrics.enabled", true)
}

func (c *Config) validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Liveness.Interval <= 0 {
		return fmt.Errorf("liveness.interval must be positive")
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}
