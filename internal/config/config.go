package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Port                string   `mapstructure:"PORT"`
	Env                 string   `mapstructure:"ENV"`
	LogLevel            string   `mapstructure:"LOG_LEVEL"`
	StoreDriver         string   `mapstructure:"STORE_DRIVER"`
	DataDir             string   `mapstructure:"DATA_DIR"`
	DatabaseURL         string   `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32    `mapstructure:"DB_MIN_CONNS"`
	SQLitePath          string   `mapstructure:"SQLITE_PATH"`
	AgentsSource        string   `mapstructure:"AGENTS_SOURCE"`
	PatientsSource      string   `mapstructure:"PATIENTS_SOURCE"`
	EventLogSource      string   `mapstructure:"EVENT_LOG_SOURCE"`
	RefreshSeconds      float64  `mapstructure:"REFRESH_INTERVAL"`
	MutationProbability float64  `mapstructure:"MUTATION_PROBABILITY"`
	MutationSeed        uint64   `mapstructure:"MUTATION_SEED"`
	CORSOrigins         []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int      `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit           string   `mapstructure:"BODY_LIMIT"`
	TLSEnabled          bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile         string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile          string   `mapstructure:"TLS_KEY_FILE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"STORE_DRIVER", "DATA_DIR", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "SQLITE_PATH",
	"AGENTS_SOURCE", "PATIENTS_SOURCE", "EVENT_LOG_SOURCE",
	"REFRESH_INTERVAL", "MUTATION_PROBABILITY", "MUTATION_SEED",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

// Load reads configuration from the environment and an optional .env file
// in the working directory.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", "file")
	v.SetDefault("DATA_DIR", "shared_data")
	v.SetDefault("DB_MAX_CONNS", 5)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("SQLITE_PATH", "dashboard.db")
	v.SetDefault("AGENTS_SOURCE", "agents.json")
	v.SetDefault("PATIENTS_SOURCE", "patient.json")
	v.SetDefault("EVENT_LOG_SOURCE", "event_log.json")
	v.SetDefault("REFRESH_INTERVAL", 2)
	v.SetDefault("MUTATION_PROBABILITY", 0.3)
	v.SetDefault("MUTATION_SEED", 0)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BODY_LIMIT", "64K")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading the env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RefreshInterval is REFRESH_INTERVAL as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSeconds * float64(time.Second))
}

// Level parses LOG_LEVEL, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks that the configuration can run.
func (c *Config) Validate() error {
	if c.RefreshSeconds <= 0 || math.IsNaN(c.RefreshSeconds) || math.IsInf(c.RefreshSeconds, 0) {
		return fmt.Errorf("REFRESH_INTERVAL must be a positive number of seconds, got %v", c.RefreshSeconds)
	}
	if c.MutationProbability < 0 || c.MutationProbability > 1 || math.IsNaN(c.MutationProbability) {
		return fmt.Errorf("MUTATION_PROBABILITY must be within [0, 1], got %v", c.MutationProbability)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
	}

	switch c.StoreDriver {
	case "file":
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required when STORE_DRIVER is \"file\"")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is \"postgres\"")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) and DB_MAX_CONNS (%d) are inconsistent", c.DBMinConns, c.DBMaxConns)
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is \"sqlite\"")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be \"file\", \"postgres\", or \"sqlite\", got %q", c.StoreDriver)
	}

	sources := map[string]string{}
	for key, src := range map[string]string{
		"AGENTS_SOURCE":    c.AgentsSource,
		"PATIENTS_SOURCE":  c.PatientsSource,
		"EVENT_LOG_SOURCE": c.EventLogSource,
	} {
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
		if other, dup := sources[src]; dup {
			return fmt.Errorf("%s and %s both name source %q", key, other, src)
		}
		sources[src] = key
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
