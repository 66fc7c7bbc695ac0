// Package config loads the service configuration from the environment.
//
// Values are read from variables prefixed with JOKES_ (a `.env` file in the
// working directory is loaded first), decoded on top of DefaultConfig and
// validated before the rest of the application sees them. A double
// underscore separates nesting levels:
//
//	JOKES_SERVER__PORT=9000          -> server.port
//	JOKES_DATABASE__DRIVER=postgres  -> database.driver
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix every configuration variable carries.
	EnvPrefix = "JOKES_"

	// ServiceName is reported to logs and APM regardless of configuration.
	ServiceName = "jokes-api"

	// DefaultUpstreamURL is the JokeAPI endpoint the fetch operation calls.
	DefaultUpstreamURL = "https://v2.jokeapi.dev/joke/Any?type=single,twopart&lang=en&amount=100"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis"`
	Upstream      UpstreamConfig       `koanf:"upstream" validate:"required"`
	Jobs          JobsConfig           `koanf:"jobs"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig holds the HTTP listener settings. Timeouts are in seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required,min=1"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required,min=1"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required,min=1"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// ExposeInternalErrors makes GET /jokes answer storage failures with the
	// raw error text instead of the generic status text.
	ExposeInternalErrors bool `koanf:"expose_internal_errors"`
}

// DatabaseConfig selects and configures the joke store.
//
// The sqlite driver only needs Path. The postgres driver uses the
// connection fields and the pool settings (lifetimes in seconds).
type DatabaseConfig struct {
	Driver          string `koanf:"driver" validate:"required,oneof=sqlite postgres"`
	Path            string `koanf:"path" validate:"required_if=Driver sqlite"`
	Host            string `koanf:"host" validate:"required_if=Driver postgres"`
	Port            int    `koanf:"port" validate:"required_if=Driver postgres"`
	User            string `koanf:"user" validate:"required_if=Driver postgres"`
	Password        string `koanf:"password"`
	Name            string `koanf:"name" validate:"required_if=Driver postgres"`
	SSLMode         string `koanf:"ssl_mode" validate:"required_if=Driver postgres"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int    `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"min=0"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"min=0"`
}

// RedisConfig is optional. An empty Address disables Redis and the
// scheduled refresh job.
type RedisConfig struct {
	Address string `koanf:"address"`
}

// UpstreamConfig configures the JokeAPI client. A zero Timeout means the
// call is bounded only by the request context.
type UpstreamConfig struct {
	URL       string        `koanf:"url" validate:"required,url"`
	Timeout   time.Duration `koanf:"timeout" validate:"min=0"`
	UserAgent string        `koanf:"user_agent"`
}

// JobsConfig controls the periodic cache refresh.
type JobsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	FetchSchedule string `koanf:"fetch_schedule" validate:"required_if=Enabled true"`
	Concurrency   int    `koanf:"concurrency" validate:"min=1"`
}

// DefaultConfig returns a configuration that runs the service on :8080 with
// a jokes.db file in the working directory and nothing else configured.
func DefaultConfig() *Config {
	return &Config{
		Primary: Primary{Env: "development"},
		Server: ServerConfig{
			Port:                 "8080",
			ReadTimeout:          30,
			WriteTimeout:         30,
			IdleTimeout:          60,
			CORSAllowedOrigins:   []string{"*"},
			ExposeInternalErrors: true,
		},
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "jokes.db",
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 3600,
			ConnMaxIdleTime: 300,
		},
		Upstream: UpstreamConfig{
			URL:       DefaultUpstreamURL,
			UserAgent: ServiceName,
		},
		Jobs: JobsConfig{
			FetchSchedule: "@every 1h",
			Concurrency:   1,
		},
		Observability: DefaultObservabilityConfig(),
	}
}

// LoadConfig reads JOKES_* variables over the defaults and validates the
// result.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	mainConfig := DefaultConfig()
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}
	mainConfig.Observability.ServiceName = ServiceName
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Validate(); err != nil {
		return nil, err
	}

	return mainConfig, nil
}

// envKey maps JOKES_SERVER__READ_TIMEOUT to server.read_timeout.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate runs the struct tag rules plus the cross-section checks the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Jobs.Enabled && c.Redis.Address == "" {
		return errors.New("config validation failed: jobs.enabled requires redis.address")
	}

	return nil
}

// IsLocal reports whether SQL statement tracing should be switched on.
func (c *Config) IsLocal() bool {
	return c.Primary.Env == "local"
}
