package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the API service.
type Config struct {
	Addr           string        `env:"ADDR,default=:8080"`
	DBDriver       string        `env:"DB_DRIVER,default=postgres"`
	DBDSN          string        `env:"DB_DSN,required"`
	DBSeed         bool          `env:"DB_SEED,default=false"`
	OTLPEndpoint   string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	RateLimit      int           `env:"RATE_LIMIT_PER_MINUTE,default=600"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=60s"`
	RunsLimit      int           `env:"RUNS_DEFAULT_LIMIT,default=50"`
	RunsMaxLimit   int           `env:"RUNS_MAX_LIMIT,default=500"`
	NATSURL        string        `env:"NATS_URL"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`
	LogFormat      string        `env:"LOG_FORMAT,default=console"`
	S3             S3Config      `env:", prefix=S3_"`
}

// S3Config configures the optional archive of completed run results.
type S3Config struct {
	Endpoint       string `env:"ENDPOINT"`
	AccessKey      string `env:"ACCESS_KEY"`
	SecretKey      string `env:"SECRET_KEY"`
	Region         string `env:"REGION,default=us-east-1"`
	Bucket         string `env:"BUCKET,default=cdrpulse-runs"`
	DisableTLS     bool   `env:"DISABLE_TLS,default=false"`
	ForcePathStyle bool   `env:"FORCE_PATH_STYLE,default=true"`
}

// Enabled reports whether an object store endpoint was configured.
func (c S3Config) Enabled() bool {
	return c.Endpoint != ""
}

// Client holds settings for the terminal wizard.
type Client struct {
	APIURL         string        `env:"CDRPULSE_API_URL,default=http://localhost:8080"`
	SimulatedDelay time.Duration `env:"WIZARD_SIMULATED_DELAY,default=1500ms"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith returns a Config populated from the given lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watcher holds settings for the event watcher.
type Watcher struct {
	NATSURL string `env:"NATS_URL,default=nats://127.0.0.1:4222"`
	Durable string `env:"WATCH_DURABLE,default=cdrpulse-watch"`
}

// LoadClient returns the wizard client settings from the environment.
func LoadClient(ctx context.Context) (Client, error) {
	return process[Client](ctx, envconfig.OsLookuper())
}

// LoadWatcher returns the event watcher settings from the environment.
func LoadWatcher(ctx context.Context) (Watcher, error) {
	return process[Watcher](ctx, envconfig.OsLookuper())
}

func process[T any](ctx context.Context, lookuper envconfig.Lookuper) (T, error) {
	var cfg T
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		var zero T
		return zero, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.RunsLimit <= 0 {
		return fmt.Errorf("RUNS_DEFAULT_LIMIT must be positive")
	}
	if c.RunsMaxLimit < c.RunsLimit {
		return fmt.Errorf("RUNS_MAX_LIMIT (%d) must be at least RUNS_DEFAULT_LIMIT (%d)", c.RunsMaxLimit, c.RunsLimit)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}
