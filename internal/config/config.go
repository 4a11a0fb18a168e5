// Package config loads process configuration from the environment and the
// optional judge seed file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"ai-judge/internal/storage"
)

type Config struct {
	Port        int    `env:"PORT,default=8000"`
	MetricsPort int    `env:"METRICS_PORT,default=2112"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR,default=localhost:6379"`

	OllamaBaseURL     string        `env:"OLLAMA_BASE_URL,default=http://localhost:11434"`
	OllamaTimeout     time.Duration `env:"OLLAMA_TIMEOUT,default=120s"`
	OllamaListTimeout time.Duration `env:"OLLAMA_LIST_TIMEOUT,default=10s"`

	EvalConcurrency   int           `env:"EVAL_CONCURRENCY,default=4"`
	EvalRunTimeout    time.Duration `env:"EVAL_RUN_TIMEOUT,default=0s"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY,default=5"`

	CORSOrigins []string `env:"CORS_ORIGINS,default=*"`
	JudgesFile  string   `env:"JUDGES_FILE"`

	MinIO MinIO `env:",prefix=MINIO_"`
}

// MinIO holds the archive bucket settings. An empty endpoint disables the
// archive.
type MinIO struct {
	Endpoint  string `env:"ENDPOINT"`
	Bucket    string `env:"BUCKET,default=ai-judge"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
}

func (c Config) Storage() storage.Config {
	return storage.Config{
		Endpoint:  c.MinIO.Endpoint,
		Bucket:    c.MinIO.Bucket,
		AccessKey: c.MinIO.AccessKey,
		SecretKey: c.MinIO.SecretKey,
	}
}

// Load reads an optional .env file (ENV_PATH, default ".env") and then the
// process environment.
func Load(ctx context.Context) (*Config, error) {
	path := os.Getenv("ENV_PATH")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		slog.Debug("no .env file, using process environment", "path", path)
	}
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("METRICS_PORT out of range: %d", c.MetricsPort)
	}
	if c.EvalConcurrency < 1 {
		return fmt.Errorf("EVAL_CONCURRENCY must be at least 1, got %d", c.EvalConcurrency)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.WorkerConcurrency)
	}
	if c.EvalRunTimeout < 0 {
		return fmt.Errorf("EVAL_RUN_TIMEOUT must not be negative, got %s", c.EvalRunTimeout)
	}
	if c.OllamaTimeout <= 0 || c.OllamaListTimeout <= 0 {
		return errors.New("OLLAMA_TIMEOUT and OLLAMA_LIST_TIMEOUT must be positive")
	}
	return nil
}
