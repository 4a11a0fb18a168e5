package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"DATABASE_URL": "postgres://judge@localhost/judge",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 2112, cfg.MetricsPort)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaBaseURL)
	assert.Equal(t, 120*time.Second, cfg.OllamaTimeout)
	assert.Equal(t, 10*time.Second, cfg.OllamaListTimeout)
	assert.Equal(t, 4, cfg.EvalConcurrency)
	assert.Equal(t, time.Duration(0), cfg.EvalRunTimeout)
	assert.Equal(t, 5, cfg.WorkerConcurrency)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.Storage().Enabled())
	assert.Equal(t, "ai-judge", cfg.MinIO.Bucket)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"DATABASE_URL":     "postgres://x",
		"PORT":             "9000",
		"EVAL_CONCURRENCY": "16",
		"EVAL_RUN_TIMEOUT": "5m",
		"CORS_ORIGINS":     "http://localhost:5173,https://judge.example.com",
		"MINIO_ENDPOINT":   "minio:9000",
		"MINIO_BUCKET":     "runs",
		"MINIO_ACCESS_KEY": "minio",
		"MINIO_SECRET_KEY": "minio123",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 16, cfg.EvalConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.EvalRunTimeout)
	assert.Equal(t, []string{"http://localhost:5173", "https://judge.example.com"}, cfg.CORSOrigins)

	sc := cfg.Storage()
	assert.True(t, sc.Enabled())
	assert.Equal(t, "runs", sc.Bucket)
	assert.Equal(t, "minio", sc.AccessKey)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database url", env: map[string]string{}},
		{name: "zero concurrency", env: map[string]string{"DATABASE_URL": "x", "EVAL_CONCURRENCY": "0"}},
		{name: "bad port", env: map[string]string{"DATABASE_URL": "x", "PORT": "70000"}},
		{name: "bad duration", env: map[string]string{"DATABASE_URL": "x", "OLLAMA_TIMEOUT": "soon"}},
		{name: "negative run timeout", env: map[string]string{"DATABASE_URL": "x", "EVAL_RUN_TIMEOUT": "-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(context.Background(), envconfig.MapLookuper(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoadJudgeSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "judges.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
judges:
  - name: strict
    model_name: llama3.2
    system_prompt: |
      You are a strict compliance reviewer.
  - name: " lenient "
    model_name: mistral
    active: false
`), 0o600))

	seeds, err := LoadJudgeSeeds(path)
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	strict := seeds[0].Judge()
	assert.Equal(t, "strict", strict.Name)
	assert.Equal(t, "You are a strict compliance reviewer.\n", strict.SystemPrompt)
	assert.True(t, strict.Active)

	lenient := seeds[1].Judge()
	assert.Equal(t, "lenient", lenient.Name)
	assert.False(t, lenient.Active)
}

func TestLoadJudgeSeedsEmptyPath(t *testing.T) {
	seeds, err := LoadJudgeSeeds("")
	require.NoError(t, err)
	assert.Nil(t, seeds)
}

func TestParseJudgeSeedsRejects(t *testing.T) {
	tests := map[string]string{
		"missing name":  "judges:\n  - model_name: llama3\n",
		"missing model": "judges:\n  - name: a\n",
		"duplicate":     "judges:\n  - {name: a, model_name: m}\n  - {name: a, model_name: m}\n",
		"unknown field": "judges:\n  - {name: a, model_name: m, temperature: 0.2}\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseJudgeSeeds([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestParseJudgeSeedsEmptyFile(t *testing.T) {
	seeds, err := parseJudgeSeeds(nil)
	require.NoError(t, err)
	assert.Empty(t, seeds)
}
