package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ai-judge/internal/config"
	"ai-judge/internal/db"
	"ai-judge/internal/evaluation"
	"ai-judge/internal/llm"
	"ai-judge/internal/storage"
	"ai-judge/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "load config: %v", err)
	}

	dbase := db.MustOpen(cfg.DatabaseURL)
	defer dbase.Close()
	store := db.NewStore(dbase)

	ollama, err := llm.NewClient(cfg.OllamaBaseURL,
		llm.WithTimeout(cfg.OllamaTimeout),
		llm.WithListTimeout(cfg.OllamaListTimeout))
	if err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}
	orch := evaluation.NewOrchestrator(store, store, store, ollama,
		evaluation.WithConcurrency(cfg.EvalConcurrency),
		evaluation.WithRunTimeout(cfg.EvalRunTimeout))

	var archive worker.Archive
	if sc := cfg.Storage(); sc.Enabled() {
		s3c, err := storage.New(ctx, sc)
		if err != nil {
			clog.FatalContextf(ctx, "%v", err)
		}
		archive = s3c
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			clog.ErrorContextf(ctx, "metrics listener: %v", err)
		}
	}()

	clog.InfoContextf(ctx, "worker consuming from %s (concurrency=%d)", cfg.RedisAddr, cfg.WorkerConcurrency)
	if err := worker.Run(cfg.RedisAddr, cfg.WorkerConcurrency, worker.NewHandler(orch, archive)); err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}
}
