package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/hibiken/asynq"

	"ai-judge/internal/config"
	"ai-judge/internal/db"
	"ai-judge/internal/evaluation"
	httpSrv "ai-judge/internal/http"
	"ai-judge/internal/llm"
	"ai-judge/internal/migrations"
	"ai-judge/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "load config: %v", err)
	}

	// Run embedded migrations (idempotent)
	if err := migrations.Run(cfg.DatabaseURL); err != nil {
		clog.FatalContextf(ctx, "migrate: %v", err)
	}

	dbase, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}
	defer dbase.Close()
	store := db.NewStore(dbase)

	if err := seedJudges(ctx, store, cfg.JudgesFile); err != nil {
		clog.FatalContextf(ctx, "seed judges: %v", err)
	}

	ollama, err := llm.NewClient(cfg.OllamaBaseURL,
		llm.WithTimeout(cfg.OllamaTimeout),
		llm.WithListTimeout(cfg.OllamaListTimeout))
	if err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}

	asq := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer asq.Close()

	deps := httpSrv.Deps{
		Store: store,
		Runner: evaluation.NewOrchestrator(store, store, store, ollama,
			evaluation.WithConcurrency(cfg.EvalConcurrency),
			evaluation.WithRunTimeout(cfg.EvalRunTimeout)),
		Stats:  evaluation.NewAggregator(store),
		Models: ollama,
		Queue:  asq,
	}
	if sc := cfg.Storage(); sc.Enabled() {
		s3c, err := storage.New(ctx, sc)
		if err != nil {
			clog.FatalContextf(ctx, "%v", err)
		}
		deps.Archive = s3c
	} else {
		clog.InfoContextf(ctx, "MINIO_ENDPOINT not set, archiving disabled")
	}

	srv := httpSrv.NewServer(fmt.Sprintf(":%d", cfg.Port), deps, cfg.CORSOrigins)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	clog.InfoContextf(ctx, "api listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		clog.FatalContextf(ctx, "%v", err)
	}
}

// seedJudges upserts the judges declared in the seed file, if any.
func seedJudges(ctx context.Context, store *db.Store, path string) error {
	seeds, err := config.LoadJudgeSeeds(path)
	if err != nil {
		return err
	}
	for _, s := range seeds {
		j, err := store.UpsertJudge(ctx, s.Judge())
		if err != nil {
			return fmt.Errorf("judge %q: %w", s.Name, err)
		}
		clog.InfoContextf(ctx, "seeded judge %q (id=%d)", j.Name, j.ID)
	}
	return nil
}
