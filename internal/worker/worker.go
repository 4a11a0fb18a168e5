// Package worker executes evaluation runs queued through asynq.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/hibiken/asynq"

	"ai-judge/internal/evaluation"
	"ai-judge/internal/schemas"
	"ai-judge/internal/storage"
)

const TypeRunEvaluations = "run_evaluations"

type RunPayload struct {
	RunID   string `json:"run_id"`
	QueueID string `json:"queue_id"`
}

// NewRunTask builds the task for one background run. Runs are not retried:
// evaluations are appended, so a retry would grade the queue twice.
func NewRunTask(p RunPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRunEvaluations, b, asynq.MaxRetry(0), asynq.TaskID(p.RunID)), nil
}

type Runner interface {
	Run(ctx context.Context, queueID string) (*evaluation.RunSummary, error)
}

// Archive stores run reports. It is optional.
type Archive interface {
	PutJSON(ctx context.Context, key string, v any) (string, error)
}

type Handler struct {
	runner  Runner
	archive Archive
	now     func() time.Time
}

func NewHandler(runner Runner, archive Archive) *Handler {
	return &Handler{runner: runner, archive: archive, now: time.Now}
}

func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRunEvaluations, h.handleRun)
	return mux
}

func (h *Handler) handleRun(ctx context.Context, t *asynq.Task) error {
	var p RunPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.QueueID == "" {
		return fmt.Errorf("payload without queue_id: %w", asynq.SkipRetry)
	}
	log := clog.FromContext(ctx).With("run_id", p.RunID, "queue_id", p.QueueID)
	ctx = clog.WithLogger(ctx, log)
	log.Infof("starting background evaluation run")

	report := schemas.RunReport{RunID: p.RunID, QueueID: p.QueueID, StartedAt: h.now().UTC()}
	summary, runErr := h.runner.Run(ctx, p.QueueID)
	report.FinishedAt = h.now().UTC()
	report.Summary = summary
	if runErr != nil {
		report.Error = runErr.Error()
	}

	if h.archive != nil && p.RunID != "" {
		ref, err := h.archive.PutJSON(ctx, storage.RunReportKey(p.RunID), report)
		if err != nil {
			log.Warnf("failed to archive run report: %v", err)
		} else {
			log.Infof("archived run report at %s", ref)
		}
	}

	if runErr != nil {
		return fmt.Errorf("run %s: %w", p.RunID, runErr)
	}
	return nil
}

func Run(redisAddr string, concurrency int, h *Handler) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: concurrency})
	return srv.Run(h.Mux())
}
