package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ai-judge/internal/db"
	"ai-judge/internal/evaluation"
	"ai-judge/internal/schemas"
	"ai-judge/internal/storage"
)

// Store is the persistence surface the API needs; *db.Store satisfies it.
type Store interface {
	Ping(ctx context.Context) error
	UploadSubmissions(ctx context.Context, uploads []db.SubmissionUpload) (int, error)
	ListQueues(ctx context.Context) ([]db.QueueSummary, error)
	QueueSubmissions(ctx context.Context, queueID string) ([]db.QueueSubmission, error)
	QueueQuestions(ctx context.Context, queueID string) ([]db.QueueQuestion, error)
	DeleteQueue(ctx context.Context, queueID string) error
	CreateJudge(ctx context.Context, j evaluation.Judge) (*evaluation.Judge, error)
	ListJudges(ctx context.Context) ([]evaluation.Judge, error)
	GetJudge(ctx context.Context, id int64) (*evaluation.Judge, error)
	UpdateJudge(ctx context.Context, id int64, p db.JudgePatch) (*evaluation.Judge, error)
	DeleteJudge(ctx context.Context, id int64) error
	AssignJudges(ctx context.Context, queueID, templateID string, judgeIDs []int64) error
	QueryEvaluations(ctx context.Context, f evaluation.Filter) ([]evaluation.EvaluationView, error)
}

type Runner interface {
	Run(ctx context.Context, queueID string) (*evaluation.RunSummary, error)
}

type StatsSource interface {
	Stats(ctx context.Context, f evaluation.Filter) (*evaluation.Stats, error)
	StatsByQueue(ctx context.Context) (map[string][]evaluation.JudgeQueueStats, error)
}

type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Archive interface {
	PutRaw(ctx context.Context, key string, b []byte) (string, error)
	GetJSON(ctx context.Context, ref string, v any) error
}

// Deps wires the API. Queue and Archive may be nil, which disables
// background runs and archiving.
type Deps struct {
	Store   Store
	Runner  Runner
	Stats   StatsSource
	Models  ModelLister
	Queue   Enqueuer
	Archive Archive
}

type Server struct {
	Deps
}

func NewServer(addr string, d Deps, corsOrigins []string) *http.Server {
	return &http.Server{Addr: addr, Handler: NewHandler(d, corsOrigins)}
}

func NewHandler(d Deps, corsOrigins []string) http.Handler {
	s := &Server{Deps: d}
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, m.Logger, m.Recoverer, requestLogger, CORS(corsOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Post("/submissions/upload", s.uploadSubmissions)

		r.Get("/queues", s.listQueues)
		r.Get("/queues/{id}/submissions", s.queueSubmissions)
		r.Get("/queues/{id}/questions", s.queueQuestions)
		r.Delete("/queues/{id}", s.deleteQueue)

		r.Post("/judges", s.createJudge)
		r.Get("/judges", s.listJudges)
		r.Get("/judges/{id}", s.getJudge)
		r.Put("/judges/{id}", s.updateJudge)
		r.Delete("/judges/{id}", s.deleteJudge)

		r.Post("/assignments", s.assignJudges)

		r.Post("/evaluations/run", s.runEvaluations)
		r.Post("/evaluations/enqueue", s.enqueueEvaluations)
		r.Get("/runs/{id}", s.getRun)
		r.Get("/evaluations", s.listEvaluations)
		r.Get("/evaluations/stats", s.evaluationStats)
		r.Get("/evaluations/stats/by-queue", s.statsByQueue)

		r.Get("/ollama/models", s.ollamaModels)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.Store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "db error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *schemas.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errResp{ve.Error()})
	case errors.Is(err, db.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResp{err.Error()})
	case errors.Is(err, db.ErrConflict):
		writeJSON(w, http.StatusConflict, errResp{err.Error()})
	default:
		clog.FromContext(r.Context()).Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errResp{err.Error()})
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return schemas.NewValidationWrap("invalid JSON body", err)
	}
	return nil
}

func unavailable(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusServiceUnavailable, errResp{fmt.Sprintf("%s is not configured", what)})
}
