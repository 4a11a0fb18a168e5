package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ai-judge/internal/evaluation"
	"ai-judge/internal/schemas"
	"ai-judge/internal/storage"
	"ai-judge/internal/verdict"
	"ai-judge/internal/worker"
)

func (s *Server) runEvaluations(w http.ResponseWriter, r *http.Request) {
	var req schemas.RunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.Runner.Run(r.Context(), req.QueueID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) enqueueEvaluations(w http.ResponseWriter, r *http.Request) {
	if s.Queue == nil {
		unavailable(w, "background evaluation")
		return
	}
	var req schemas.RunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	runID := uuid.NewString()
	task, err := worker.NewRunTask(worker.RunPayload{RunID: runID, QueueID: req.QueueID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	info, err := s.Queue.EnqueueContext(r.Context(), task)
	if err != nil {
		writeError(w, r, err)
		return
	}
	clog.FromContext(r.Context()).With("run_id", runID, "queue_id", req.QueueID).Infof("enqueued evaluation run")
	writeJSON(w, http.StatusAccepted, schemas.EnqueueResponse{RunID: runID, QueueID: req.QueueID, TaskID: info.ID})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		unavailable(w, "run archive")
		return
	}
	id := chi.URLParam(r, "id")
	if err := uuid.Validate(id); err != nil {
		writeError(w, r, schemas.NewValidationWrap("invalid run id", err))
		return
	}
	var report schemas.RunReport
	if err := s.Archive.GetJSON(r.Context(), storage.RunReportKey(id), &report); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) listEvaluations(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	evals, err := s.Store.QueryEvaluations(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(evals))
}

func (s *Server) evaluationStats(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := s.Stats.Stats(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) statsByQueue(w http.ResponseWriter, r *http.Request) {
	byQueue, err := s.Stats.StatsByQueue(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, byQueue)
}

func (s *Server) ollamaModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.Models.ListModels(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errResp{"Ollama not available: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemas.ModelsResponse{Models: nonNil(models)})
}

// parseFilter reads judge_ids, question_ids (both comma separated) and
// verdict. Absent or empty parameters do not filter.
func parseFilter(q url.Values) (evaluation.Filter, error) {
	var f evaluation.Filter
	for _, raw := range splitList(q.Get("judge_ids")) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, schemas.NewValidationWrap("judge_ids must be comma separated integers", err)
		}
		f.JudgeIDs = append(f.JudgeIDs, id)
	}
	f.QuestionIDs = splitList(q.Get("question_ids"))
	if v := strings.TrimSpace(q.Get("verdict")); v != "" {
		parsed, ok := verdict.ParseVerdict(v)
		if !ok {
			return f, schemas.NewValidation("verdict must be one of pass, fail, inconclusive")
		}
		f.Verdict = &parsed
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
