package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/chainguard-dev/clog"
	"github.com/go-chi/chi/v5"

	"ai-judge/internal/db"
	"ai-judge/internal/schemas"
	"ai-judge/internal/storage"
)

const maxUploadBytes = 32 << 20

type uploadResp struct {
	Message    string `json:"message"`
	Count      int    `json:"count"`
	ArchiveRef string `json:"archive_ref,omitempty"`
}

func (s *Server) uploadSubmissions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, schemas.NewValidationWrap("multipart field \"file\" is required", err))
		return
	}
	defer file.Close()

	b, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, schemas.NewValidationWrap("read upload", err))
		return
	}
	subs, err := schemas.ParseUpload(b)
	if err != nil {
		writeError(w, r, err)
		return
	}

	uploads := make([]db.SubmissionUpload, 0, len(subs))
	for _, sub := range subs {
		u := db.SubmissionUpload{Raw: sub.Raw()}
		u.Submission, u.Questions, u.Answers = sub.Domain()
		uploads = append(uploads, u)
	}
	n, err := s.Store.UploadSubmissions(r.Context(), uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := uploadResp{Message: fmt.Sprintf("Successfully uploaded %d submissions", n), Count: n}
	if s.Archive != nil {
		ref, err := s.Archive.PutRaw(r.Context(), storage.UploadKey(b), b)
		if err != nil {
			clog.FromContext(r.Context()).Warnf("failed to archive upload: %v", err)
		} else {
			resp.ArchiveRef = ref
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := s.Store.ListQueues(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(queues))
}

func (s *Server) queueSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.Store.QueueSubmissions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(subs))
}

func (s *Server) queueQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := s.Store.QueueQuestions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(qs))
}

func (s *Server) deleteQueue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Store.DeleteQueue(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schemas.MessageResponse{
		Message: fmt.Sprintf("Queue '%s' and all associated data deleted successfully", id),
	})
}

func judgeID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, schemas.NewValidation(fmt.Sprintf("invalid judge id %q", raw))
	}
	return id, nil
}

func (s *Server) createJudge(w http.ResponseWriter, r *http.Request) {
	var req schemas.JudgeCreate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	j, err := s.Store.CreateJudge(r.Context(), req.Judge())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) listJudges(w http.ResponseWriter, r *http.Request) {
	judges, err := s.Store.ListJudges(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(judges))
}

func (s *Server) getJudge(w http.ResponseWriter, r *http.Request) {
	id, err := judgeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	j, err := s.Store.GetJudge(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) updateJudge(w http.ResponseWriter, r *http.Request) {
	id, err := judgeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req schemas.JudgeUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	j, err := s.Store.UpdateJudge(r.Context(), id, db.JudgePatch{
		Name:         req.Name,
		SystemPrompt: req.SystemPrompt,
		ModelName:    req.ModelName,
		Active:       req.Active,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) deleteJudge(w http.ResponseWriter, r *http.Request) {
	id, err := judgeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Store.DeleteJudge(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schemas.MessageResponse{Message: "Judge deleted successfully"})
}

func (s *Server) assignJudges(w http.ResponseWriter, r *http.Request) {
	var req schemas.AssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Store.AssignJudges(r.Context(), req.QueueID, req.TemplateID, req.JudgeIDs); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schemas.MessageResponse{Message: "Judges assigned successfully"})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
