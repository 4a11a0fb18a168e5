package schemas

import (
	"fmt"
	"strings"
	"time"

	"ai-judge/internal/evaluation"
)

type JudgeCreate struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	ModelName    string `json:"model_name"`
	Active       *bool  `json:"active,omitempty"`
}

func (r JudgeCreate) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewValidation("name is required")
	}
	if strings.TrimSpace(r.ModelName) == "" {
		return NewValidation("model_name is required")
	}
	return nil
}

// Judge converts the request into a judge, active unless told otherwise.
func (r JudgeCreate) Judge() evaluation.Judge {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return evaluation.Judge{
		Name:         strings.TrimSpace(r.Name),
		SystemPrompt: r.SystemPrompt,
		ModelName:    strings.TrimSpace(r.ModelName),
		Active:       active,
	}
}

type JudgeUpdate struct {
	Name         *string `json:"name,omitempty"`
	SystemPrompt *string `json:"system_prompt,omitempty"`
	ModelName    *string `json:"model_name,omitempty"`
	Active       *bool   `json:"active,omitempty"`
}

func (r JudgeUpdate) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return NewValidation("name must not be empty")
	}
	if r.ModelName != nil && strings.TrimSpace(*r.ModelName) == "" {
		return NewValidation("model_name must not be empty")
	}
	return nil
}

type AssignmentRequest struct {
	QueueID    string  `json:"queue_id"`
	TemplateID string  `json:"question_template_id"`
	JudgeIDs   []int64 `json:"judge_ids"`
}

func (r AssignmentRequest) Validate() error {
	if r.QueueID == "" {
		return NewValidation("queue_id is required")
	}
	if r.TemplateID == "" {
		return NewValidation("question_template_id is required")
	}
	for _, id := range r.JudgeIDs {
		if id <= 0 {
			return NewValidation(fmt.Sprintf("invalid judge id %d", id))
		}
	}
	return nil
}

type RunRequest struct {
	QueueID string `json:"queue_id"`
}

func (r RunRequest) Validate() error {
	if strings.TrimSpace(r.QueueID) == "" {
		return NewValidation("queue_id is required")
	}
	return nil
}

type EnqueueResponse struct {
	RunID   string `json:"run_id"`
	QueueID string `json:"queue_id"`
	TaskID  string `json:"task_id"`
}

// RunReport is what the worker archives for a background run.
type RunReport struct {
	RunID      string                 `json:"run_id"`
	QueueID    string                 `json:"queue_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Summary    *evaluation.RunSummary `json:"summary,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

type ModelsResponse struct {
	Models []string `json:"models"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
