package evaluation

import (
	"context"
	"time"

	"ai-judge/internal/verdict"
)

type Submission struct {
	ID             string `json:"id"`
	QueueID        string `json:"queue_id"`
	LabelingTaskID string `json:"labeling_task_id"`
	CreatedAt      int64  `json:"created_at"`
}

// Question is one question template as it appears in a single submission.
// Content is the optional grounding material and may differ between
// submissions that share a TemplateID.
type Question struct {
	SubmissionID string `json:"submission_id"`
	TemplateID   string `json:"question_template_id"`
	Type         string `json:"question_type"`
	Text         string `json:"question_text"`
	Content      string `json:"content,omitempty"`
	Rev          int    `json:"rev"`
}

type Answer struct {
	SubmissionID string `json:"submission_id"`
	TemplateID   string `json:"question_template_id"`
	Choice       string `json:"choice"`
	Reasoning    string `json:"reasoning,omitempty"`
}

type Judge struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	SystemPrompt string    `json:"system_prompt"`
	ModelName    string    `json:"model_name"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Evaluation struct {
	ID           int64           `json:"id"`
	SubmissionID string          `json:"submission_id"`
	TemplateID   string          `json:"question_template_id"`
	JudgeID      int64           `json:"judge_id"`
	Verdict      verdict.Verdict `json:"verdict"`
	Reasoning    string          `json:"reasoning"`
	Confidence   int             `json:"confidence_score"`
	CreatedAt    time.Time       `json:"created_at"`
}

// EvaluationView is an evaluation joined with what it graded.
type EvaluationView struct {
	Evaluation
	JudgeName       string `json:"judge_name"`
	QuestionText    string `json:"question_text,omitempty"`
	AnswerChoice    string `json:"answer_choice,omitempty"`
	AnswerReasoning string `json:"answer_reasoning,omitempty"`
}

// Filter restricts evaluation queries. Every set field must match; nil or
// empty fields do not restrict.
type Filter struct {
	JudgeIDs    []int64
	QuestionIDs []string
	Verdict     *verdict.Verdict
}

// VerdictCounts is the raw aggregate a store returns for a filter.
type VerdictCounts struct {
	Pass          int
	Fail          int
	Inconclusive  int
	ConfidenceSum int64
}

func (c VerdictCounts) Total() int {
	return c.Pass + c.Fail + c.Inconclusive
}

// QueueJudgeCount is one (queue, judge, verdict) group.
type QueueJudgeCount struct {
	QueueID   string          `db:"queue_id"`
	JudgeID   int64           `db:"judge_id"`
	JudgeName string          `db:"judge_name"`
	Verdict   verdict.Verdict `db:"verdict"`
	Count     int             `db:"count"`
}

type SubmissionStore interface {
	ListSubmissions(ctx context.Context, queueID string) ([]Submission, error)
	ListQuestions(ctx context.Context, submissionID string) ([]Question, error)
	// GetAnswer returns nil, nil when the submission has no answer for the template.
	GetAnswer(ctx context.Context, submissionID, templateID string) (*Answer, error)
}

type JudgeStore interface {
	// AssignedActiveJudges returns judges assigned to (queueID, templateID)
	// that are active right now.
	AssignedActiveJudges(ctx context.Context, queueID, templateID string) ([]Judge, error)
}

// EvaluationStore is append-only from the core's point of view.
type EvaluationStore interface {
	AppendEvaluation(ctx context.Context, e *Evaluation) error
	QueryEvaluations(ctx context.Context, f Filter) ([]EvaluationView, error)
	AggregateEvaluations(ctx context.Context, f Filter) (VerdictCounts, error)
	AggregateByQueue(ctx context.Context) ([]QueueJudgeCount, error)
}

// Invoker is the judge model backend.
type Invoker interface {
	Generate(ctx context.Context, model, prompt, system string) (string, error)
}
