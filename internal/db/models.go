package db

import (
	"database/sql"
	"time"

	"ai-judge/internal/evaluation"
	"ai-judge/internal/verdict"
)

type submissionRow struct {
	ID             string `db:"id"`
	QueueID        string `db:"queue_id"`
	LabelingTaskID string `db:"labeling_task_id"`
	CreatedAt      int64  `db:"created_at"`
}

func (r submissionRow) domain() evaluation.Submission {
	return evaluation.Submission{
		ID:             r.ID,
		QueueID:        r.QueueID,
		LabelingTaskID: r.LabelingTaskID,
		CreatedAt:      r.CreatedAt,
	}
}

type questionRow struct {
	SubmissionID string         `db:"submission_id"`
	TemplateID   string         `db:"question_template_id"`
	Type         string         `db:"question_type"`
	Text         string         `db:"question_text"`
	Content      sql.NullString `db:"content"`
	Rev          int            `db:"rev"`
}

func (r questionRow) domain() evaluation.Question {
	return evaluation.Question{
		SubmissionID: r.SubmissionID,
		TemplateID:   r.TemplateID,
		Type:         r.Type,
		Text:         r.Text,
		Content:      r.Content.String,
		Rev:          r.Rev,
	}
}

type answerRow struct {
	SubmissionID string         `db:"submission_id"`
	TemplateID   string         `db:"question_template_id"`
	Choice       string         `db:"choice"`
	Reasoning    sql.NullString `db:"reasoning"`
}

func (r answerRow) domain() evaluation.Answer {
	return evaluation.Answer{
		SubmissionID: r.SubmissionID,
		TemplateID:   r.TemplateID,
		Choice:       r.Choice,
		Reasoning:    r.Reasoning.String,
	}
}

type judgeRow struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	SystemPrompt string    `db:"system_prompt"`
	ModelName    string    `db:"model_name"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r judgeRow) domain() evaluation.Judge {
	return evaluation.Judge{
		ID:           r.ID,
		Name:         r.Name,
		SystemPrompt: r.SystemPrompt,
		ModelName:    r.ModelName,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type evaluationRow struct {
	ID              int64           `db:"id"`
	SubmissionID    string          `db:"submission_id"`
	TemplateID      string          `db:"question_template_id"`
	JudgeID         int64           `db:"judge_id"`
	JudgeName       string          `db:"judge_name"`
	Verdict         verdict.Verdict `db:"verdict"`
	Reasoning       string          `db:"reasoning"`
	Confidence      int             `db:"confidence_score"`
	CreatedAt       time.Time       `db:"created_at"`
	QuestionText    sql.NullString  `db:"question_text"`
	AnswerChoice    sql.NullString  `db:"answer_choice"`
	AnswerReasoning sql.NullString  `db:"answer_reasoning"`
}

func (r evaluationRow) view() evaluation.EvaluationView {
	return evaluation.EvaluationView{
		Evaluation: evaluation.Evaluation{
			ID:           r.ID,
			SubmissionID: r.SubmissionID,
			TemplateID:   r.TemplateID,
			JudgeID:      r.JudgeID,
			Verdict:      r.Verdict,
			Reasoning:    r.Reasoning,
			Confidence:   r.Confidence,
			CreatedAt:    r.CreatedAt.UTC(),
		},
		JudgeName:       r.JudgeName,
		QuestionText:    r.QuestionText.String,
		AnswerChoice:    r.AnswerChoice.String,
		AnswerReasoning: r.AnswerReasoning.String,
	}
}

type verdictCountRow struct {
	Verdict       verdict.Verdict `db:"verdict"`
	Count         int             `db:"count"`
	ConfidenceSum int64           `db:"confidence_sum"`
}

// QueueSummary is one row of the queue listing.
type QueueSummary struct {
	QueueID         string `db:"queue_id" json:"queue_id"`
	SubmissionCount int    `db:"submission_count" json:"submission_count"`
	UploadedAt      int64  `db:"uploaded_at" json:"uploaded_at"`
}

type QueueSubmission struct {
	ID              string `db:"id" json:"id"`
	LabelingTaskID  string `db:"labeling_task_id" json:"labeling_task_id"`
	CreatedAt       int64  `db:"created_at" json:"created_at"`
	QuestionCount   int    `db:"question_count" json:"question_count"`
	EvaluationCount int    `db:"evaluation_count" json:"evaluation_count"`
}

// QueueQuestion is a distinct question template in a queue together with
// the judges assigned to it and one sample answer.
type QueueQuestion struct {
	TemplateID       string             `json:"question_template_id"`
	Text             string             `json:"question_text"`
	Type             string             `json:"question_type"`
	Content          string             `json:"content,omitempty"`
	AssignedJudgeIDs []int64            `json:"assigned_judge_ids"`
	Answer           *evaluation.Answer `json:"answer"`
}

// SubmissionUpload is everything stored for one uploaded submission.
type SubmissionUpload struct {
	Submission evaluation.Submission
	Questions  []evaluation.Question
	Answers    []evaluation.Answer
	Raw        []byte
}

// JudgePatch updates the non-nil fields of a judge.
type JudgePatch struct {
	Name         *string
	SystemPrompt *string
	ModelName    *string
	Active       *bool
}

func (p JudgePatch) empty() bool {
	return p.Name == nil && p.SystemPrompt == nil && p.ModelName == nil && p.Active == nil
}
