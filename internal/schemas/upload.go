package schemas

import (
	"encoding/json"
	"fmt"
	"slices"

	"ai-judge/internal/evaluation"
)

// UploadSubmission is one element of the uploaded submissions file.
type UploadSubmission struct {
	ID             string                  `json:"id"`
	QueueID        string                  `json:"queueId"`
	LabelingTaskID string                  `json:"labelingTaskId"`
	CreatedAt      int64                   `json:"createdAt"`
	Questions      []UploadQuestion        `json:"questions"`
	Answers        map[string]UploadAnswer `json:"answers"`

	raw json.RawMessage
}

type UploadQuestion struct {
	Rev  int                `json:"rev"`
	Data UploadQuestionData `json:"data"`
}

type UploadQuestionData struct {
	ID           string  `json:"id"`
	QuestionType string  `json:"questionType"`
	QuestionText string  `json:"questionText"`
	Content      *string `json:"content,omitempty"`
}

type UploadAnswer struct {
	Choice    string  `json:"choice"`
	Reasoning *string `json:"reasoning,omitempty"`
}

// ParseUpload decodes a submissions file: a JSON array of submissions.
func ParseUpload(b []byte) ([]UploadSubmission, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, NewValidationWrap("expected a JSON array of submissions", err)
	}
	if items == nil {
		return nil, NewValidation("expected a JSON array of submissions")
	}
	out := make([]UploadSubmission, 0, len(items))
	for i, item := range items {
		var s UploadSubmission
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, NewValidationWrap(fmt.Sprintf("submission %d", i), err)
		}
		if err := s.Validate(); err != nil {
			return nil, NewValidationWrap(fmt.Sprintf("submission %d", i), err)
		}
		s.raw = item
		out = append(out, s)
	}
	return out, nil
}

func (s UploadSubmission) Validate() error {
	switch {
	case s.ID == "":
		return NewValidation("id is required")
	case s.QueueID == "":
		return NewValidation("queueId is required")
	case s.LabelingTaskID == "":
		return NewValidation("labelingTaskId is required")
	}
	for i, q := range s.Questions {
		if q.Data.ID == "" {
			return NewValidation(fmt.Sprintf("questions[%d].data.id is required", i))
		}
		if q.Data.QuestionText == "" {
			return NewValidation(fmt.Sprintf("questions[%d].data.questionText is required", i))
		}
	}
	return nil
}

// Raw is the element exactly as uploaded.
func (s UploadSubmission) Raw() []byte {
	return s.raw
}

// Domain splits the upload into the records the store keeps. Answers come
// out ordered by template id.
func (s UploadSubmission) Domain() (evaluation.Submission, []evaluation.Question, []evaluation.Answer) {
	sub := evaluation.Submission{
		ID:             s.ID,
		QueueID:        s.QueueID,
		LabelingTaskID: s.LabelingTaskID,
		CreatedAt:      s.CreatedAt,
	}

	questions := make([]evaluation.Question, 0, len(s.Questions))
	for _, q := range s.Questions {
		questions = append(questions, evaluation.Question{
			SubmissionID: s.ID,
			TemplateID:   q.Data.ID,
			Type:         q.Data.QuestionType,
			Text:         q.Data.QuestionText,
			Content:      deref(q.Data.Content),
			Rev:          q.Rev,
		})
	}

	ids := make([]string, 0, len(s.Answers))
	for id := range s.Answers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	answers := make([]evaluation.Answer, 0, len(ids))
	for _, id := range ids {
		a := s.Answers[id]
		answers = append(answers, evaluation.Answer{
			SubmissionID: s.ID,
			TemplateID:   id,
			Choice:       a.Choice,
			Reasoning:    deref(a.Reasoning),
		})
	}
	return sub, questions, answers
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
