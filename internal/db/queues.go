package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"ai-judge/internal/evaluation"
)

// UploadSubmissions stores uploads in one transaction. Re-uploading a
// submission id replaces its questions and answers and keeps its
// evaluations.
func (s *Store) UploadSubmissions(ctx context.Context, uploads []SubmissionUpload) (int, error) {
	err := WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, u := range uploads {
			if err := upsertSubmission(ctx, tx, u); err != nil {
				return fmt.Errorf("submission %s: %w", u.Submission.ID, translate(err))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(uploads), nil
}

func upsertSubmission(ctx context.Context, tx *sqlx.Tx, u SubmissionUpload) error {
	sub := u.Submission
	raw := u.Raw
	if len(raw) == 0 {
		raw = []byte(`{}`)
	}
	_, err := tx.ExecContext(ctx, `
		insert into submissions(id, queue_id, labeling_task_id, created_at, raw_data)
		values($1,$2,$3,$4,$5)
		on conflict (id) do update set
		  queue_id = excluded.queue_id,
		  labeling_task_id = excluded.labeling_task_id,
		  created_at = excluded.created_at,
		  raw_data = excluded.raw_data,
		  uploaded_at = now()`,
		sub.ID, sub.QueueID, sub.LabelingTaskID, sub.CreatedAt, raw)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `delete from questions where submission_id=$1`, sub.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from answers where submission_id=$1`, sub.ID); err != nil {
		return err
	}

	for _, q := range u.Questions {
		_, err := tx.ExecContext(ctx, `
			insert into questions(submission_id, question_template_id, question_type, question_text, content, rev)
			values($1,$2,$3,$4,$5,$6)`,
			sub.ID, q.TemplateID, q.Type, q.Text, nullString(q.Content), q.Rev)
		if err != nil {
			return err
		}
	}
	for _, a := range u.Answers {
		_, err := tx.ExecContext(ctx, `
			insert into answers(submission_id, question_template_id, choice, reasoning)
			values($1,$2,$3,$4)`,
			sub.ID, a.TemplateID, a.Choice, nullString(a.Reasoning))
		if err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) ListQueues(ctx context.Context) ([]QueueSummary, error) {
	out := []QueueSummary{}
	err := s.db.SelectContext(ctx, &out, `
		select queue_id, count(*) as submission_count, min(created_at) as uploaded_at
		  from submissions
		 group by queue_id
		 order by uploaded_at desc`)
	return out, err
}

func (s *Store) QueueSubmissions(ctx context.Context, queueID string) ([]QueueSubmission, error) {
	out := []QueueSubmission{}
	err := s.db.SelectContext(ctx, &out, `
		select s.id, s.labeling_task_id, s.created_at,
		       (select count(*) from questions q where q.submission_id = s.id) as question_count,
		       (select count(*) from evaluations e where e.submission_id = s.id) as evaluation_count
		  from submissions s
		 where s.queue_id=$1
		 order by s.created_at desc, s.id`, queueID)
	return out, err
}

type templateRow struct {
	TemplateID string `db:"question_template_id"`
	Text       string `db:"question_text"`
	Type       string `db:"question_type"`
	Content    string `db:"content"`
}

type assignmentRow struct {
	TemplateID string `db:"question_template_id"`
	JudgeID    int64  `db:"judge_id"`
}

// QueueQuestions lists the distinct question templates of a queue.
func (s *Store) QueueQuestions(ctx context.Context, queueID string) ([]QueueQuestion, error) {
	var templates []templateRow
	err := s.db.SelectContext(ctx, &templates, `
		select distinct on (q.question_template_id)
		       q.question_template_id, q.question_text, q.question_type, coalesce(q.content, '') as content
		  from questions q
		  join submissions s on s.id = q.submission_id
		 where s.queue_id=$1
		 order by q.question_template_id, q.id`, queueID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	var assigned []assignmentRow
	err = s.db.SelectContext(ctx, &assigned, `
		select question_template_id, judge_id from judge_assignments
		 where queue_id=$1 order by judge_id`, queueID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	judges := make(map[string][]int64)
	for _, a := range assigned {
		judges[a.TemplateID] = append(judges[a.TemplateID], a.JudgeID)
	}

	var samples []answerRow
	err = s.db.SelectContext(ctx, &samples, `
		select distinct on (a.question_template_id)
		       a.submission_id, a.question_template_id, a.choice, a.reasoning
		  from answers a
		  join submissions s on s.id = a.submission_id
		 where s.queue_id=$1
		 order by a.question_template_id, a.id`, queueID)
	if err != nil {
		return nil, fmt.Errorf("list sample answers: %w", err)
	}
	answers := make(map[string]evaluation.Answer, len(samples))
	for _, r := range samples {
		answers[r.TemplateID] = r.domain()
	}

	out := make([]QueueQuestion, 0, len(templates))
	for _, t := range templates {
		q := QueueQuestion{
			TemplateID:       t.TemplateID,
			Text:             t.Text,
			Type:             t.Type,
			Content:          t.Content,
			AssignedJudgeIDs: judges[t.TemplateID],
		}
		if q.AssignedJudgeIDs == nil {
			q.AssignedJudgeIDs = []int64{}
		}
		if a, ok := answers[t.TemplateID]; ok {
			q.Answer = &a
		}
		out = append(out, q)
	}
	return out, nil
}

// DeleteQueue removes a queue's submissions with everything hanging off
// them, and its assignments.
func (s *Store) DeleteQueue(ctx context.Context, queueID string) error {
	return WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `delete from submissions where queue_id=$1`, queueID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("queue %s: %w", queueID, ErrNotFound)
		}
		_, err = tx.ExecContext(ctx, `delete from judge_assignments where queue_id=$1`, queueID)
		return err
	})
}

// AssignJudges replaces the judge set of (queueID, templateID).
func (s *Store) AssignJudges(ctx context.Context, queueID, templateID string, judgeIDs []int64) error {
	return WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`delete from judge_assignments where queue_id=$1 and question_template_id=$2`, queueID, templateID)
		if err != nil {
			return err
		}
		for _, id := range judgeIDs {
			_, err := tx.ExecContext(ctx, `
				insert into judge_assignments(queue_id, question_template_id, judge_id)
				values($1,$2,$3) on conflict do nothing`, queueID, templateID, id)
			if err != nil {
				return fmt.Errorf("assign judge %d: %w", id, translate(err))
			}
		}
		return nil
	})
}
