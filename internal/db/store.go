package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"ai-judge/internal/evaluation"
	"ai-judge/internal/verdict"
)

// EvaluationListLimit bounds QueryEvaluations.
const EvaluationListLimit = 1000

// Store implements the evaluation store interfaces and the CRUD surface of
// the API on one *sqlx.DB. Every call borrows a pooled connection for a
// single statement or transaction.
type Store struct {
	db *sqlx.DB
}

var (
	_ evaluation.SubmissionStore = (*Store)(nil)
	_ evaluation.JudgeStore      = (*Store)(nil)
	_ evaluation.EvaluationStore = (*Store)(nil)
)

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ListSubmissions(ctx context.Context, queueID string) ([]evaluation.Submission, error) {
	var rows []submissionRow
	err := s.db.SelectContext(ctx, &rows,
		`select id, queue_id, labeling_task_id, created_at from submissions where queue_id=$1 order by created_at, id`, queueID)
	if err != nil {
		return nil, err
	}
	out := make([]evaluation.Submission, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func (s *Store) ListQuestions(ctx context.Context, submissionID string) ([]evaluation.Question, error) {
	var rows []questionRow
	err := s.db.SelectContext(ctx, &rows,
		`select submission_id, question_template_id, question_type, question_text, content, rev
		   from questions where submission_id=$1 order by id`, submissionID)
	if err != nil {
		return nil, err
	}
	out := make([]evaluation.Question, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

func (s *Store) GetAnswer(ctx context.Context, submissionID, templateID string) (*evaluation.Answer, error) {
	var r answerRow
	err := s.db.GetContext(ctx, &r,
		`select submission_id, question_template_id, choice, reasoning
		   from answers where submission_id=$1 and question_template_id=$2`, submissionID, templateID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a := r.domain()
	return &a, nil
}

func (s *Store) AssignedActiveJudges(ctx context.Context, queueID, templateID string) ([]evaluation.Judge, error) {
	var rows []judgeRow
	err := s.db.SelectContext(ctx, &rows,
		`select j.id, j.name, j.system_prompt, j.model_name, j.active, j.created_at
		   from judges j
		   join judge_assignments ja on ja.judge_id = j.id
		  where ja.queue_id=$1 and ja.question_template_id=$2 and j.active
		  order by j.id`, queueID, templateID)
	if err != nil {
		return nil, err
	}
	out := make([]evaluation.Judge, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.domain())
	}
	return out, nil
}

// AppendEvaluation inserts e in its own autocommitted statement and sets
// e.ID.
func (s *Store) AppendEvaluation(ctx context.Context, e *evaluation.Evaluation) error {
	err := s.db.QueryRowxContext(ctx,
		`insert into evaluations(submission_id, question_template_id, judge_id, verdict, reasoning, confidence_score, created_at)
		 values($1,$2,$3,$4,$5,$6,$7) returning id`,
		e.SubmissionID, e.TemplateID, e.JudgeID, e.Verdict, e.Reasoning, e.Confidence, e.CreatedAt).Scan(&e.ID)
	return translate(err)
}

// filterWhere renders f as a where clause over the evaluations table
// aliased as alias. Placeholders are sqlx.In style and need a Rebind.
func filterWhere(f evaluation.Filter, alias string) (string, []any) {
	var conds []string
	var args []any
	if len(f.JudgeIDs) > 0 {
		conds = append(conds, alias+".judge_id in (?)")
		args = append(args, f.JudgeIDs)
	}
	if len(f.QuestionIDs) > 0 {
		conds = append(conds, alias+".question_template_id in (?)")
		args = append(args, f.QuestionIDs)
	}
	if f.Verdict != nil {
		conds = append(conds, alias+".verdict = ?")
		args = append(args, f.Verdict.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), args
}

func (s *Store) bind(query string, args []any) (string, []any, error) {
	if len(args) == 0 {
		return s.db.Rebind(query), nil, nil
	}
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("expand filter: %w", err)
	}
	return s.db.Rebind(q), a, nil
}

// QueryEvaluations returns matching evaluations joined with the judge name
// and what was graded, newest first.
func (s *Store) QueryEvaluations(ctx context.Context, f evaluation.Filter) ([]evaluation.EvaluationView, error) {
	where, args := filterWhere(f, "e")
	q, args, err := s.bind(`
		select e.id, e.submission_id, e.question_template_id, e.judge_id, j.name as judge_name,
		       e.verdict, e.reasoning, e.confidence_score, e.created_at,
		       q.question_text, a.choice as answer_choice, a.reasoning as answer_reasoning
		  from evaluations e
		  join judges j on j.id = e.judge_id
		  left join lateral (
		        select question_text from questions
		         where submission_id = e.submission_id and question_template_id = e.question_template_id
		         order by id limit 1) q on true
		  left join answers a on a.submission_id = e.submission_id and a.question_template_id = e.question_template_id`+
		where+fmt.Sprintf(` order by e.created_at desc, e.id desc limit %d`, EvaluationListLimit), args)
	if err != nil {
		return nil, err
	}

	var rows []evaluationRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]evaluation.EvaluationView, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.view())
	}
	return out, nil
}

func (s *Store) AggregateEvaluations(ctx context.Context, f evaluation.Filter) (evaluation.VerdictCounts, error) {
	var c evaluation.VerdictCounts
	where, args := filterWhere(f, "e")
	q, args, err := s.bind(`
		select e.verdict, count(*) as count, coalesce(sum(e.confidence_score), 0) as confidence_sum
		  from evaluations e`+where+` group by e.verdict`, args)
	if err != nil {
		return c, err
	}

	var rows []verdictCountRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return c, err
	}
	for _, r := range rows {
		switch r.Verdict {
		case verdict.Pass:
			c.Pass += r.Count
		case verdict.Fail:
			c.Fail += r.Count
		default:
			c.Inconclusive += r.Count
		}
		c.ConfidenceSum += r.ConfidenceSum
	}
	return c, nil
}

func (s *Store) AggregateByQueue(ctx context.Context) ([]evaluation.QueueJudgeCount, error) {
	var rows []evaluation.QueueJudgeCount
	err := s.db.SelectContext(ctx, &rows, `
		select s.queue_id, e.judge_id, j.name as judge_name, e.verdict, count(*) as count
		  from evaluations e
		  join judges j on j.id = e.judge_id
		  join submissions s on s.id = e.submission_id
		 group by s.queue_id, e.judge_id, j.name, e.verdict
		 order by s.queue_id, e.judge_id, e.verdict`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
