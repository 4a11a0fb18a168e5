// Package evaluation runs judges over a queue of submissions and aggregates
// their verdicts.
package evaluation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"ai-judge/internal/prompt"
	"ai-judge/internal/verdict"
)

const (
	// MaxRunErrors caps the messages returned in a RunSummary. Counts are
	// never capped.
	MaxRunErrors = 10

	DefaultConcurrency = 4
)

type RunSummary struct {
	Planned   int      `json:"planned"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

type Orchestrator struct {
	submissions SubmissionStore
	judges      JudgeStore
	evaluations EvaluationStore
	invoker     Invoker

	concurrency int
	runTimeout  time.Duration
	now         func() time.Time
}

type Option func(*Orchestrator)

// WithConcurrency sets how many judge calls may be in flight at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithRunTimeout stops dispatching new work once d has elapsed. Work already
// dispatched is allowed to finish.
func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.runTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func NewOrchestrator(subs SubmissionStore, judges JudgeStore, evals EvaluationStore, inv Invoker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		submissions: subs,
		judges:      judges,
		evaluations: evals,
		invoker:     inv,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type workItem struct {
	submission Submission
	question   Question
	answer     Answer
	judge      Judge
}

// Run grades every answered question in the queue with each of its assigned
// active judges. Per-item failures are counted in the summary and never stop
// the run; the only error returned is failing to list the queue itself.
func (o *Orchestrator) Run(ctx context.Context, queueID string) (*RunSummary, error) {
	log := clog.FromContext(ctx).With("queue_id", queueID)
	runCounter.Inc()

	subs, err := o.submissions.ListSubmissions(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("list submissions for queue %s: %w", queueID, err)
	}
	log.Infof("starting evaluation run over %d submissions (concurrency=%d)", len(subs), o.concurrency)

	dispatchCtx := ctx
	if o.runTimeout > 0 {
		var cancel context.CancelFunc
		dispatchCtx, cancel = context.WithTimeout(ctx, o.runTimeout)
		defer cancel()
	}
	// In-flight items outlive cancellation of the dispatch loop.
	workCtx := context.WithoutCancel(ctx)

	t := &tally{}
	var g errgroup.Group
	g.SetLimit(o.concurrency)

	o.enumerate(dispatchCtx, queueID, subs, t, func(item workItem) {
		t.plan()
		g.Go(func() error {
			if err := o.evaluate(workCtx, item); err != nil {
				log.With("judge", item.judge.Name, "submission_id", item.submission.ID, "question_template_id", item.question.TemplateID).
					Warnf("evaluation failed: %v", err)
				t.fail(fmt.Sprintf("judge %q (submission %s, question %s): %v",
					item.judge.Name, item.submission.ID, item.question.TemplateID, err))
				return nil
			}
			t.complete()
			return nil
		})
	})
	_ = g.Wait()

	summary := t.snapshot()
	if err := dispatchCtx.Err(); err != nil {
		log.Warnf("dispatch stopped early: %v", err)
	}
	log.Infof("evaluation run finished: planned=%d completed=%d failed=%d",
		summary.Planned, summary.Completed, summary.Failed)
	return summary, nil
}

// enumerate walks submissions, questions and judges and hands every eligible
// triple to dispatch until ctx is done.
func (o *Orchestrator) enumerate(ctx context.Context, queueID string, subs []Submission, t *tally, dispatch func(workItem)) {
	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		questions, err := o.submissions.ListQuestions(ctx, sub.ID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.note(fmt.Sprintf("submission %s: list questions: %v", sub.ID, err))
			continue
		}

		for _, q := range questions {
			if ctx.Err() != nil {
				return
			}
			answer, err := o.submissions.GetAnswer(ctx, sub.ID, q.TemplateID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				t.note(fmt.Sprintf("submission %s question %s: load answer: %v", sub.ID, q.TemplateID, err))
				continue
			}
			if answer == nil {
				continue
			}

			judges, err := o.judges.AssignedActiveJudges(ctx, queueID, q.TemplateID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				t.note(fmt.Sprintf("submission %s question %s: load judges: %v", sub.ID, q.TemplateID, err))
				continue
			}

			for _, j := range judges {
				if ctx.Err() != nil {
					return
				}
				dispatch(workItem{submission: sub, question: q, answer: *answer, judge: j})
			}
		}
	}
}

func (o *Orchestrator) evaluate(ctx context.Context, item workItem) error {
	model := item.judge.ModelName
	p := prompt.Build(prompt.Input{
		QuestionText:     item.question.Text,
		GroundingContent: item.question.Content,
		AnswerChoice:     item.answer.Choice,
		AnswerReasoning:  item.answer.Reasoning,
	})

	start := time.Now()
	raw, err := o.invoker.Generate(ctx, model, p, item.judge.SystemPrompt)
	invocationLatency.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		invocationCounter.WithLabelValues(model, outcomeInvokeFailed).Inc()
		return err
	}

	res := verdict.Parse(raw)
	ev := &Evaluation{
		SubmissionID: item.submission.ID,
		TemplateID:   item.question.TemplateID,
		JudgeID:      item.judge.ID,
		Verdict:      res.Verdict,
		Reasoning:    res.Reasoning,
		Confidence:   res.Confidence,
		CreatedAt:    o.now().UTC(),
	}
	if err := o.evaluations.AppendEvaluation(ctx, ev); err != nil {
		invocationCounter.WithLabelValues(model, outcomePersistFailed).Inc()
		return fmt.Errorf("persist evaluation: %w", err)
	}

	invocationCounter.WithLabelValues(model, outcomeCompleted).Inc()
	verdictCounter.WithLabelValues(res.Verdict.String()).Inc()
	return nil
}

// tally is shared by all workers of one run.
type tally struct {
	mu sync.Mutex
	s  RunSummary
}

func (t *tally) plan() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Planned++
}

func (t *tally) complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Completed++
}

func (t *tally) fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Failed++
	t.appendError(msg)
}

// note records a message without touching the counters.
func (t *tally) note(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendError(msg)
}

func (t *tally) appendError(msg string) {
	if len(t.s.Errors) < MaxRunErrors {
		t.s.Errors = append(t.s.Errors, msg)
	}
}

func (t *tally) snapshot() *RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.s
	out.Errors = append([]string{}, t.s.Errors...)
	return &out
}
