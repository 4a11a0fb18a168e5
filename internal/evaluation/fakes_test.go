package evaluation

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"ai-judge/internal/verdict"
)

type answerKey struct {
	submissionID string
	templateID   string
}

type assignmentKey struct {
	queueID    string
	templateID string
}

// memStore is an in-memory stand-in for db.Store.
type memStore struct {
	mu          sync.Mutex
	submissions []Submission
	questions   map[string][]Question
	answers     map[answerKey]Answer
	judges      map[int64]Judge
	assignments map[assignmentKey][]int64
	evaluations []Evaluation
	nextID      int64

	listErr      error
	questionErrs map[string]error
	appendErr    func(*Evaluation) error
}

func newMemStore() *memStore {
	return &memStore{
		questions:    map[string][]Question{},
		answers:      map[answerKey]Answer{},
		judges:       map[int64]Judge{},
		assignments:  map[assignmentKey][]int64{},
		questionErrs: map[string]error{},
	}
}

func (m *memStore) addSubmission(s Submission, qs []Question, answers ...Answer) {
	m.submissions = append(m.submissions, s)
	for _, q := range qs {
		q.SubmissionID = s.ID
		m.questions[s.ID] = append(m.questions[s.ID], q)
	}
	for _, a := range answers {
		a.SubmissionID = s.ID
		m.answers[answerKey{s.ID, a.TemplateID}] = a
	}
}

func (m *memStore) addJudge(j Judge) Judge {
	m.judges[j.ID] = j
	return j
}

func (m *memStore) assign(queueID, templateID string, judgeIDs ...int64) {
	m.assignments[assignmentKey{queueID, templateID}] = judgeIDs
}

func (m *memStore) ListSubmissions(_ context.Context, queueID string) ([]Submission, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Submission
	for _, s := range m.submissions {
		if s.QueueID == queueID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ListQuestions(_ context.Context, submissionID string) ([]Question, error) {
	if err := m.questionErrs[submissionID]; err != nil {
		return nil, err
	}
	return m.questions[submissionID], nil
}

func (m *memStore) GetAnswer(_ context.Context, submissionID, templateID string) (*Answer, error) {
	a, ok := m.answers[answerKey{submissionID, templateID}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memStore) AssignedActiveJudges(_ context.Context, queueID, templateID string) ([]Judge, error) {
	var out []Judge
	for _, id := range m.assignments[assignmentKey{queueID, templateID}] {
		if j, ok := m.judges[id]; ok && j.Active {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memStore) AppendEvaluation(_ context.Context, e *Evaluation) error {
	if m.appendErr != nil {
		if err := m.appendErr(e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	m.evaluations = append(m.evaluations, *e)
	return nil
}

func (m *memStore) matching(f Filter) []Evaluation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Evaluation
	for _, e := range m.evaluations {
		if len(f.JudgeIDs) > 0 && !slices.Contains(f.JudgeIDs, e.JudgeID) {
			continue
		}
		if len(f.QuestionIDs) > 0 && !slices.Contains(f.QuestionIDs, e.TemplateID) {
			continue
		}
		if f.Verdict != nil && *f.Verdict != e.Verdict {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (m *memStore) QueryEvaluations(_ context.Context, f Filter) ([]EvaluationView, error) {
	var out []EvaluationView
	for _, e := range m.matching(f) {
		out = append(out, EvaluationView{Evaluation: e, JudgeName: m.judges[e.JudgeID].Name})
	}
	return out, nil
}

func (m *memStore) AggregateEvaluations(_ context.Context, f Filter) (VerdictCounts, error) {
	var c VerdictCounts
	for _, e := range m.matching(f) {
		switch e.Verdict {
		case verdict.Pass:
			c.Pass++
		case verdict.Fail:
			c.Fail++
		default:
			c.Inconclusive++
		}
		c.ConfidenceSum += int64(e.Confidence)
	}
	return c, nil
}

func (m *memStore) AggregateByQueue(_ context.Context) ([]QueueJudgeCount, error) {
	queueOf := map[string]string{}
	for _, s := range m.submissions {
		queueOf[s.ID] = s.QueueID
	}
	type key struct {
		queue   string
		judge   int64
		verdict verdict.Verdict
	}
	counts := map[key]int{}
	var order []key
	for _, e := range m.matching(Filter{}) {
		k := key{queueOf[e.SubmissionID], e.JudgeID, e.Verdict}
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}
	var out []QueueJudgeCount
	for _, k := range order {
		out = append(out, QueueJudgeCount{
			QueueID:   k.queue,
			JudgeID:   k.judge,
			JudgeName: m.judges[k.judge].Name,
			Verdict:   k.verdict,
			Count:     counts[k],
		})
	}
	return out, nil
}

type invocation struct {
	model  string
	prompt string
	system string
}

// fakeInvoker replies through respond and records every call.
type fakeInvoker struct {
	mu      sync.Mutex
	calls   []invocation
	respond func(ctx context.Context, model, prompt string) (string, error)

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	delay       time.Duration
}

var errBackendDown = errors.New("connection refused")

func (f *fakeInvoker) Generate(ctx context.Context, model, prompt, system string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, invocation{model: model, prompt: prompt, system: system})
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.respond == nil {
		return "VERDICT: pass\nREASONING: ok\nCONFIDENCE: 90", nil
	}
	return f.respond(ctx, model, prompt)
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
