package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-judge/internal/verdict"
)

func seedEvaluations(store *memStore, evs ...Evaluation) {
	for i := range evs {
		_ = store.AppendEvaluation(context.Background(), &evs[i])
	}
}

func TestStatsPassRate(t *testing.T) {
	store := newMemStore()
	seedEvaluations(store,
		Evaluation{JudgeID: 1, TemplateID: "t", Verdict: verdict.Pass, Confidence: 80},
		Evaluation{JudgeID: 1, TemplateID: "t", Verdict: verdict.Pass, Confidence: 90},
		Evaluation{JudgeID: 1, TemplateID: "t", Verdict: verdict.Pass, Confidence: 70},
		Evaluation{JudgeID: 1, TemplateID: "t", Verdict: verdict.Fail, Confidence: 61},
	)

	stats, err := NewAggregator(store).Stats(context.Background(), Filter{})
	require.NoError(t, err)

	assert.Equal(t, &Stats{
		Total:         4,
		PassCount:     3,
		FailCount:     1,
		PassRate:      75,
		AvgConfidence: 75.2,
	}, stats)
}

func TestStatsEmpty(t *testing.T) {
	stats, err := NewAggregator(newMemStore()).Stats(context.Background(), Filter{})
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0.0, stats.PassRate)
	assert.Equal(t, 50.0, stats.AvgConfidence)
}

func TestStatsFiltersAreConjunctive(t *testing.T) {
	store := newMemStore()
	seedEvaluations(store,
		Evaluation{JudgeID: 1, TemplateID: "a", Verdict: verdict.Pass, Confidence: 100},
		Evaluation{JudgeID: 1, TemplateID: "b", Verdict: verdict.Pass, Confidence: 100},
		Evaluation{JudgeID: 2, TemplateID: "a", Verdict: verdict.Fail, Confidence: 10},
		Evaluation{JudgeID: 2, TemplateID: "a", Verdict: verdict.Pass, Confidence: 20},
		Evaluation{JudgeID: 3, TemplateID: "a", Verdict: verdict.Inconclusive, Confidence: 50},
	)
	agg := NewAggregator(store)
	pass := verdict.Pass

	tests := []struct {
		name   string
		filter Filter
		total  int
		passes int
	}{
		{name: "no filter", filter: Filter{}, total: 5, passes: 3},
		{name: "judges", filter: Filter{JudgeIDs: []int64{1, 2}}, total: 4, passes: 3},
		{name: "question", filter: Filter{QuestionIDs: []string{"a"}}, total: 4, passes: 2},
		{name: "judge and question", filter: Filter{JudgeIDs: []int64{2}, QuestionIDs: []string{"a"}}, total: 2, passes: 1},
		{name: "all three", filter: Filter{JudgeIDs: []int64{2, 3}, QuestionIDs: []string{"a"}, Verdict: &pass}, total: 1, passes: 1},
		{name: "no match", filter: Filter{JudgeIDs: []int64{99}}, total: 0, passes: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := agg.Stats(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.total, stats.Total)
			assert.Equal(t, tt.passes, stats.PassCount)
		})
	}
}

func TestNewStatsRounding(t *testing.T) {
	stats := NewStats(VerdictCounts{Pass: 1, Fail: 2, ConfidenceSum: 100})
	assert.Equal(t, 33.33, stats.PassRate)
	assert.Equal(t, 33.3, stats.AvgConfidence)

	stats = NewStats(VerdictCounts{Pass: 2, Inconclusive: 1, ConfidenceSum: 200})
	assert.Equal(t, 66.67, stats.PassRate)
	assert.Equal(t, 66.7, stats.AvgConfidence)

	// Ties go to the even digit.
	stats = NewStats(VerdictCounts{Pass: 1, Fail: 31, ConfidenceSum: 2408})
	assert.Equal(t, 3.12, stats.PassRate)
	assert.Equal(t, 75.2, stats.AvgConfidence)

	stats = NewStats(VerdictCounts{Pass: 3, Fail: 1, ConfidenceSum: 303})
	assert.Equal(t, 75.8, stats.AvgConfidence)
}

type failingStore struct{ EvaluationStore }

func (failingStore) AggregateEvaluations(context.Context, Filter) (VerdictCounts, error) {
	return VerdictCounts{}, errors.New("boom")
}

func (failingStore) AggregateByQueue(context.Context) ([]QueueJudgeCount, error) {
	return nil, errors.New("boom")
}

func TestAggregatorPropagatesErrors(t *testing.T) {
	agg := NewAggregator(failingStore{})
	_, err := agg.Stats(context.Background(), Filter{})
	assert.ErrorContains(t, err, "aggregate evaluations: boom")
	_, err = agg.StatsByQueue(context.Background())
	assert.ErrorContains(t, err, "aggregate by queue: boom")
}

func TestRollupByQueue(t *testing.T) {
	rows := []QueueJudgeCount{
		{QueueID: "Q1", JudgeID: 2, JudgeName: "beta", Verdict: verdict.Fail, Count: 1},
		{QueueID: "Q1", JudgeID: 1, JudgeName: "alpha", Verdict: verdict.Pass, Count: 3},
		{QueueID: "Q1", JudgeID: 1, JudgeName: "alpha", Verdict: verdict.Fail, Count: 1},
		{QueueID: "Q1", JudgeID: 2, JudgeName: "beta", Verdict: verdict.Inconclusive, Count: 1},
		{QueueID: "Q2", JudgeID: 1, JudgeName: "alpha", Verdict: verdict.Pass, Count: 2},
	}

	want := map[string][]JudgeQueueStats{
		"Q1": {
			{JudgeID: 1, JudgeName: "alpha", Pass: 3, Fail: 1, Total: 4, PassRate: 75},
			{JudgeID: 2, JudgeName: "beta", Fail: 1, Inconclusive: 1, Total: 2, PassRate: 0},
		},
		"Q2": {
			{JudgeID: 1, JudgeName: "alpha", Pass: 2, Total: 2, PassRate: 100},
		},
	}
	if diff := cmp.Diff(want, RollupByQueue(rows)); diff != "" {
		t.Errorf("RollupByQueue mismatch (-want +got):\n%s", diff)
	}
}

func TestRollupByQueueEmpty(t *testing.T) {
	assert.Empty(t, RollupByQueue(nil))
}

func TestStatsByQueueAfterRun(t *testing.T) {
	store := newMemStore()
	store.addSubmission(Submission{ID: "s1", QueueID: "Q1"},
		[]Question{{TemplateID: "t", Text: "?"}},
		Answer{TemplateID: "t", Choice: "a"})
	store.addSubmission(Submission{ID: "s2", QueueID: "Q2"},
		[]Question{{TemplateID: "t", Text: "?"}},
		Answer{TemplateID: "t", Choice: "a"})
	store.addJudge(Judge{ID: 1, Name: "alpha", ModelName: "m", Active: true})
	store.assign("Q1", "t", 1)
	store.assign("Q2", "t", 1)

	orch := newTestOrchestrator(store, &fakeInvoker{})
	for _, q := range []string{"Q1", "Q2"} {
		_, err := orch.Run(context.Background(), q)
		require.NoError(t, err)
	}

	byQueue, err := NewAggregator(store).StatsByQueue(context.Background())
	require.NoError(t, err)
	require.Len(t, byQueue, 2)
	assert.Equal(t, []JudgeQueueStats{{JudgeID: 1, JudgeName: "alpha", Pass: 1, Total: 1, PassRate: 100}}, byQueue["Q1"])
}
