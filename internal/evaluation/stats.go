package evaluation

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"ai-judge/internal/verdict"
)

type Stats struct {
	Total             int     `json:"total"`
	PassCount         int     `json:"pass_count"`
	FailCount         int     `json:"fail_count"`
	InconclusiveCount int     `json:"inconclusive_count"`
	PassRate          float64 `json:"pass_rate"`
	AvgConfidence     float64 `json:"avg_confidence"`
}

type JudgeQueueStats struct {
	JudgeID      int64   `json:"judge_id"`
	JudgeName    string  `json:"judge_name"`
	Pass         int     `json:"pass"`
	Fail         int     `json:"fail"`
	Inconclusive int     `json:"inconclusive"`
	Total        int     `json:"total"`
	PassRate     float64 `json:"pass_rate"`
}

type Aggregator struct {
	store EvaluationStore
}

func NewAggregator(store EvaluationStore) *Aggregator {
	return &Aggregator{store: store}
}

func (a *Aggregator) Stats(ctx context.Context, f Filter) (*Stats, error) {
	counts, err := a.store.AggregateEvaluations(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("aggregate evaluations: %w", err)
	}
	return NewStats(counts), nil
}

// NewStats derives rates from raw counts. An empty set has a pass rate of 0
// and the parser's neutral confidence.
func NewStats(c VerdictCounts) *Stats {
	total := c.Total()
	avg := float64(verdict.DefaultConfidence)
	if total > 0 {
		avg = round(float64(c.ConfidenceSum)/float64(total), 1)
	}
	return &Stats{
		Total:             total,
		PassCount:         c.Pass,
		FailCount:         c.Fail,
		InconclusiveCount: c.Inconclusive,
		PassRate:          passRate(c.Pass, total),
		AvgConfidence:     avg,
	}
}

func (a *Aggregator) StatsByQueue(ctx context.Context) (map[string][]JudgeQueueStats, error) {
	rows, err := a.store.AggregateByQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate by queue: %w", err)
	}
	return RollupByQueue(rows), nil
}

type queueJudgeKey struct {
	QueueID string
	JudgeID int64
}

// RollupByQueue folds (queue, judge, verdict) groups into one row per judge
// per queue, ordered by judge id.
func RollupByQueue(rows []QueueJudgeCount) map[string][]JudgeQueueStats {
	groups := make(map[queueJudgeKey]*JudgeQueueStats)
	for _, r := range rows {
		k := queueJudgeKey{QueueID: r.QueueID, JudgeID: r.JudgeID}
		g, ok := groups[k]
		if !ok {
			g = &JudgeQueueStats{JudgeID: r.JudgeID, JudgeName: r.JudgeName}
			groups[k] = g
		}
		switch r.Verdict {
		case verdict.Pass:
			g.Pass += r.Count
		case verdict.Fail:
			g.Fail += r.Count
		default:
			g.Inconclusive += r.Count
		}
		g.Total += r.Count
	}

	out := make(map[string][]JudgeQueueStats)
	for k, g := range groups {
		g.PassRate = passRate(g.Pass, g.Total)
		out[k.QueueID] = append(out[k.QueueID], *g)
	}
	for _, judges := range out {
		slices.SortFunc(judges, func(a, b JudgeQueueStats) int {
			return cmp.Compare(a.JudgeID, b.JudgeID)
		})
	}
	return out
}

func passRate(pass, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(pass)/float64(total)*100, 2)
}

// round breaks ties to even.
func round(x float64, places int) float64 {
	p := math.Pow10(places)
	return math.RoundToEven(x*p) / p
}
