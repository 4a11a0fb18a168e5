package verdict

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Reply grammar the judge is told to follow. prompt.Build embeds these.
const (
	VerdictPrefix    = "VERDICT:"
	ReasoningPrefix  = "REASONING:"
	ConfidencePrefix = "CONFIDENCE:"
)

// DefaultConfidence is used when a reply carries no usable confidence.
const DefaultConfidence = 50

type Result struct {
	Verdict    Verdict `json:"verdict"`
	Reasoning  string  `json:"reasoning"`
	Confidence int     `json:"confidence"`
}

// Parse never fails. Unknown or missing fields fall back to Inconclusive,
// the whole reply as reasoning, and DefaultConfidence.
func Parse(raw string) Result {
	res := Result{Verdict: Inconclusive, Confidence: DefaultConfidence}
	var seenVerdict, seenReasoning, seenConfidence bool

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case !seenVerdict && hasPrefixFold(line, VerdictPrefix):
			seenVerdict = true
			if v, ok := ParseVerdict(line[len(VerdictPrefix):]); ok {
				res.Verdict = v
			}
		case !seenReasoning && hasPrefixFold(line, ReasoningPrefix):
			seenReasoning = true
			res.Reasoning = strings.TrimSpace(line[len(ReasoningPrefix):])
		case !seenConfidence && hasPrefixFold(line, ConfidencePrefix):
			seenConfidence = true
			res.Confidence = parseConfidence(line[len(ConfidencePrefix):])
		}
	}

	if !seenReasoning {
		res.Reasoning = strings.TrimSpace(raw)
	}
	return res
}

// parseConfidence handles "85", "85%", "85/100" and clamps to [0, 100].
func parseConfidence(s string) int {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) || math.IsNaN(f) {
		return DefaultConfidence
	}
	return int(math.Max(0, math.Min(100, math.Trunc(f))))
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
