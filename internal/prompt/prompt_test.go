package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-judge/internal/verdict"
)

func TestBuildOrdering(t *testing.T) {
	p := Build(Input{QuestionText: "Q?", GroundingContent: "ctx", AnswerChoice: "yes"})

	ctxAt := strings.Index(p, "ctx")
	qAt := strings.Index(p, "Q?")
	aAt := strings.Index(p, "Choice: yes")
	instrAt := strings.Index(p, instructionsHeader)

	require.True(t, ctxAt >= 0 && qAt >= 0 && aAt >= 0 && instrAt >= 0, p)
	assert.Less(t, ctxAt, qAt)
	assert.Less(t, qAt, aAt)
	assert.Less(t, aAt, instrAt)
	assert.True(t, strings.HasPrefix(p, contextHeader))
}

func TestBuildWithoutContext(t *testing.T) {
	p := Build(Input{QuestionText: "Q?", AnswerChoice: "yes"})

	assert.NotContains(t, p, contextHeader)
	assert.NotContains(t, p, contextPreamble)
	assert.True(t, strings.HasPrefix(p, questionHeader))
}

func TestBuildReasoningLine(t *testing.T) {
	without := Build(Input{QuestionText: "Q?", AnswerChoice: "no"})
	assert.NotContains(t, without, "Reasoning: ")

	with := Build(Input{QuestionText: "Q?", AnswerChoice: "no", AnswerReasoning: "threshold exceeded"})
	assert.Contains(t, with, "Choice: no\nReasoning: threshold exceeded\n")
}

func TestBuildInstructions(t *testing.T) {
	p := Build(Input{QuestionText: "Q?", AnswerChoice: "yes"})

	for _, want := range []string{
		"Factual Accuracy",
		"Reasoning Consistency",
		"Completeness",
		"Domain Correctness",
		"A contradictory answer (where reasoning contradicts the choice) is always a FAIL.",
		verdict.VerdictPrefix + " pass|fail|inconclusive",
		verdict.ReasoningPrefix + " ",
		verdict.ConfidencePrefix + " [0-100",
	} {
		assert.Contains(t, p, want)
	}
	assert.True(t, strings.HasSuffix(p, "certainty in your verdict]"))
}

func TestBuildIsDeterministic(t *testing.T) {
	in := Input{QuestionText: "Is X compliant?", GroundingContent: "policy text", AnswerChoice: "yes", AnswerReasoning: "because"}
	assert.Equal(t, Build(in), Build(in))
}
