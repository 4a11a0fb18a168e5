// Package prompt assembles the grading prompt sent to a judge model.
package prompt

import (
	"strings"

	"ai-judge/internal/verdict"
)

type Input struct {
	QuestionText string
	// GroundingContent is the source material the question refers to; empty means none.
	GroundingContent string
	AnswerChoice     string
	AnswerReasoning  string
}

const (
	contextHeader      = "=== CONTEXT ==="
	questionHeader     = "=== QUESTION BEING EVALUATED ==="
	answerHeader       = "=== HUMAN ANALYST'S ANSWER ==="
	instructionsHeader = "=== YOUR EVALUATION TASK ==="
)

const contextPreamble = "The following is the source material that the question and answer refer to. " +
	"You MUST use this context to verify the accuracy of the answer. " +
	"Do not evaluate the answer in isolation; ground your judgment in the specific details provided here."

// instructions must stay in sync with verdict.Parse.
const instructions = `You are evaluating whether the human analyst's answer above is correct and well-reasoned. Analyze it against the following criteria:

1. **Factual Accuracy**: Does the chosen answer correctly reflect what is shown in the context? Are specific values, thresholds, and facts cited accurately?
2. **Reasoning Consistency**: Does the reasoning logically support the stated choice? If the reasoning contradicts the choice (e.g., the reasoning describes a violation but the choice says "compliant"), this is a FAIL regardless of whether either part is independently correct.
3. **Completeness**: Does the reasoning address the key factors relevant to the question, or does it overlook critical details present in the context?
4. **Domain Correctness**: Are domain-specific terms, standards, and thresholds applied correctly?

IMPORTANT RULES:
- A contradictory answer (where reasoning contradicts the choice) is always a FAIL.
- If the context provides specific data that clearly supports or refutes the answer, use it. Do not speculate beyond what is given.
- If there is insufficient context to make a determination, verdict should be INCONCLUSIVE.
- Be precise in your reasoning and cite specific values, thresholds, or code patterns from the context.

Respond in EXACTLY this format (three lines, no extra text):
` + verdict.VerdictPrefix + ` pass|fail|inconclusive
` + verdict.ReasoningPrefix + ` [Your detailed explanation citing specific evidence from the context]
` + verdict.ConfidencePrefix + ` [0-100, where 100 means absolute certainty in your verdict]`

// Build renders context, question, answer and instructions in that order.
// The context section is omitted when there is no grounding content.
func Build(in Input) string {
	var b strings.Builder

	if in.GroundingContent != "" {
		b.WriteString(contextHeader + "\n")
		b.WriteString(contextPreamble + "\n\n")
		b.WriteString(in.GroundingContent)
		b.WriteString("\n\n")
	}

	b.WriteString(questionHeader + "\n")
	b.WriteString(in.QuestionText)
	b.WriteString("\n\n")

	b.WriteString(answerHeader + "\n")
	b.WriteString("Choice: " + in.AnswerChoice)
	if in.AnswerReasoning != "" {
		b.WriteString("\nReasoning: " + in.AnswerReasoning)
	}
	b.WriteString("\n\n")

	b.WriteString(instructionsHeader + "\n")
	b.WriteString(instructions)
	return b.String()
}
