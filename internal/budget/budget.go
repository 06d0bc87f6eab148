// Package budget provides token budget estimation and context trimming for
// answer generation. Because several LLM backends with different tokenizers
// are supported, this package uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose).
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// perMessageOverhead approximates the role and framing tokens most chat
	// APIs add to every message.
	perMessageOverhead = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// It fits within 8k-context models while leaving room for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimContexts keeps the longest prefix of contexts (they arrive best match
// first) whose estimated cost, together with the fixed messages, fits within
// maxTokens. Each context is costed as if sent as its own message.
//
// fixed messages are never dropped; if they alone exceed the budget the
// result is empty and callers should warn separately.
func TrimContexts(fixed []*schema.Message, contexts []string, maxTokens int) []string {
	used := EstimateMessages(fixed)
	for i, c := range contexts {
		used += perMessageOverhead + Estimate(c)
		if used > maxTokens {
			return contexts[:i]
		}
	}
	return contexts
}
