package chunker

import "strings"

// EstimateTokens gives a rough token count for embedding-model budgeting.
// Exact tokenization is not required.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	// Count words as a better proxy than pure character division.
	words := len(strings.Fields(text))
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
