package state

// TokenEstimator estimates the token cost of text. The engine never
// tokenizes; it only needs a rough, monotone estimate to drive the
// pruning policy.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// HeuristicEstimator approximates one token per four characters, the
// usual rule of thumb for English text under BPE vocabularies.
type HeuristicEstimator struct{}

// EstimateTokens returns the estimated token count for text
func (HeuristicEstimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
