package state

import (
	"fmt"
	"strings"
)

// maxExcerptLen bounds each message excerpt inside a summary note
const maxExcerptLen = 80

// ExtractiveSummarizer builds a summary note from excerpts of the
// evicted messages. It never calls a model, so pruning stays cheap and
// deterministic.
type ExtractiveSummarizer struct{}

// Summarize returns a single system-note string covering the evicted
// messages.
func (ExtractiveSummarizer) Summarize(messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Summary of %d earlier messages]", len(messages))
	for _, msg := range messages {
		excerpt := strings.TrimSpace(msg.Content)
		excerpt = strings.Join(strings.Fields(excerpt), " ")
		if len(excerpt) > maxExcerptLen {
			excerpt = excerpt[:maxExcerptLen] + "..."
		}
		if excerpt == "" {
			continue
		}
		fmt.Fprintf(&b, "\n- %s: %s", msg.Role, excerpt)
	}
	return b.String(), nil
}
