package state_test

import (
	"strings"
	"testing"

	"github.com/agentary-ai/agentary-go/pkg/state"
)

func TestExtractiveSummarizer(t *testing.T) {
	s := state.ExtractiveSummarizer{}

	note, err := s.Summarize([]state.Message{
		{Role: "user", Content: "what is the weather\nin stockholm?"},
		{Role: "assistant", Content: strings.Repeat("long answer ", 30)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(note, "Summary of 2 earlier messages") {
		t.Errorf("note = %q, want message count header", note)
	}
	if !strings.Contains(note, "user: what is the weather in stockholm?") {
		t.Errorf("note = %q, want normalized user excerpt", note)
	}
	if strings.Contains(note, strings.Repeat("long answer ", 30)) {
		t.Error("long content must be truncated in the note")
	}
}

func TestExtractiveSummarizerEmpty(t *testing.T) {
	note, err := state.ExtractiveSummarizer{}.Summarize(nil)
	if err != nil {
		t.Fatal(err)
	}
	if note != "" {
		t.Errorf("note = %q, want empty", note)
	}
}
