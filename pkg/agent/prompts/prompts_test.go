package prompts

import (
	"strings"
	"testing"

	"ai-analyst-be/pkg/store"
)

func TestFormatHistory(t *testing.T) {
	tests := []struct {
		name  string
		turns []store.Turn
		want  string
	}{
		{
			name:  "no turns",
			turns: nil,
			want:  "none",
		},
		{
			name: "one exchange",
			turns: []store.Turn{
				{Role: store.RoleUser, Text: "How many sales?"},
				{Role: store.RoleAssistant, Text: "42"},
			},
			want: "Human: How many sales?\nAI: 42",
		},
		{
			name: "unknown roles are skipped",
			turns: []store.Turn{
				{Role: "system", Text: "hidden"},
				{Role: store.RoleUser, Text: "Hello"},
			},
			want: "Human: Hello",
		},
		{
			name: "only unknown roles",
			turns: []store.Turn{
				{Role: "system", Text: "hidden"},
			},
			want: "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatHistory(tt.turns); got != tt.want {
				t.Errorf("FormatHistory() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildSQLPromptCarriesSchemaAndHint(t *testing.T) {
	prompt := BuildSQLPrompt("Total per region?", "sales", []string{"region", "amount"}, "none", ColumnHint("region"))

	for _, fragment := range []string{"Table: sales", "region, amount", "Total per region?", "region"} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("prompt is missing %q", fragment)
		}
	}
}

func TestBuildJudgmentPromptNumbersContexts(t *testing.T) {
	prompt := BuildJudgmentPrompt("What is the policy?", "", []string{"first chunk", "second chunk"}, "none")

	if !strings.Contains(prompt, "first chunk") || !strings.Contains(prompt, "second chunk") {
		t.Error("prompt must include every retrieved context")
	}
	if !strings.Contains(prompt, "What is the policy?") {
		t.Error("prompt must restate the question")
	}
}

func TestBuildSummaryPromptMentionsSentinel(t *testing.T) {
	prompt := BuildSummaryPrompt("What is the policy?", "[Round 1 Clues]: policy changed", "none")
	if !strings.Contains(prompt, NoAnswerSentinel) {
		t.Error("summary prompt must instruct the model how to concede")
	}
}
