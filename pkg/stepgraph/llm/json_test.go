package llm_test

import (
	"testing"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	type analysis struct {
		Summary string   `json:"summary"`
		Topics  []string `json:"topics"`
	}

	tests := []struct {
		name string
		text string
		want analysis
	}{
		{
			name: "bare object",
			text: `{"summary": "short", "topics": ["a"]}`,
			want: analysis{Summary: "short", Topics: []string{"a"}},
		},
		{
			name: "prose around object",
			text: "Here is the analysis:\n{\"summary\": \"ok\"}\nHope that helps!",
			want: analysis{Summary: "ok"},
		},
		{
			name: "code fence",
			text: "```json\n{\"summary\": \"fenced\", \"topics\": []}\n```",
			want: analysis{Summary: "fenced", Topics: []string{}},
		},
		{
			name: "braces inside strings",
			text: `{"summary": "uses {curly} braces \"and quotes\""} trailing }`,
			want: analysis{Summary: `uses {curly} braces "and quotes"`},
		},
		{
			name: "nested objects",
			text: `{"summary": "n", "extra": {"deep": {"x": 1}}}`,
			want: analysis{Summary: "n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got analysis
			require.NoError(t, llm.ExtractJSON(tt.text, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no object", "I could not produce JSON"},
		{"unterminated", `{"summary": "cut off`},
		{"invalid", `{summary: bare}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			err := llm.ExtractJSON(tt.text, &got)
			require.Error(t, err)

			var parseErr *llm.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tt.text, parseErr.Text)
		})
	}
}
