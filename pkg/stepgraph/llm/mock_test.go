package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ask(t *testing.T, c llm.Client, prompt string) string {
	t.Helper()
	resp, err := c.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage(prompt)},
	})
	require.NoError(t, err)
	return resp.Content
}

func TestMockClient_Responses(t *testing.T) {
	tests := []struct {
		name  string
		mock  *llm.MockClient
		calls int
		want  []string
	}{
		{
			name:  "fixed",
			mock:  llm.NewMockClient("positive"),
			calls: 2,
			want:  []string{"positive", "positive"},
		},
		{
			name:  "sequence cycles",
			mock:  llm.NewMockClient("unused").WithResponses(`{"tool":"calculate"}`, "done"),
			calls: 3,
			want:  []string{`{"tool":"calculate"}`, "done", `{"tool":"calculate"}`},
		},
		{
			name:  "empty sequence falls back to fixed",
			mock:  llm.NewMockClient("fallback").WithResponses(),
			calls: 1,
			want:  []string{"fallback"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for i := 0; i < tt.calls; i++ {
				got = append(got, ask(t, tt.mock, "classify"))
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.calls, tt.mock.CallCount())
		})
	}
}

func TestMockClient_Response(t *testing.T) {
	mock := llm.NewMockClient("some response text")

	resp, err := mock.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "You are terse.",
		Model:        "llama3.2:1b",
		Messages:     []llm.Message{llm.UserMessage("hello there")},
	})
	require.NoError(t, err)

	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "llama3.2:1b", resp.Model)
	assert.Positive(t, resp.Usage.InputTokens)
	assert.Positive(t, resp.Usage.OutputTokens)
	assert.Equal(t, resp.Usage.InputTokens+resp.Usage.OutputTokens, resp.Usage.TotalTokens)
}

func TestMockClient_Failure(t *testing.T) {
	boom := llm.NewError("complete", errors.New("connection refused"), true)
	mock := llm.NewMockClient("never").WithError(boom)

	_, err := mock.Complete(context.Background(), llm.CompletionRequest{})
	require.ErrorIs(t, err, boom)
	assert.True(t, llm.IsRetryable(err))
	assert.Equal(t, 1, mock.CallCount(), "failed calls are still recorded")
}

func TestMockClient_Canceled(t *testing.T) {
	mock := llm.NewMockClient("response")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mock.Complete(ctx, llm.CompletionRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, mock.CallCount())
}

func TestMockClient_Recording(t *testing.T) {
	mock := llm.NewMockClient("ok").WithResponses("a", "b")
	assert.Nil(t, mock.LastCall())

	ask(t, mock, "first question")
	ask(t, mock, "second question")

	require.Len(t, mock.Calls, 2)
	assert.Equal(t, "first question", mock.Calls[0].Messages[0].Content)
	last := mock.LastCall()
	require.NotNil(t, last)
	assert.Equal(t, "second question", last.Messages[0].Content)

	mock.Reset()
	assert.Zero(t, mock.CallCount())
	assert.Equal(t, "a", ask(t, mock, "again"), "reset rewinds the sequence")
}

func TestMockClient_CompleteFunc(t *testing.T) {
	mock := llm.NewMockClient("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: "echo: " + req.Messages[len(req.Messages)-1].Content}, nil
	})

	assert.Equal(t, "echo: ping", ask(t, mock, "ping"))
	assert.Equal(t, 1, mock.CallCount())
}
