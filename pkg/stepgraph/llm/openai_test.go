package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newChatServer(t *testing.T, status int, reply string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "llama3.2:1b",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got chatRequest
	srv := newChatServer(t, http.StatusOK, "POSITIVE", &got)

	client := llm.NewOpenAIClient(srv.URL+"/v1", "", "")
	resp, err := client.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Classify sentiment.",
		Messages:     []llm.Message{llm.UserMessage("I love it")},
	})
	require.NoError(t, err)

	assert.Equal(t, "POSITIVE", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 8, resp.Usage.TotalTokens)

	assert.Equal(t, llm.DefaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "I love it", got.Messages[1].Content)
}

func TestOpenAIClient_RequestModelOverrides(t *testing.T) {
	var got chatRequest
	srv := newChatServer(t, http.StatusOK, "ok", &got)

	client := llm.NewOpenAIClient(srv.URL+"/v1", "key", "default-model")
	assert.Equal(t, "default-model", client.Model())

	_, err := client.Complete(context.Background(), llm.CompletionRequest{
		Model:    "other",
		Messages: []llm.Message{llm.UserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "other", got.Model)
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := newChatServer(t, http.StatusInternalServerError, "", nil)

	client := llm.NewOpenAIClient(srv.URL+"/v1", "", "")
	_, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage("hi")},
	})
	require.Error(t, err)

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, "complete", llmErr.Op)
	assert.True(t, llm.IsRetryable(err))
}

func TestOpenAIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := llm.NewOpenAIClient(srv.URL+"/v1", "", "", llm.WithTimeout(20*time.Millisecond))
	_, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage("hi")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, llm.IsRetryable(err))
}
