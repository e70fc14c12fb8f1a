package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"onbrand-chat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseBody(chunks ...string) string {
	body := ""
	for _, c := range chunks {
		payload, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"delta": map[string]any{"content": c}},
			},
		})
		body += "data: " + string(payload) + "\n\n"
	}
	body += "data: [DONE]\n\n"
	return body
}

func TestChatStream_ReadsChunksUntilDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody("Hello", " world"))
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model")
	handle, err := provider.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	var out string
	for {
		chunk, err := handle.Recv()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		out += chunk
	}
	assert.Equal(t, "Hello world", out)

	// Recv after EOF stays EOF.
	_, err = handle.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestChatStream_NonStreamErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit_error","code":"rate_limit"}}`)
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(srv.URL, "", "test-model")
	_, err := provider.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)

	var provErr *llm.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Equal(t, "rate limited", provErr.Message)
	assert.Equal(t, "rate_limit", provErr.Code)
}

func TestChatStream_CancelReadsAsEOF(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done() // hold the stream open until the client cancels
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(srv.URL, "", "test-model")
	handle, err := provider.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	chunk, err := handle.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", chunk)

	<-started
	handle.Cancel()

	// Cancellation surfaces as a normal end of stream, never an error.
	_, err = handle.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestChat_ReturnsFullMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"full answer"}}]}`)
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(srv.URL, "", "test-model")
	out, err := provider.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "full answer", out)
}
