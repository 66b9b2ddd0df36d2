package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"preset-teaching-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model":   got.Model,
			"message": map[string]string{"role": "assistant", "content": "<preset_teaching_plan/>"},
			"done":    true,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "llama3", 0)
	reply, err := p.Chat(context.Background(), []llm.Message{
		{Role: "system", Content: "rules"},
		{Role: "model", Content: "earlier"},
	}, llm.WithTemperature(0), llm.WithModel("qwen2"), llm.WithMaxTokens(256))

	require.NoError(t, err)
	assert.Equal(t, "<preset_teaching_plan/>", reply)
	assert.Equal(t, "qwen2", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	require.NotNil(t, got.Options)
	require.NotNil(t, got.Options.Temperature)
	assert.Equal(t, 0.0, *got.Options.Temperature)
	assert.Equal(t, 256, got.Options.NumPredict)
}

func TestChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "missing", 0).Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
