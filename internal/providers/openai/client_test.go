package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reelcast/autopilot/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, jsonResponseType, req.ResponseFormat["type"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" {\"ok\":true} "},"finish_reason":"stop"}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	c := NewClient(Settings{APIKey: "sk-test", BaseURL: srv.URL})
	got, err := c.CompleteJSON(context.Background(), "Reply in JSON.", "ping")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, got.Content)
	assert.Equal(t, 42, got.TokensUsed)
}

func TestCompleteEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"","refusal":"no"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Settings{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Equal(t, providers.KindData, providers.KindOf(err))
}

func TestCompleteRequiresKey(t *testing.T) {
	c := NewClient(Settings{})
	_, err := c.Complete(context.Background(), "sys", "hi")
	assert.True(t, providers.IsConfiguration(err))
}

func TestCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Settings{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "sys", "hi")
	assert.Equal(t, providers.KindTransient, providers.KindOf(err))
}
