package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "convenience field wins",
			body: `{"output_text":"short","output":[{"type":"message","content":[{"type":"output_text","text":"long"}]}]}`,
			want: "short",
		},
		{
			name: "first message output_text",
			body: `{"output":[{"type":"reasoning","content":[]},{"type":"message","content":[{"type":"refusal"},{"type":"output_text","text":"hello"}]},{"type":"message","content":[{"type":"output_text","text":"second"}]}]}`,
			want: "hello",
		},
		{
			name: "skips message without text",
			body: `{"output":[{"type":"message","content":[{"type":"output_text","text":null}]},{"type":"message","content":[{"type":"output_text","text":"later"}]}]}`,
			want: "later",
		},
		{
			name: "nothing usable",
			body: `{"output":[{"type":"function_call"}]}`,
			want: "",
		},
		{
			name: "empty output_text is still preferred",
			body: `{"output_text":"","output":[{"type":"message","content":[{"type":"output_text","text":"fallback"}]}]}`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponseText([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResponseTextRejectsInvalidJSON(t *testing.T) {
	_, err := ParseResponseText([]byte("not json"))
	assert.Error(t, err)
}

func TestCreateResponse(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"resp_1","model":"o4-mini","output":[{"type":"message","content":[{"type":"output_text","text":"done"}]}]}`))
	}))
	defer server.Close()

	client := NewClient(server.Client())
	resp, err := client.CreateResponse(context.Background(), Config{
		BaseURL:         server.URL + "/",
		APIKey:          "sk-test",
		Model:           "o4-mini",
		ReasoningEffort: "medium",
	}, "write a haiku", "be brief")
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text())
	assert.Equal(t, "resp_1", resp.ID)

	assert.Equal(t, map[string]any{
		"model":            "o4-mini",
		"input":            "write a haiku",
		"reasoning_effort": "medium",
		"instructions":     "be brief",
	}, got)
}

func TestCreateResponseOmitsEmptyInstructions(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"output_text":"ok"}`))
	}))
	defer server.Close()

	resp, err := NewClient(nil).CreateResponse(context.Background(), Config{BaseURL: server.URL, Model: "o4-mini"}, "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.NotContains(t, got, "instructions")
}

func TestCreateResponseStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	_, err := NewClient(nil).CreateResponse(context.Background(), Config{BaseURL: server.URL}, "hi", "")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "rate limited")
}

func TestCreateResponseTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := NewClient(nil).CreateResponse(context.Background(), Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, "hi", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
