package openaichat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/interview-simulator/internal/ai"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"messages"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New("test-key", "gpt-4o", 0, zap.NewNop(),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0),
	)
	require.NoError(t, err)
	return client
}

var conversation = []ai.Message{
	{Role: ai.RoleSystem, Content: "You interview a candidate."},
	{Role: ai.RoleAssistant, Content: "Tell me about yourself."},
	{Role: ai.RoleUser, Content: "I lead a QA team."},
}

func TestCompleteSendsConversation(t *testing.T) {
	var captured capturedRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"gpt-4o",`+
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"How do you plan regression testing?"}}]}`)
	})

	text, err := client.Complete(context.Background(), conversation)
	require.NoError(t, err)
	require.Equal(t, "How do you plan regression testing?", text)

	require.Equal(t, "gpt-4o", captured.Model)
	require.False(t, captured.Stream)
	require.Len(t, captured.Messages, 3)
	require.Equal(t, "system", captured.Messages[0].Role)
	require.Equal(t, "assistant", captured.Messages[1].Role)
	require.Equal(t, "user", captured.Messages[2].Role)
}

func TestStreamYieldsDeltas(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var captured capturedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		require.True(t, captured.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"How do you ", "plan regression ", "testing?"} {
			fmt.Fprintf(w, "data: {\"id\":\"cmpl-1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-4o\","+
				"\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", delta)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var fragments []string
	text, err := ai.Generate(context.Background(), client, conversation, func(f string) {
		fragments = append(fragments, f)
	})
	require.NoError(t, err)
	require.Equal(t, "How do you plan regression testing?", text)
	require.Equal(t, []string{"How do you ", "plan regression ", "testing?"}, fragments)
}

func TestCompletePropagatesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	})

	_, err := client.Complete(context.Background(), conversation)
	require.Error(t, err)
	require.Contains(t, err.Error(), "openai chat completion")
}

func TestParamsRejectsUnknownRole(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})

	_, err := client.Complete(context.Background(), []ai.Message{{Role: "tool", Content: "x"}})
	require.ErrorContains(t, err, "unsupported message role")

	_, err = client.Complete(context.Background(), nil)
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	_, err := New("  ", "", 0, nil)
	require.Error(t, err)

	client, err := New("key", " ", 0, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultModel, client.Model())
}
