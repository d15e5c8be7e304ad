package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type sentRequest struct {
	Model    string `json:"model"`
	Messages []Turn `json:"messages"`
}

func TestReplySendsHistoryWithSystemPrompt(t *testing.T) {
	t.Parallel()

	var got sentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello Alice"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "gpt-test", SystemPrompt: "Be brief."})
	reply, err := c.Reply(context.Background(), []Turn{{Role: "user", Content: "Hi"}})
	require.NoError(t, err)
	require.Equal(t, "Hello Alice", reply)

	require.Equal(t, "gpt-test", got.Model)
	require.Equal(t, []Turn{{Role: "system", Content: "Be brief."}, {Role: "user", Content: "Hi"}}, got.Messages)
}

func TestReplyErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL, APIKey: "sk-test"}).Reply(context.Background(), []Turn{{Role: "user", Content: "x"}})
	require.ErrorContains(t, err, "quota exceeded")
	require.ErrorContains(t, err, "429")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()

	_, err = NewClient(Config{BaseURL: empty.URL, APIKey: "sk-test"}).Reply(context.Background(), []Turn{{Role: "user", Content: "x"}})
	require.ErrorIs(t, err, ErrEmptyReply)
}
