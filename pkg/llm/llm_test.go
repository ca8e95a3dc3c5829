package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	calls    int
	deadline bool
	reply    string
}

func (f *fakeClient) Complete(ctx context.Context, _ string) (string, error) {
	f.calls++
	_, f.deadline = ctx.Deadline()
	return f.reply, nil
}

func (f *fakeClient) Model() string { return "fake-1" }
func (f *fakeClient) Close() error  { return nil }

func TestNewDisabledAndUnknownProviders(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "none"})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = New(context.Background(), Config{Provider: "gemini"})
	assert.ErrorIs(t, err, ErrDisabled, "missing key disables the backend")

	_, err = New(context.Background(), Config{Provider: "claude-ish"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDisabled)
}

func TestOpenAICompleteAgainstCompatibleServer(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Resumen listo."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{Provider: "openai", APIKey: "k", Model: "local-model", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	defer c.Close()

	out, err := c.Complete(context.Background(), "Resume esta noticia")
	require.NoError(t, err)
	assert.Equal(t, "Resumen listo.", out)
	assert.Equal(t, "local-model", c.Model())
	assert.Equal(t, "local-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Resume esta noticia", got.Messages[1].Content)
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", "", srv.URL).Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestLimitedAppliesTimeoutAndPacing(t *testing.T) {
	inner := &fakeClient{reply: "ok"}
	l := NewLimited(inner, 1, time.Second)

	out, err := l.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.True(t, inner.deadline, "per-call timeout should set a deadline")

	// The second call within the same minute must wait; a short deadline makes Wait fail fast.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Complete(ctx, "p")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestLimitedUnpaced(t *testing.T) {
	inner := &fakeClient{reply: "ok"}
	l := NewLimited(inner, 0, 0)
	for i := 0; i < 5; i++ {
		_, err := l.Complete(context.Background(), "p")
		require.NoError(t, err)
	}
	assert.Equal(t, 5, inner.calls)
	assert.False(t, inner.deadline)
	assert.Equal(t, "fake-1", l.Model())
	assert.NoError(t, l.Close())
}
