package adk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3.2","response":"{\"vulnerabilities\": []}","done":true}`))
	}))
	defer srv.Close()

	svc := NewOllamaService(srv.URL+"/", time.Second)
	resp, err := svc.Generate(context.Background(), "llama3.2", "hello", GenerateOptions{
		Temperature: 0.1,
		MaxTokens:   2000,
		TopP:        Float32(0.9),
		TopK:        Int(40),
	})
	require.NoError(t, err)

	assert.Equal(t, `{"vulnerabilities": []}`, resp.Text)
	assert.Equal(t, "llama3.2", got["model"])
	assert.Equal(t, "hello", got["prompt"])
	assert.Equal(t, false, got["stream"])
	options := got["options"].(map[string]any)
	assert.InDelta(t, 0.1, options["temperature"], 1e-6)
	assert.Equal(t, 2000.0, options["num_predict"])
	assert.InDelta(t, 0.9, options["top_p"], 1e-6)
	assert.Equal(t, 40.0, options["top_k"])
}

func TestOllamaOmitsUnsetOptions(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	_, err := NewOllamaService(srv.URL, time.Second).Generate(context.Background(), "m", "p", GenerateOptions{MaxTokens: 500})
	require.NoError(t, err)

	options := got["options"].(map[string]any)
	assert.NotContains(t, options, "top_p")
	assert.NotContains(t, options, "top_k")
}

func TestOllamaErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaService(srv.URL, time.Second).Generate(context.Background(), "nope", "p", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "not found")
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "éé...", truncate("ééé", 2))

	long := strings.Repeat("é", 300)
	got := truncate(long, 200)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 200)+"...", got)
}

func TestOllamaListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"name":"mistral:7b"}]}`))
	}))
	defer srv.Close()

	models, err := NewOllamaService(srv.URL, time.Second).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2:latest", "mistral:7b"}, models)
}

func TestOpenAIGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"is_valid\": true}"}}]}`))
	}))
	defer srv.Close()

	svc := NewOpenAIService("sk-test", srv.URL, time.Second)
	resp, err := svc.Generate(context.Background(), "gpt-4o-mini", "judge this", GenerateOptions{Temperature: 0.1, MaxTokens: 500, TopK: Int(40)})
	require.NoError(t, err)

	assert.Equal(t, `{"is_valid": true}`, resp.Text)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "judge this", got.Messages[0].Content)
	assert.Equal(t, 500, got.MaxTokens)
	assert.Nil(t, got.TopP)
}

func TestOpenAIFailures(t *testing.T) {
	testCases := map[string]http.HandlerFunc{
		"bad status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
		"no choices": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range testCases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			_, err := NewOpenAIService("", srv.URL, time.Second).Generate(context.Background(), "m", "p", GenerateOptions{})
			assert.Error(t, err)
		})
	}
}

func TestOpenAIListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`))
	}))
	defer srv.Close()

	models, err := NewOpenAIService("k", srv.URL, time.Second).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, models)
}

func TestNewService(t *testing.T) {
	ctx := context.Background()

	svc, err := NewService(ctx, "ollama", "", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &OllamaService{}, svc)

	svc, err = NewService(ctx, "openai", "k", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIService{}, svc)

	_, err = NewService(ctx, "gemini", "", "", 0)
	assert.Error(t, err)

	_, err = NewService(ctx, "anthropic", "k", "", 0)
	assert.Error(t, err)
}

type countingService struct{ calls int }

func (c *countingService) Generate(context.Context, string, string, GenerateOptions) (Response, error) {
	c.calls++
	return Response{Text: "ok"}, nil
}

func TestRateLimited(t *testing.T) {
	inner := &countingService{}
	limited := NewRateLimited(inner, 0, 0)
	for i := 0; i < 5; i++ {
		_, err := limited.Generate(context.Background(), "m", "p", GenerateOptions{})
		require.NoError(t, err)
	}
	assert.Equal(t, 5, inner.calls)

	_, err := limited.ListModels(context.Background())
	assert.Error(t, err, "inner service cannot list models")
}

func TestRateLimitedHonoursContext(t *testing.T) {
	inner := &countingService{}
	limited := NewRateLimited(inner, 0.001, 1)

	_, err := limited.Generate(context.Background(), "m", "p", GenerateOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Generate(ctx, "m", "p", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
	assert.Equal(t, 1, inner.calls)
}
