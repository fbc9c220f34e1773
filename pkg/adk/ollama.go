package adk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultOllamaURL = "http://localhost:11434"

// OllamaService talks to a local Ollama daemon through /api/generate.
type OllamaService struct {
	client  *http.Client
	baseURL string
}

// NewOllamaService creates a service for the daemon at baseURL.
// Local models are slow, so the client timeout is generous.
func NewOllamaService(baseURL string, timeout time.Duration) *OllamaService {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &OllamaService{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

func (s *OllamaService) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (Response, error) {
	options := map[string]any{
		"temperature": opts.Temperature,
		"num_predict": opts.MaxTokens,
	}
	if opts.TopP != nil {
		options["top_p"] = *opts.TopP
	}
	if opts.TopK != nil {
		options["top_k"] = *opts.TopK
	}

	body, err := json.Marshal(ollamaRequest{Model: model, Prompt: prompt, Stream: false, Options: options})
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := s.do(req)
	if err != nil {
		return Response{}, err
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Response{}, fmt.Errorf("failed to parse Ollama response: %w", err)
	}
	return Response{Text: out.Response}, nil
}

// ListModels returns the names of the locally pulled models.
func (s *OllamaService) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	data, err := s.do(req)
	if err != nil {
		return nil, err
	}

	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse Ollama tags: %w", err)
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (s *OllamaService) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Ollama API returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "..."
		}
		i++
	}
	return s
}
