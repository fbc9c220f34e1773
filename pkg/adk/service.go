package adk

import (
	"context"
)

// GenerateOptions holds the decoding parameters sent with a single prompt.
// TopP and TopK are optional; nil leaves the backend default in place.
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
	TopP        *float32
	TopK        *int
}

// Response is the raw text produced by a model.
type Response struct {
	Text string
}

// InferenceService runs one blocking prompt/response round trip against a model.
// Any returned error is a transport failure from the caller's point of view.
type InferenceService interface {
	Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (Response, error)
}

// ModelLister is implemented by services that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Float32 returns a pointer to v, for optional GenerateOptions fields.
func Float32(v float32) *float32 { return &v }

// Int returns a pointer to v, for optional GenerateOptions fields.
func Int(v int) *int { return &v }
