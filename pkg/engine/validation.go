package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/user/fricadelle/pkg/adk"
	"github.com/user/fricadelle/pkg/observability"
	"github.com/user/fricadelle/pkg/prompt"
)

const (
	// FailOpenConfidence is assigned when the corroboration call itself fails.
	FailOpenConfidence = 0.6
	// DefaultAcceptConfidence is used when an accepting outcome has no confidence.
	DefaultAcceptConfidence = 0.8
)

// ValidationOptions are the sampling settings of a corroboration call.
func ValidationOptions() adk.GenerateOptions {
	return adk.GenerateOptions{Temperature: 0.1, MaxTokens: 500}
}

// ValidationOutcome is the verdict of one corroboration call.
type ValidationOutcome struct {
	IsValid     bool     `json:"is_valid"`
	Confidence  float64  `json:"confidence"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// Corroborator re-submits a single candidate together with the raw input
// for an independent verdict.
type Corroborator struct {
	Service adk.InferenceService
	Model   string
	Options adk.GenerateOptions
	Logger  *zap.Logger
}

// Corroborate never fails: when the call or its parsing goes wrong, the
// candidate is accepted with FailOpenConfidence and the failure is reported
// as an issue.
func (c *Corroborator) Corroborate(ctx context.Context, cand *Candidate, rawData string) ValidationOutcome {
	resp, err := c.Service.Generate(ctx, c.Model, prompt.Validation(cand, rawData), c.Options)
	if err != nil {
		return c.failOpen(cand, err)
	}
	doc, err := ParseObject(resp.Text)
	if err != nil {
		return c.failOpen(cand, err)
	}
	outcome, err := decodeOutcome(doc)
	if err != nil {
		return c.failOpen(cand, err)
	}
	return outcome
}

// Review corroborates cand and applies the verdict. On acceptance the
// candidate's confidence is overwritten with the outcome's; on rejection
// the returned message is ready for the error ledger.
func (c *Corroborator) Review(ctx context.Context, cand *Candidate, rawData string) (bool, string) {
	outcome := c.Corroborate(ctx, cand, rawData)
	if !outcome.IsValid {
		return false, fmt.Sprintf("Vulnerability '%s' failed validation: %s", cand.Title, strings.Join(outcome.Issues, ", "))
	}
	confidence := outcome.Confidence
	cand.ConfidenceScore = &confidence
	return true, ""
}

func (c *Corroborator) failOpen(cand *Candidate, err error) ValidationOutcome {
	observability.OrNop(c.Logger).Warn("corroboration failed, accepting with reduced confidence",
		zap.String("title", cand.Title),
		zap.Error(err))
	return ValidationOutcome{
		IsValid:     true,
		Confidence:  FailOpenConfidence,
		Issues:      []string{fmt.Sprintf("Validation error: %v", err)},
		Suggestions: []string{},
	}
}

func decodeOutcome(doc map[string]any) (ValidationOutcome, error) {
	raw, ok := doc["is_valid"]
	if !ok {
		return ValidationOutcome{}, errors.New("missing 'is_valid' key in validation response")
	}
	isValid, ok := raw.(bool)
	if !ok {
		return ValidationOutcome{}, fmt.Errorf("'is_valid' must be a boolean, got %s", typeName(raw))
	}

	outcome := ValidationOutcome{
		IsValid:     isValid,
		Confidence:  DefaultAcceptConfidence,
		Issues:      stringList(doc["issues"]),
		Suggestions: stringList(doc["suggestions"]),
	}
	if v, ok := number(doc["confidence"]); ok {
		outcome.Confidence = clamp(v, 0, 1)
	}
	return outcome, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
