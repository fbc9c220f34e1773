package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/user/fricadelle/pkg/adk"
	"github.com/user/fricadelle/pkg/observability"
	"github.com/user/fricadelle/pkg/prompt"
)

const DefaultMaxRetries = 3

// DetectionOptions are the sampling settings of a detection call: near
// deterministic, with a large token budget so the JSON is not truncated.
func DetectionOptions() adk.GenerateOptions {
	return adk.GenerateOptions{
		Temperature: 0.1,
		MaxTokens:   2000,
		TopP:        adk.Float32(0.9),
		TopK:        adk.Int(40),
	}
}

// DetectionResult is the outcome of all detection attempts for one unit.
// Candidates is nil when every attempt failed.
type DetectionResult struct {
	Candidates []any
	Attempts   int
	Errors     []ErrorRecord
}

// Detector runs the detection call for a unit with bounded retries.
type Detector struct {
	Service    adk.InferenceService
	Model      string
	Options    adk.GenerateOptions
	MaxRetries int

	// NewBackOff supplies the delay policy between attempts. Nil means an
	// exponential backoff starting at one second.
	NewBackOff func() backoff.BackOff
	Logger     *zap.Logger
}

// Detect performs up to MaxRetries attempts. Each attempt calls the
// service, normalizes and decodes the reply and checks the response shape;
// the first attempt that passes all three returns immediately. The context
// is only consulted between attempts.
func (d *Detector) Detect(ctx context.Context, filename, rawData string) DetectionResult {
	logger := observability.OrNop(d.Logger).With(zap.String("file", filename))
	maxRetries := d.MaxRetries
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	bo := d.backOff()
	bo.Reset()

	detectionPrompt := prompt.Detection(rawData, filename)
	var res DetectionResult

	fail := func(attempt int, kind ErrorKind, err error) {
		res.Errors = append(res.Errors, ErrorRecord{
			SourceFile: filename,
			Attempt:    attempt,
			Kind:       kind,
			Message:    err.Error(),
		})
		logger.Warn("detection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			if err := wait(ctx, bo); err != nil {
				fail(attempt, KindTransport, err)
				return res
			}
		}
		if err := ctx.Err(); err != nil {
			fail(attempt, KindTransport, fmt.Errorf("detection cancelled: %w", err))
			return res
		}
		res.Attempts = attempt

		resp, err := d.Service.Generate(ctx, d.Model, detectionPrompt, d.Options)
		if err != nil {
			fail(attempt, KindTransport, fmt.Errorf("inference call failed: %w", err))
			continue
		}

		doc, err := ParseObject(resp.Text)
		if err != nil {
			fail(attempt, KindParse, err)
			continue
		}

		items, err := ValidateResponse(doc)
		if err != nil {
			fail(attempt, KindSchemaViolation, err)
			continue
		}

		if attempt > 1 {
			logger.Info("detection succeeded after retry", zap.Int("attempt", attempt))
		}
		res.Candidates = items
		return res
	}

	logger.Warn("detection exhausted all attempts", zap.Int("attempts", res.Attempts))
	return res
}

func (d *Detector) backOff() backoff.BackOff {
	if d.NewBackOff != nil {
		return d.NewBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// wait sleeps for the next backoff interval unless ctx ends first. A
// backoff that reports Stop is treated as "no delay".
func wait(ctx context.Context, bo backoff.BackOff) error {
	delay := bo.NextBackOff()
	if delay == backoff.Stop || delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

