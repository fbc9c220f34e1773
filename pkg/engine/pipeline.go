package engine

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/fricadelle/pkg/observability"
	"github.com/user/fricadelle/pkg/source"
)

const (
	DefaultMaxInputChars = 4000
	DefaultExcerptChars  = 500
	DefaultWorkers       = 1
)

// Pipeline runs detection, record validation, corroboration and enrichment
// for every unit. Units share nothing but the Collector.
type Pipeline struct {
	Detector *Detector
	// Corroborator is optional; nil skips the validation pass.
	Corroborator  *Corroborator
	Workers       int
	MaxInputChars int
	ExcerptChars  int
	Logger        *zap.Logger
}

// Run processes units on a bounded worker pool and aggregates the result.
// It never fails: unit-level problems end up in the error ledger. A
// cancelled context stops new units from starting.
func (p *Pipeline) Run(ctx context.Context, units []source.Unit) Aggregation {
	logger := observability.OrNop(p.Logger)
	workers := p.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}

	collector := NewCollector()
	var g errgroup.Group
	g.SetLimit(workers)

	started := 0
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		u := u
		started++
		g.Go(func() error {
			p.processUnit(ctx, u, collector)
			return nil
		})
	}
	_ = g.Wait()

	if skipped := units[started:]; len(skipped) > 0 {
		logger.Warn("run cancelled, units left unprocessed", zap.Int("skipped", len(skipped)))
		for _, u := range skipped {
			collector.AddErrors(cancelled(u.Filename, 0, "before unit started"))
		}
	}

	findings, errs, processed := collector.Snapshot()
	return Aggregate(findings, errs, processed)
}

func (p *Pipeline) processUnit(ctx context.Context, u source.Unit, collector *Collector) {
	logger := observability.OrNop(p.Logger).With(zap.String("file", u.Filename))
	logger.Info("analyzing unit", zap.String("content_type", string(u.ContentType)), zap.String("tool", u.Tool))

	rawData := truncateRunes(u.Content, p.maxInputChars())
	excerpt := truncateRunes(rawData, p.excerptChars())

	res := p.Detector.Detect(ctx, u.Filename, rawData)
	collector.AddErrors(res.Errors...)

	accepted := 0
	for _, item := range res.Candidates {
		cand, err := NewCandidate(item)
		if err != nil {
			collector.AddErrors(ErrorRecord{
				SourceFile: u.Filename,
				Attempt:    res.Attempts,
				Kind:       KindSchemaViolation,
				Message:    "candidate rejected: " + err.Error(),
			})
			logger.Warn("candidate rejected", zap.Error(err))
			continue
		}

		if p.Corroborator != nil {
			if ctx.Err() != nil {
				collector.AddErrors(cancelled(u.Filename, res.Attempts, "before validation"))
				logger.Warn("run cancelled, unit left incomplete")
				return
			}
			ok, reason := p.Corroborator.Review(ctx, cand, rawData)
			// A cancelled call fails open; its verdict is not trusted.
			if ctx.Err() != nil {
				collector.AddErrors(cancelled(u.Filename, res.Attempts, "during validation"))
				logger.Warn("run cancelled, unit left incomplete")
				return
			}
			if !ok {
				collector.AddErrors(ErrorRecord{
					SourceFile: u.Filename,
					Attempt:    res.Attempts,
					Kind:       KindValidationRejected,
					Message:    reason,
				})
				logger.Warn("candidate failed validation", zap.String("title", cand.Title))
				continue
			}
		}

		Enrich(cand)
		f := collector.Accept(cand, SourceReference{Tool: u.Filename, RawOutput: excerpt}, accepted)
		accepted++
		logger.Info("finding accepted",
			zap.String("id", f.ID),
			zap.String("severity", f.Severity),
			zap.String("title", f.Title),
			zap.Float64("confidence", f.ConfidenceScore))
	}

	if accepted == 0 {
		logger.Info("no vulnerabilities detected")
	}
	collector.MarkProcessed(u.Filename)
}

// cancelled records a unit the run stopped short of finishing. The unit is
// not marked processed.
func cancelled(file string, attempt int, when string) ErrorRecord {
	return ErrorRecord{
		SourceFile: file,
		Attempt:    attempt,
		Kind:       KindTransport,
		Message:    "run cancelled " + when,
	}
}

func (p *Pipeline) maxInputChars() int {
	if p.MaxInputChars > 0 {
		return p.MaxInputChars
	}
	return DefaultMaxInputChars
}

func (p *Pipeline) excerptChars() int {
	if p.ExcerptChars > 0 {
		return p.ExcerptChars
	}
	return DefaultExcerptChars
}

// truncateRunes keeps at most n characters of s without splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
