package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/fricadelle/pkg/adk"
	"github.com/user/fricadelle/pkg/engine"
	"github.com/user/fricadelle/pkg/source"
)

var noValidation bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract, validate and enrich findings from a directory of scan results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if noValidation {
			cfg.Analysis.EnableValidation = false
		}

		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		if c, ok := svc.(interface{ Close() }); ok {
			defer c.Close()
		}
		limited := adk.NewRateLimited(svc, cfg.Analysis.RequestsPerSecond, cfg.Analysis.Burst)

		units, err := source.NewLoader(cfg.Analysis.ScansDir, logger).Load(ctx)
		if err != nil {
			return err
		}
		if len(units) == 0 {
			logger.Warn("no scan files found", zap.String("dir", cfg.Analysis.ScansDir))
		}

		p := &engine.Pipeline{
			Detector: &engine.Detector{
				Service:    limited,
				Model:      cfg.SelectedModel,
				Options:    engine.DetectionOptions(),
				MaxRetries: cfg.Analysis.MaxRetries,
				Logger:     logger,
			},
			Workers:       cfg.Analysis.Workers,
			MaxInputChars: cfg.Analysis.MaxInputChars,
			ExcerptChars:  cfg.Analysis.ExcerptChars,
			Logger:        logger,
		}
		if cfg.Analysis.EnableValidation {
			p.Corroborator = &engine.Corroborator{
				Service: limited,
				Model:   cfg.SelectedModel,
				Options: engine.ValidationOptions(),
				Logger:  logger,
			}
		}

		runID := uuid.NewString()
		logger.Info("starting analysis",
			zap.String("run_id", runID),
			zap.Int("units", len(units)),
			zap.Bool("validation", cfg.Analysis.EnableValidation))

		agg := p.Run(ctx, units)

		bundle := engine.BuildBundle(engine.AuditMetadata{
			ClientName: cfg.Audit.ClientName,
			AuditDate:  cfg.Audit.AuditDate,
			AuditType:  cfg.Audit.AuditType,
			Scope:      cfg.Audit.Scope,
			AIModel:    cfg.SelectedModel,
			RunID:      runID,
		}, agg, time.Now())

		if err := engine.SaveBundle(cfg.Analysis.Output, bundle); err != nil {
			return err
		}
		logger.Info("bundle written", zap.String("path", cfg.Analysis.Output), zap.Int("findings", len(bundle.Findings)))

		fmt.Fprint(cmd.OutOrStdout(), engine.TextSummary(bundle))
		fmt.Fprintf(cmd.OutOrStdout(), "Findings saved: %s\n", cfg.Analysis.Output)
		return nil
	},
}

// newService builds the inference backend for the selected provider.
func newService(cmd *cobra.Command) (adk.InferenceService, error) {
	provider := cfg.SelectedProvider
	timeout := time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second

	svc, err := adk.NewService(cmd.Context(), provider, cfg.GetAPIKey(provider), cfg.GetBaseURL(provider), timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider %s: %w", provider, err)
	}
	return svc, nil
}

func init() {
	analyzeCmd.Flags().StringP("scans-dir", "s", "", "Directory holding scan results")
	analyzeCmd.Flags().StringP("output", "o", "", "Path of the findings bundle")
	analyzeCmd.Flags().StringP("provider", "p", "", "Provider (ollama, openai, gemini)")
	analyzeCmd.Flags().StringP("model", "m", "", "Model name")
	analyzeCmd.Flags().Int("workers", 0, "Number of files analyzed concurrently")
	analyzeCmd.Flags().Int("max-retries", 0, "Detection attempts per file")
	analyzeCmd.Flags().Float64("rps", 0, "Inference requests per second (0 means unlimited)")
	analyzeCmd.Flags().BoolVar(&noValidation, "no-validation", false, "Skip the second-opinion validation pass")

	rootCmd.AddCommand(analyzeCmd)
}
