package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/user/fricadelle/pkg/config"
	"github.com/user/fricadelle/pkg/observability"
)

var (
	cfgFile   string
	DebugMode bool

	v      *viper.Viper
	cfg    *config.Config
	logger = zap.NewNop()
)

// flagKeys maps command flags onto config keys so flags win over the file
// and the environment.
var flagKeys = map[string]string{
	"scans-dir":   "analysis.scans_dir",
	"output":      "analysis.output",
	"workers":     "analysis.workers",
	"max-retries": "analysis.max_retries",
	"rps":         "analysis.requests_per_second",
	"provider":    "selected_provider",
	"model":       "selected_model",
}

var rootCmd = &cobra.Command{
	Use:   "fricadelle",
	Short: "LLM-assisted analysis of security scan artifacts",
	Long: `Fricadelle reads the raw output of security scanners, asks a language
model to extract vulnerabilities, validates and enriches them, and writes
a findings bundle ready for reporting.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		v, err = config.NewViper(cfgFile)
		if err != nil {
			return err
		}
		bindFlags(cmd.Flags())

		cfg, err = config.Load(v)
		if err != nil {
			return err
		}
		if DebugMode {
			cfg.Logger.Level = "debug"
		}
		logger = observability.NewLogger(cfg.Logger)
		logger.Debug("configuration loaded",
			zap.String("config", v.ConfigFileUsed()),
			zap.String("provider", cfg.SelectedProvider),
			zap.String("model", cfg.SelectedModel))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func bindFlags(flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// Execute runs the root command, cancelling its context on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ~/.fricadelle/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
}
