package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/user/fricadelle/pkg/adk"
	"github.com/user/fricadelle/pkg/config"
)

// The config subcommands that write to disk start from config.LoadFile, so
// environment overrides and one-off flags such as --debug are never persisted.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration (providers, models, keys)",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key <provider>",
	Short: "Set the API key or base URL of a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := strings.ToLower(args[0])
		key, _ := cmd.Flags().GetString("key")
		baseURL, _ := cmd.Flags().GetString("base-url")

		if key == "" && baseURL == "" {
			return fmt.Errorf("one of --key or --base-url is required")
		}

		stored, err := config.LoadFile(cfgFile)
		if err != nil {
			return err
		}
		if key != "" {
			stored.SetAPIKey(provider, key)
		}
		if baseURL != "" {
			stored.SetBaseURL(provider, baseURL)
		}
		if err := config.SaveConfig(cfgFile, stored); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Settings saved for provider: %s\n", provider)
		return nil
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model",
	Short: "Set the active provider and model",
	RunE: func(cmd *cobra.Command, args []string) error {
		stored, err := config.LoadFile(cfgFile)
		if err != nil {
			return err
		}
		if f := cmd.Flags().Lookup("provider"); f.Changed {
			stored.SelectedProvider = strings.ToLower(f.Value.String())
		}
		if f := cmd.Flags().Lookup("model"); f.Changed {
			stored.SelectedModel = f.Value.String()
		}
		if err := stored.Validate(); err != nil {
			return err
		}
		if err := config.SaveConfig(cfgFile, stored); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Active configuration updated: Provider=%s, Model=%s\n", stored.SelectedProvider, stored.SelectedModel)
		return nil
	},
}

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List available models from the configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		if c, ok := svc.(interface{ Close() }); ok {
			defer c.Close()
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Fetching models for %s...\n", cfg.SelectedProvider)
		models, err := listModels(cmd, svc)
		if err != nil {
			return fmt.Errorf("failed to fetch models: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\nAvailable Models (%s):\n", cfg.SelectedProvider)
		for _, m := range models {
			mark := " "
			if m == cfg.SelectedModel {
				mark = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, m)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with API keys masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		masked := *cfg
		masked.Providers = make(map[string]config.ProviderConfig, len(cfg.Providers))
		for name, p := range cfg.Providers {
			p.APIKey = mask(p.APIKey)
			masked.Providers[name] = p
		}

		data, err := yaml.Marshal(&masked)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func listModels(cmd *cobra.Command, svc adk.InferenceService) ([]string, error) {
	lister, ok := svc.(adk.ModelLister)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support listing models", cfg.SelectedProvider)
	}
	return lister.ListModels(cmd.Context())
}

func mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-4)
}

func init() {
	setKeyCmd.Flags().StringP("key", "k", "", "API Key")
	setKeyCmd.Flags().String("base-url", "", "Endpoint override (Ollama host, OpenAI-compatible server)")

	setModelCmd.Flags().StringP("provider", "p", "", "Provider (ollama, openai, gemini)")
	setModelCmd.Flags().StringP("model", "m", "", "Model name")

	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(listModelsCmd)
	configCmd.AddCommand(showCmd)
	rootCmd.AddCommand(configCmd)
}
