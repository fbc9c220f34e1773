package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/fricadelle/pkg/adk"
	"github.com/user/fricadelle/pkg/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := bufio.NewScanner(os.Stdin)
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Welcome to the Fricadelle Setup Wizard")
		fmt.Fprintln(out, "--------------------------------------")

		fmt.Fprintln(out, "Step 1: Choose your inference provider")
		fmt.Fprintln(out, "1. Ollama (local)")
		fmt.Fprintln(out, "2. OpenAI (or compatible server)")
		fmt.Fprintln(out, "3. Gemini (Google)")
		fmt.Fprint(out, "Enter number or name > ")
		scanner.Scan()

		var provider string
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "1", "ollama":
			provider = "ollama"
		case "2", "openai":
			provider = "openai"
		case "3", "gemini":
			provider = "gemini"
		default:
			return fmt.Errorf("invalid provider choice")
		}

		var apiKey, baseURL string
		if provider != "ollama" {
			fmt.Fprintf(out, "\nStep 2: Enter API Key for %s\n> ", provider)
			scanner.Scan()
			apiKey = strings.TrimSpace(scanner.Text())
			if apiKey == "" {
				return fmt.Errorf("API key cannot be empty")
			}
		}
		if provider != "gemini" {
			fmt.Fprintf(out, "\nEndpoint for %s (leave empty for the default)\n> ", provider)
			scanner.Scan()
			baseURL = strings.TrimSpace(scanner.Text())
		}

		fmt.Fprintln(out, "\nStep 3: Fetching available models...")
		timeout := time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second
		svc, err := adk.NewService(cmd.Context(), provider, apiKey, baseURL, timeout)
		if err != nil {
			return fmt.Errorf("failed to initialize provider: %w", err)
		}
		if c, ok := svc.(interface{ Close() }); ok {
			defer c.Close()
		}

		var selectedModel string
		models, err := listModels(cmd, svc)
		if err != nil || len(models) == 0 {
			fmt.Fprintf(out, "Warning: could not fetch models: %v\n", err)
			fmt.Fprint(out, "Enter model name manually (e.g. 'llama3.2', 'gpt-4o-mini'):\n> ")
			scanner.Scan()
			selectedModel = strings.TrimSpace(scanner.Text())
		} else {
			fmt.Fprintf(out, "Retrieved %d models.\n", len(models))
			for i, m := range models {
				fmt.Fprintf(out, "%d. %s\n", i+1, m)
			}
			fmt.Fprint(out, "Select Model (number) > ")
			scanner.Scan()
			idx, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
			if err != nil || idx < 1 || idx > len(models) {
				fmt.Fprintln(out, "Invalid selection. Using first available model.")
				idx = 1
			}
			selectedModel = models[idx-1]
		}
		if selectedModel == "" {
			return fmt.Errorf("model name cannot be empty")
		}

		stored, err := config.LoadFile(cfgFile)
		if err != nil {
			return err
		}
		stored.SelectedProvider = provider
		stored.SelectedModel = selectedModel
		if apiKey != "" {
			stored.SetAPIKey(provider, apiKey)
		}
		if baseURL != "" {
			stored.SetBaseURL(provider, baseURL)
		}
		if err := config.SaveConfig(cfgFile, stored); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintln(out, "--------------------------------------")
		fmt.Fprintf(out, "Setup complete. Provider: %s, Model: %s\n", provider, selectedModel)
		fmt.Fprintln(out, "You can now run 'fricadelle analyze'")
		return nil
	},
}

func init() {
	configCmd.AddCommand(setupCmd)
}
