package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/fricadelle/pkg/engine"
)

var diffCmd = &cobra.Command{
	Use:   "diff <baseline.json> <current.json>",
	Short: "Compare two findings bundles",
	Long:  "Lists the findings that appeared, disappeared or stayed between two runs.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseline, err := engine.LoadBundle(args[0])
		if err != nil {
			return err
		}
		current, err := engine.LoadBundle(args[1])
		if err != nil {
			return err
		}

		diff := engine.CompareBundles(baseline, current)
		fmt.Fprint(cmd.OutOrStdout(), engine.TextDiff(diff, filepath.Base(args[0])))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
