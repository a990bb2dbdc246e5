package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgnet/adapters/source"
	"imgnet/internal/workspace"
)

var statsFlags struct {
	markdown bool
}

var statsCmd = &cobra.Command{
	Use:   "stats <exported.csv>",
	Short: "Summarize the row outcomes recorded in an exported table",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsFlags.markdown, "markdown", false, "Print tables as Markdown")
}

func runStats(cmd *cobra.Command, args []string) error {
	ws := workspace.New(workspace.Options{Config: currentConfig()})
	if _, err := ws.LoadCSV(cmd.Context(), args[0]); err != nil {
		return err
	}
	return printReport(cmd.OutOrStdout(), tableMode(statsFlags.markdown), fmt.Sprintf("Stats: %s", args[0]), ws, source.KindRemote, nil)
}
