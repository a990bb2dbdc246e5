package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgnet/adapters/source"
	"imgnet/adapters/target"
	"imgnet/internal/dataset"
	"imgnet/internal/format"
	"imgnet/internal/workspace"
)

var scanFlags struct {
	target   string
	export   bool
	markdown bool
}

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Build previews for the image files in a folder",
	Long: `Scans a directory (hidden entries skipped) for image files, builds a
preview of each and prints the resulting table. With --export the
table is written through --target; the files themselves are not copied.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	f := scanCmd.Flags()
	f.StringVar(&scanFlags.target, "target", target.KindFlat, "Export target: zip or csv")
	f.BoolVar(&scanFlags.export, "export", false, "Export the table after scanning")
	f.BoolVar(&scanFlags.markdown, "markdown", false, "Print tables as Markdown")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	mode := tableMode(scanFlags.markdown)

	ws := workspace.New(workspace.Options{Config: currentConfig()})
	logs := collectLog(ws.Bus())

	if _, err := ws.LoadFolder(ctx, args[0]); err != nil {
		return err
	}
	sum, err := runInterruptible(ctx, ws, source.KindFolder, source.FieldFile, scanFlags.target)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	fmt.Fprintln(out, summaryLine(sum))

	src, err := ws.GetSource(source.KindFolder)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, format.RowsTable(mode, []string{dataset.FieldFilename, dataset.FieldStatus, dataset.FieldThumbnail}, src.Rows(), 48, 0))

	if scanFlags.export {
		if err := ws.Export(ctx, source.KindFolder, scanFlags.target); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nExported %d rows to %s\n", len(src.Rows()), currentConfig().Output.Dir)
	}
	if entries := logs.Entries(); len(entries) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, format.LogTable(mode, entries))
	}
	return nil
}
