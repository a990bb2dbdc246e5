package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgnet/adapters/source"
	"imgnet/adapters/target"
	"imgnet/internal/dataset"
	"imgnet/internal/events"
	"imgnet/internal/format"
	"imgnet/internal/pipeline"
	"imgnet/internal/workspace"
)

var fetchFlags struct {
	column   string
	target   string
	noExport bool
	showRows int
	markdown bool
	progress bool
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <table.csv>",
	Short: "Fetch every image URL in a table and export the result",
	Long: `Loads a CSV table, fetches the image named in --column for every row
(one request at a time), writes the outcome onto each row and exports
the images with the annotated table.

Interrupting with Ctrl-C stops after the image in flight; rows fetched
so far are still exported.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.StringVar(&fetchFlags.column, "column", "", "Column holding the image URLs (required)")
	f.StringVar(&fetchFlags.target, "target", target.KindArchive, "Export target: zip, csv or bucket")
	f.BoolVar(&fetchFlags.noExport, "no-export", false, "Fetch only; skip the final export")
	f.IntVar(&fetchFlags.showRows, "rows", 0, "Print the first N rows after the batch")
	f.BoolVar(&fetchFlags.markdown, "markdown", false, "Print tables as Markdown")
	f.BoolVar(&fetchFlags.progress, "progress", false, "Print a line per processed row to stderr")

	_ = fetchCmd.MarkFlagRequired("column")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	mode := tableMode(fetchFlags.markdown)

	ws := workspace.New(workspace.Options{Config: currentConfig()})
	logs := collectLog(ws.Bus())
	offExport := ws.Bus().On(events.ExportDone, func(ev events.Event) {
		if e, ok := ev.Payload.(pipeline.ExportEvent); ok {
			fmt.Fprintln(out, exportLine(e))
		}
	})
	defer offExport()
	if fetchFlags.progress {
		defer printProgress(ws.Bus(), cmd.ErrOrStderr())()
	}

	if _, err := ws.LoadCSV(ctx, args[0]); err != nil {
		return err
	}

	sum, err := runInterruptible(ctx, ws, source.KindRemote, fetchFlags.column, fetchFlags.target)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	fmt.Fprintln(out, summaryLine(sum))

	if !fetchFlags.noExport {
		if err := ws.Export(ctx, source.KindRemote, fetchFlags.target); err != nil {
			return err
		}
	}

	fmt.Fprintln(out)
	if err := printReport(out, mode, "Fetch", ws, source.KindRemote, logs.Entries()); err != nil {
		return err
	}
	if fetchFlags.showRows > 0 {
		src, err := ws.GetSource(source.KindRemote)
		if err != nil {
			return err
		}
		cols := []string{fetchFlags.column, dataset.FieldStatus, dataset.FieldFilename, dataset.FieldThumbnail}
		fmt.Fprintln(out)
		fmt.Fprintln(out, format.RowsTable(mode, cols, src.Rows(), 48, fetchFlags.showRows))
	}
	return nil
}
