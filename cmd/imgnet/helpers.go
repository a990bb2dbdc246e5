package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"imgnet/internal/config"
	"imgnet/internal/display"
	"imgnet/internal/events"
	"imgnet/internal/format"
	"imgnet/internal/logging"
	"imgnet/internal/pipeline"
	"imgnet/internal/workspace"
)

func tableMode(markdown bool) format.Mode {
	if markdown {
		return format.Markdown
	}
	return format.ASCII
}

func currentConfig() *config.Config {
	if appConfig == nil {
		return config.Default()
	}
	return appConfig
}

// logCollector keeps the user-facing log entries published during a run.
type logCollector struct {
	mu      sync.Mutex
	entries []logging.Entry
	off     func()
}

func collectLog(bus events.Bus) *logCollector {
	c := &logCollector{}
	c.off = bus.On(events.LogAdd, func(ev events.Event) {
		if e, ok := ev.Payload.(logging.Entry); ok {
			c.mu.Lock()
			c.entries = append(c.entries, e)
			c.mu.Unlock()
		}
	})
	return c
}

func (c *logCollector) Entries() []logging.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]logging.Entry(nil), c.entries...)
}

// printProgress writes one line per processed item to w until off is called.
func printProgress(bus events.Bus, w io.Writer) (off func()) {
	return bus.On(events.Progress, func(ev events.Event) {
		if p, ok := ev.Payload.(pipeline.ProgressEvent); ok {
			fmt.Fprintf(w, "[%d/%d]\n", p.Current, p.Total)
		}
	})
}

// runInterruptible runs a batch and turns SIGINT/SIGTERM into a cooperative
// stop: the item in flight completes and the rows processed so far are kept.
func runInterruptible(ctx context.Context, ws *workspace.Workspace, sourceKind, column, targetKind string) (pipeline.Summary, error) {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runCtx, finished := context.WithCancel(context.Background())

	var sum pipeline.Summary
	g := new(errgroup.Group)
	g.Go(func() error {
		defer finished()
		var err error
		sum, err = ws.RunBatch(context.WithoutCancel(ctx), sourceKind, column, targetKind)
		return err
	})
	g.Go(func() error {
		select {
		case <-sigCtx.Done():
			logging.New("cli").Warn("interrupted, stopping after the current item")
			ws.Stop()
		case <-runCtx.Done():
		}
		return nil
	})
	err := g.Wait()
	return sum, err
}

// printReport writes the stats, the failure breakdown and the error log.
func printReport(w io.Writer, m format.Mode, title string, ws *workspace.Workspace, kind string, entries []logging.Entry) error {
	st, err := ws.Stats(kind)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, format.StatsTable(m, title, st))
	if st.Failed > 0 {
		src, err := ws.GetSource(kind)
		if err != nil {
			return err
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, format.FailureCounts(m, src.Rows()))
	}
	if len(entries) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, format.LogTable(m, entries))
	}
	return nil
}

func summaryLine(sum pipeline.Summary) string {
	line := fmt.Sprintf("Processed %d of %d rows: %d fetched, %d failed, %d without seed",
		sum.Processed, sum.Total, sum.Succeeded, sum.Failed, sum.Empty)
	if sum.Stopped {
		line += " (stopped)"
	}
	return line
}

func exportLine(ev pipeline.ExportEvent) string {
	return fmt.Sprintf("Exported %d rows (%s) via %s to %s",
		ev.Rows, format.FmtBytes(ev.Bytes), display.TargetKind(ev.Target), ev.Location)
}
