package target

import (
	"context"
	"log/slog"

	"imgnet/internal/events"
	"imgnet/internal/logging"
	"imgnet/internal/output"
	"imgnet/internal/pipeline"
)

// Flat is the "csv" target: it keeps no artifacts and exports only the
// table, previews and statuses included.
type Flat struct {
	bus    events.Bus
	saver  output.Saver
	name   string
	logger *slog.Logger
}

// NewFlat returns a csv target that saves as name through saver. An empty
// name uses imgnetmaker.csv.
func NewFlat(bus events.Bus, saver output.Saver, name string) *Flat {
	if bus == nil {
		bus = events.Discard{}
	}
	if name == "" {
		name = DefaultFlatName
	}
	return &Flat{bus: bus, saver: saver, name: name, logger: logging.New("target.csv")}
}

func (f *Flat) Kind() string                                   { return KindFlat }
func (f *Flat) Init(context.Context) error                     { return nil }
func (f *Flat) Add(context.Context, pipeline.NodeResult) error { return nil }
func (f *Flat) Clear()                                         {}

// Export serializes src with its headers and saves the result.
func (f *Flat) Export(ctx context.Context, src pipeline.RowSource) error {
	data, rows, err := renderTable(src)
	if err != nil {
		return &pipeline.ExportError{Target: KindFlat, Op: "export", Err: err}
	}
	if err := f.saver.Save(ctx, data, f.name); err != nil {
		return &pipeline.ExportError{Target: KindFlat, Op: "save", Err: err}
	}
	f.logger.Info("table saved", "name", f.name, "rows", rows, "bytes", len(data))
	f.bus.Emit(events.ExportDone, pipeline.ExportEvent{Target: KindFlat, Location: f.name, Rows: rows, Bytes: len(data)})
	return nil
}
