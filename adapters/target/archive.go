package target

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"sync"

	"imgnet/internal/archive"
	"imgnet/internal/events"
	"imgnet/internal/logging"
	"imgnet/internal/output"
	"imgnet/internal/pipeline"
)

var errNoArchive = errors.New("no archive created yet")

// Archive is the "zip" target: every fetched image goes into images/ and the
// export adds images.csv, closes the bundle and saves it.
type Archive struct {
	bus    events.Bus
	saver  output.Saver
	name   string
	logger *slog.Logger

	mu  sync.Mutex
	arc *archive.Archive
}

// NewArchive returns a zip target that saves its bundle as name through
// saver. An empty name uses imgnetmaker.zip.
func NewArchive(bus events.Bus, saver output.Saver, name string) *Archive {
	if bus == nil {
		bus = events.Discard{}
	}
	if name == "" {
		name = DefaultZipName
	}
	return &Archive{bus: bus, saver: saver, name: name, logger: logging.New("target.zip")}
}

func (a *Archive) Kind() string { return KindArchive }

// Init starts a fresh bundle, discarding any unfinished one.
func (a *Archive) Init(context.Context) error {
	arc := archive.New()
	if err := arc.AddFolder(ImageFolder); err != nil {
		return a.fail("init", err)
	}
	a.mu.Lock()
	a.arc = arc
	a.mu.Unlock()
	return nil
}

// Add stores the result's bytes under images/<filename>. Results without
// bytes or filename are ignored.
func (a *Archive) Add(_ context.Context, res pipeline.NodeResult) error {
	if !res.HasArtifact() {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.arc == nil {
		return a.fail("add", errNoArchive)
	}
	if err := a.arc.AddFile(path.Join(ImageFolder, res.Filename), res.Bytes); err != nil {
		return a.fail("add", err)
	}
	return nil
}

// Export writes the table into the bundle, finalizes it and saves it. The
// bundle is consumed; a second export needs a new Init.
func (a *Archive) Export(ctx context.Context, src pipeline.RowSource) error {
	a.mu.Lock()
	arc := a.arc
	a.arc = nil
	a.mu.Unlock()
	if arc == nil {
		return a.fail("export", errNoArchive)
	}

	table, rows, err := renderTable(src)
	if err != nil {
		return a.fail("export", err)
	}
	if err := arc.AddFile(TableName, table); err != nil {
		return a.fail("export", err)
	}
	data, err := arc.Finalize()
	if err != nil {
		return a.fail("export", err)
	}
	if err := a.saver.Save(ctx, data, a.name); err != nil {
		return a.fail("save", err)
	}

	a.logger.Info("bundle saved", "name", a.name, "rows", rows, "bytes", len(data))
	a.bus.Emit(events.ExportDone, pipeline.ExportEvent{Target: KindArchive, Location: a.name, Rows: rows, Bytes: len(data)})
	return nil
}

// Clear drops the bundle in progress.
func (a *Archive) Clear() {
	a.mu.Lock()
	a.arc = nil
	a.mu.Unlock()
}

func (a *Archive) fail(op string, err error) error {
	return &pipeline.ExportError{Target: KindArchive, Op: op, Err: err}
}
