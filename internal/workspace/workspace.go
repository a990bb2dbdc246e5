// Package workspace is the application controller: it owns the event bus,
// the batch engine and one memoized adapter per kind, and exposes the
// load, fetch, stop, export and reset operations the CLI and MCP server use.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"sync"

	"imgnet/adapters/source"
	"imgnet/adapters/target"
	"imgnet/internal/config"
	"imgnet/internal/events"
	"imgnet/internal/logging"
	"imgnet/internal/output"
	"imgnet/internal/pipeline"
)

// Options wires a Workspace. Zero fields get defaults.
type Options struct {
	Bus    events.Bus
	Config *config.Config
	// Saver receives zip and csv exports; defaults to the output dir.
	Saver output.Saver
	// Store backs the bucket target; defaults to an S3 client built from
	// the bucket config.
	Store target.ObjectStore
	// Transport is used by the remote source's HTTP client.
	Transport http.RoundTripper
}

// Workspace ties sources, targets and the engine together.
type Workspace struct {
	bus       events.Bus
	cfg       *config.Config
	saver     output.Saver
	store     target.ObjectStore
	transport http.RoundTripper
	engine    *pipeline.Engine
	logger    *slog.Logger

	mu      sync.Mutex
	sources map[string]pipeline.Source
	targets map[string]pipeline.Target
	batch   *Batch
}

// New returns a workspace with no adapters created yet.
func New(opts Options) *Workspace {
	if opts.Bus == nil {
		opts.Bus = events.NewLocal()
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Saver == nil {
		opts.Saver = output.Dir{Path: opts.Config.Output.Dir}
	}
	return &Workspace{
		bus:       opts.Bus,
		cfg:       opts.Config,
		saver:     opts.Saver,
		store:     opts.Store,
		transport: opts.Transport,
		engine:    pipeline.NewEngine(opts.Bus),
		logger:    logging.New("workspace"),
		sources:   make(map[string]pipeline.Source),
		targets:   make(map[string]pipeline.Target),
	}
}

// Bus returns the workspace's event bus.
func (w *Workspace) Bus() events.Bus { return w.bus }

// Engine returns the batch engine.
func (w *Workspace) Engine() *pipeline.Engine { return w.engine }

// GetSource returns the source of kind, creating it on first use.
func (w *Workspace) GetSource(kind string) (pipeline.Source, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.sources[kind]; ok {
		return s, nil
	}
	var s pipeline.Source
	switch kind {
	case source.KindRemote:
		f := w.cfg.Fetch
		s = source.NewRemote(w.bus, source.RemoteConfig{
			Timeout:       f.Timeout.Std(),
			RateLimit:     f.RateLimit,
			Burst:         f.Burst,
			UserAgent:     f.UserAgent,
			ThumbnailSize: f.ThumbnailSize,
			Extension:     f.DefaultExtension,
			MaxBytes:      f.MaxBytes,
			Transport:     w.transport,
		})
	case source.KindFolder:
		s = source.NewFolder(w.bus, nil, w.cfg.Fetch.ThumbnailSize)
	default:
		return nil, fmt.Errorf("%w: source %q", pipeline.ErrUnknownKind, kind)
	}
	w.sources[kind] = s
	return s, nil
}

// GetTarget returns the target of kind, creating it on first use.
func (w *Workspace) GetTarget(kind string) (pipeline.Target, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.targets[kind]; ok {
		return t, nil
	}
	var t pipeline.Target
	switch kind {
	case target.KindArchive:
		t = target.NewArchive(w.bus, w.saver, w.cfg.Output.ArchiveName)
	case target.KindFlat:
		t = target.NewFlat(w.bus, w.saver, w.cfg.Output.CSVName)
	case target.KindBucket:
		store, err := w.objectStore()
		if err != nil {
			return nil, err
		}
		t = target.NewBucket(w.bus, store, w.cfg.Bucket.Bucket, w.cfg.Bucket.Prefix)
	default:
		return nil, fmt.Errorf("%w: target %q", pipeline.ErrUnknownKind, kind)
	}
	w.targets[kind] = t
	return t, nil
}

func (w *Workspace) objectStore() (target.ObjectStore, error) {
	if w.store != nil {
		return w.store, nil
	}
	b := w.cfg.Bucket
	if !b.Configured() {
		return nil, errors.New("bucket target needs bucket.endpoint and bucket.bucket")
	}
	store, err := target.NewS3Store(target.S3Config{
		Endpoint:        b.Endpoint,
		Region:          b.Region,
		UseSSL:          b.UseSSL,
		AccessKeyID:     b.AccessKeyID,
		SecretAccessKey: b.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	w.store = store
	return store, nil
}

// ClearAll empties every adapter created so far and forgets them, so the
// next Get call builds fresh ones. It refuses while a batch runs.
func (w *Workspace) ClearAll() error {
	if err := w.idle(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.sources {
		s.Clear()
	}
	for _, t := range w.targets {
		t.Clear()
	}
	w.sources = make(map[string]pipeline.Source)
	w.targets = make(map[string]pipeline.Target)
	return nil
}

// Reset drops all loaded rows and adapters. It refuses while a batch runs.
func (w *Workspace) Reset() error {
	if err := w.ClearAll(); err != nil {
		return err
	}
	w.logger.Info("workspace reset")
	return nil
}

// idle guards operations that replace rows: results of a running batch are
// written back by index and would land on the wrong rows.
func (w *Workspace) idle() error {
	if w.engine.State() == pipeline.StateRunning {
		return pipeline.ErrBatchRunning
	}
	return nil
}

// LoadCSV reads the table at path into the "csv" source. It refuses while a
// batch runs.
func (w *Workspace) LoadCSV(ctx context.Context, path string) ([]string, error) {
	if err := w.idle(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, w.report("load", fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	src, err := w.GetSource(source.KindRemote)
	if err != nil {
		return nil, err
	}
	headers, err := src.(*source.Remote).Load(ctx, f)
	if err != nil {
		return nil, w.report("load", err)
	}
	return headers, nil
}

// LoadFolder scans dir for image files into the "folder" source. It refuses
// while a batch runs.
func (w *Workspace) LoadFolder(ctx context.Context, dir string) ([]string, error) {
	if err := w.idle(); err != nil {
		return nil, err
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", dir)
		}
		return nil, w.report("load", err)
	}
	files, err := source.ScanDir(os.DirFS(dir), ".")
	if err != nil {
		return nil, w.report("load", err)
	}
	src, err := w.GetSource(source.KindFolder)
	if err != nil {
		return nil, err
	}
	headers, err := src.(*source.Folder).Load(ctx, files)
	if err != nil {
		return nil, w.report("load", err)
	}
	return headers, nil
}

// SeedNodes returns one task per row of the source of kind.
func (w *Workspace) SeedNodes(kind, column string) ([]pipeline.NodeTask, error) {
	src, err := w.GetSource(kind)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(src.Headers(), column) {
		w.logger.Warn("seed column not in table; every seed will be empty", "source", kind, "column", column)
	}
	return pipeline.SeedNodes(src, column), nil
}

// Export has the target of targetKind export the rows of sourceKind.
// Failures are published as log entries and returned.
func (w *Workspace) Export(ctx context.Context, sourceKind, targetKind string) error {
	src, err := w.GetSource(sourceKind)
	if err != nil {
		return err
	}
	tgt, err := w.GetTarget(targetKind)
	if err != nil {
		return err
	}
	if err := tgt.Export(ctx, src); err != nil {
		return w.report("export", err)
	}
	return nil
}

// Stats summarizes the rows of the source of kind.
func (w *Workspace) Stats(kind string) (pipeline.Stats, error) {
	src, err := w.GetSource(kind)
	if err != nil {
		return pipeline.Stats{}, err
	}
	return pipeline.ComputeStats(src), nil
}

// Stop asks the running batch to halt before its next item.
func (w *Workspace) Stop() { w.engine.Stop() }

// report publishes err as a user-facing log entry and returns it.
func (w *Workspace) report(op string, err error) error {
	kind := "Error"
	var (
		parseErr *pipeline.ParseError
		expErr   *pipeline.ExportError
	)
	details := map[string]any{"operation": op, "originalMessage": err.Error()}
	switch {
	case errors.As(err, &parseErr):
		kind = "ParseError"
		if parseErr.Line > 0 {
			details["line"] = parseErr.Line
		}
	case errors.As(err, &expErr):
		kind = "ExportError"
		details["target"] = expErr.Target
	}
	details["errorType"] = kind
	details["name"] = pipeline.ErrorName(err)

	entry := logging.NewEntry(logging.SeverityError, kind+": "+err.Error(), details)
	w.logger.Log(context.Background(), entry.Level(), entry.Msg, entry.Attrs()...)
	w.bus.Emit(events.LogAdd, entry)
	return err
}
