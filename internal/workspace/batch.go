package workspace

import (
	"context"
	"sync"

	"imgnet/internal/pipeline"
)

// Batch is a handle on a batch started with StartBatch.
type Batch struct {
	done chan struct{}

	mu  sync.Mutex
	sum pipeline.Summary
	err error
}

// Done is closed when the batch has finished.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Wait blocks until the batch finishes or ctx is done.
func (b *Batch) Wait(ctx context.Context) (pipeline.Summary, error) {
	select {
	case <-b.done:
		return b.Result()
	case <-ctx.Done():
		return pipeline.Summary{}, ctx.Err()
	}
}

// Result returns the outcome so far; it is final once Done is closed.
func (b *Batch) Result() (pipeline.Summary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sum, b.err
}

// RunBatch fetches every row of sourceKind, seeding from column, into the
// target of targetKind, and blocks until the batch ends.
func (w *Workspace) RunBatch(ctx context.Context, sourceKind, column, targetKind string) (pipeline.Summary, error) {
	src, tgt, tasks, err := w.prepare(sourceKind, column, targetKind)
	if err != nil {
		return pipeline.Summary{}, err
	}
	return w.engine.ProcessBatch(ctx, tasks, src, tgt)
}

// StartBatch is RunBatch in the background. The batch outlives ctx's
// cancellation; use Stop to end it early. It fails at once when a batch is
// already running.
func (w *Workspace) StartBatch(ctx context.Context, sourceKind, column, targetKind string) (*Batch, error) {
	src, tgt, tasks, err := w.prepare(sourceKind, column, targetKind)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.batch != nil {
		select {
		case <-w.batch.done:
		default:
			w.mu.Unlock()
			return nil, pipeline.ErrBatchRunning
		}
	}
	b := &Batch{done: make(chan struct{})}
	w.batch = b
	w.mu.Unlock()

	bctx := context.WithoutCancel(ctx)
	go func() {
		defer close(b.done)
		sum, err := w.engine.ProcessBatch(bctx, tasks, src, tgt)
		b.mu.Lock()
		b.sum, b.err = sum, err
		b.mu.Unlock()
	}()
	return b, nil
}

// LastBatch returns the most recent background batch, or nil.
func (w *Workspace) LastBatch() *Batch {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.batch
}

func (w *Workspace) prepare(sourceKind, column, targetKind string) (pipeline.Source, pipeline.Target, []pipeline.NodeTask, error) {
	if w.engine.State() == pipeline.StateRunning {
		return nil, nil, nil, pipeline.ErrBatchRunning
	}
	src, err := w.GetSource(sourceKind)
	if err != nil {
		return nil, nil, nil, err
	}
	tgt, err := w.GetTarget(targetKind)
	if err != nil {
		return nil, nil, nil, err
	}
	tasks, err := w.SeedNodes(sourceKind, column)
	if err != nil {
		return nil, nil, nil, err
	}
	return src, tgt, tasks, nil
}
