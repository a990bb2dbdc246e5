package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"imgnet/internal/events"
	"imgnet/internal/logging"
)

// State of the engine.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// BatchState is a snapshot of the engine's bookkeeping.
type BatchState struct {
	State         State  `json:"state"`
	BatchID       string `json:"batch_id,omitempty"`
	StopRequested bool   `json:"stop_requested"`
	Processed     int    `json:"processed"`
	Total         int    `json:"total"`
}

// BatchEvent is the payload of batch:start and batch:finish. Source and
// Target name the adapter kinds so listeners can tell batches apart.
type BatchEvent struct {
	BatchID   string `json:"batch_id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Stopped   bool   `json:"stopped,omitempty"`
	Err       string `json:"error,omitempty"`
}

// ProgressEvent is the payload of progress:step.
type ProgressEvent struct {
	BatchID string `json:"batch_id"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// Summary is returned by ProcessBatch.
type Summary struct {
	BatchID   string `json:"batch_id"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Empty     int    `json:"empty"`
	Stopped   bool   `json:"stopped"`
}

// Engine runs batches strictly sequentially: task i is fetched, recorded on
// its row, handed to the target and reported before task i+1 starts.
type Engine struct {
	bus    events.Bus
	logger *slog.Logger

	stop atomic.Bool

	mu        sync.Mutex
	state     State
	batchID   string
	processed int
	total     int
}

// NewEngine returns an idle engine publishing on bus.
func NewEngine(bus events.Bus) *Engine {
	if bus == nil {
		bus = events.Discard{}
	}
	return &Engine{
		bus:    bus,
		logger: logging.New("engine"),
		state:  StateIdle,
	}
}

// Stop asks a running batch to halt before its next item. The item in
// flight completes. It is a no-op while idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		e.stop.Store(true)
	}
}

// State returns the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns the current bookkeeping.
func (e *Engine) Snapshot() BatchState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return BatchState{
		State:         e.state,
		BatchID:       e.batchID,
		StopRequested: e.stop.Load(),
		Processed:     e.processed,
		Total:         e.total,
	}
}

// ProcessBatch runs tasks against src and tgt. Per-item fetch failures are
// recorded on the row and never returned. A stop request or a cancelled
// context ends the loop early with Summary.Stopped set. Index errors and
// errors outside the item taxonomy abort the batch and are returned;
// batch:finish is published on every path.
func (e *Engine) ProcessBatch(ctx context.Context, tasks []NodeTask, src Source, tgt Target) (Summary, error) {
	id, err := e.begin(len(tasks))
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{BatchID: id, Total: len(tasks)}
	ev := BatchEvent{BatchID: id, Source: src.Kind(), Target: tgt.Kind(), Total: len(tasks)}
	e.logger.Info("batch started", "batch_id", id, "source", ev.Source, "target", ev.Target, "total", ev.Total)
	e.bus.Emit(events.BatchStart, ev)

	var runErr error
	defer func() {
		ev.Processed = sum.Processed
		ev.Stopped = sum.Stopped
		if runErr != nil {
			ev.Err = runErr.Error()
			e.logger.Error("batch aborted", "batch_id", id, "processed", sum.Processed, "error", runErr)
		} else {
			e.logger.Info("batch finished", "batch_id", id, "processed", sum.Processed,
				"succeeded", sum.Succeeded, "failed", sum.Failed, "empty", sum.Empty, "stopped", sum.Stopped)
		}
		e.bus.Emit(events.BatchFinish, ev)
		e.end()
	}()

	if err := tgt.Init(ctx); err != nil {
		runErr = fmt.Errorf("init %s target: %w", tgt.Kind(), err)
		return sum, runErr
	}

	for _, task := range tasks {
		if e.stop.Load() || ctx.Err() != nil {
			sum.Stopped = true
			break
		}

		res, err := e.process(ctx, task, src, tgt)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				sum.Stopped = true
				break
			}
			runErr = err
			return sum, runErr
		}

		switch res.Status {
		case StatusSuccess:
			sum.Succeeded++
		case StatusEmpty:
			sum.Empty++
		case StatusFail:
			sum.Failed++
		}
		sum.Processed = e.step()
		e.bus.Emit(events.Progress, ProgressEvent{BatchID: id, Current: sum.Processed, Total: sum.Total})
	}

	return sum, nil
}

func (e *Engine) process(ctx context.Context, task NodeTask, src Source, tgt Target) (NodeResult, error) {
	res := NodeResult{Index: task.Index, Seed: task.Seed}

	if IsEmptySeed(task.Seed) {
		res.Status = StatusEmpty
		return res, e.record(ctx, res, src, tgt)
	}

	art, err := src.Fetch(ctx, task)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return res, err
		}
		itemErr, ok := AsItemError(err)
		if !ok {
			return res, fmt.Errorf("fetch row %d: %w", task.Index+1, err)
		}
		res.Status = StatusFail
		res.Err = err
		if err := src.Update(res); err != nil {
			return res, err
		}
		e.report(res, itemErr.Kind(), itemErr, map[string]any{
			"statusCode": itemErr.Code(),
			"statusText": itemErr.Text(),
			"url":        itemErr.URL(),
		})
		return res, nil
	}

	res.Status = StatusSuccess
	res.Artifact = art
	return res, e.record(ctx, res, src, tgt)
}

// record writes res to the row first and then hands it to the target. When
// the target refuses the artifact the row is rolled back to a failure so the
// table never claims an artifact the bundle does not hold.
func (e *Engine) record(ctx context.Context, res NodeResult, src Source, tgt Target) error {
	if err := src.Update(res); err != nil {
		return err
	}
	err := tgt.Add(ctx, res)
	if err == nil {
		return nil
	}
	var expErr *ExportError
	if !errors.As(err, &expErr) {
		return fmt.Errorf("add row %d to %s target: %w", res.Index+1, tgt.Kind(), err)
	}

	res.Status = StatusFail
	res.Err = err
	if err := src.Update(res); err != nil {
		return err
	}
	e.report(res, "ExportError", err, map[string]any{"target": expErr.Target})
	return nil
}

// report publishes the log entry for a failed item.
func (e *Engine) report(res NodeResult, kind string, err error, extra map[string]any) {
	details := map[string]any{
		"name":            ErrorName(err),
		"errorType":       kind,
		"originalMessage": err.Error(),
		"row":             res.Index + 1,
	}
	for k, v := range extra {
		details[k] = v
	}
	entry := logging.NewEntry(logging.SeverityError, kind+": "+err.Error(), details)
	e.logger.Log(context.Background(), entry.Level(), entry.Msg, entry.Attrs()...)
	e.bus.Emit(events.LogAdd, entry)
}

func (e *Engine) begin(total int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		return "", ErrBatchRunning
	}
	e.stop.Store(false)
	e.state = StateRunning
	e.batchID = uuid.NewString()
	e.processed = 0
	e.total = total
	return e.batchID, nil
}

func (e *Engine) step() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.processed++
	return e.processed
}

func (e *Engine) end() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateIdle
}

// RowStatus is the status text a source writes for res.
func RowStatus(res NodeResult) string {
	if res.Status != StatusFail {
		return string(res.Status)
	}
	if itemErr, ok := AsItemError(res.Err); ok {
		return StatusText(itemErr)
	}
	var expErr *ExportError
	if errors.As(res.Err, &expErr) {
		return "ExportError " + expErr.Target
	}
	if res.Err != nil {
		return res.Err.Error()
	}
	return string(StatusFail)
}
