// Package pipeline is the batch core: it turns a list of seeds into fetched
// artifacts, one item at a time, routing each outcome to a source adapter
// (row bookkeeping) and a target adapter (artifact accumulation).
package pipeline

import (
	"context"

	"imgnet/internal/dataset"
)

// Status is the outcome of one task.
type Status string

const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusFail    Status = "fail"
)

// NodeTask is one unit of work. Index is the row's position in the source's
// row store and the only join key between task, row update and target.
type NodeTask struct {
	Seed  any
	Index int
}

// Artifact is what a source produces for one seed. Bytes and Filename are
// empty when the artifact already lives locally.
type Artifact struct {
	Bytes     []byte
	Filename  string
	Thumbnail string
}

// NodeResult is the outcome of processing one NodeTask.
type NodeResult struct {
	Index  int
	Seed   any
	Status Status
	Artifact
	Err error
}

// HasArtifact reports whether the result carries bytes to store.
func (r NodeResult) HasArtifact() bool {
	return len(r.Bytes) > 0 && r.Filename != ""
}

// RowSource is the read side of a source adapter.
type RowSource interface {
	Rows() []*dataset.Row
	Headers() []string
}

// Source owns the row table and produces one artifact per seed.
type Source interface {
	RowSource
	Kind() string
	Fetch(ctx context.Context, task NodeTask) (Artifact, error)
	Update(result NodeResult) error
	Clear()
}

// Target accumulates artifacts and exports the final bundle.
type Target interface {
	Kind() string
	Init(ctx context.Context) error
	Add(ctx context.Context, result NodeResult) error
	Export(ctx context.Context, src RowSource) error
	Clear()
}

// RowEvent is the payload of row:updated.
type RowEvent struct {
	Source string `json:"source"`
	Index  int    `json:"index"`
	Status string `json:"status"`
}

// ExportEvent is the payload of export:done. Location is the saved file name
// or object key.
type ExportEvent struct {
	Target   string `json:"target"`
	Location string `json:"location"`
	Rows     int    `json:"rows"`
	Bytes    int    `json:"bytes"`
}
