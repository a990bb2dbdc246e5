// Package target implements the pipeline's target adapters: a zip bundle of
// images plus the table ("zip"), the table alone ("csv") and an S3-compatible
// bucket ("bucket").
package target

import (
	"fmt"

	"imgnet/internal/pipeline"
	"imgnet/internal/tabular"
)

// Registry kinds.
const (
	KindArchive = "zip"
	KindFlat    = "csv"
	KindBucket  = "bucket"
)

// Names used inside every bundle and for the saved exports.
const (
	ImageFolder     = "images"
	TableName       = "images.csv"
	DefaultZipName  = "imgnetmaker.zip"
	DefaultFlatName = "imgnetmaker.csv"
)

// renderTable serializes src with its own header list. It returns the bytes
// and the number of data rows.
func renderTable(src pipeline.RowSource) ([]byte, int, error) {
	headers := src.Headers()
	rows := src.Rows()
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = r.Values(headers)
	}
	data, err := tabular.Serialize(headers, records)
	if err != nil {
		return nil, 0, fmt.Errorf("serialize table: %w", err)
	}
	return data, len(rows), nil
}
