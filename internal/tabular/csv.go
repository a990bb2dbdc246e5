// Package tabular parses and serializes the row tables the pipeline works
// on. The wire format is RFC 4180 CSV with a header record.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is the parsed form of a tabular file.
type Table struct {
	Headers []string
	Records [][]string
}

// Parse reads a header record followed by data records. Blank lines are
// skipped, short records are allowed (missing cells become ""), and a UTF-8
// BOM on the first header is dropped.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LineError{Line: 1, Err: errors.New("missing header record")}
	}
	if err != nil {
		return nil, lineErr(err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}
	if err := checkHeaders(headers); err != nil {
		return nil, err
	}

	t := &Table{Headers: headers}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, lineErr(err)
		}
		if len(rec) == 1 && rec[0] == "" {
			continue
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

func checkHeaders(headers []string) error {
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		if strings.TrimSpace(h) == "" {
			return &LineError{Line: 1, Err: fmt.Errorf("column %d has an empty name", i+1)}
		}
		if seen[h] {
			return &LineError{Line: 1, Err: fmt.Errorf("duplicate column %q", h)}
		}
		seen[h] = true
	}
	return nil
}

// LineError is a parse failure at a 1-based line.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *LineError) Unwrap() error { return e.Err }

func lineErr(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &LineError{Line: pe.Line, Err: pe.Err}
	}
	return err
}

// Serialize writes headers and one record per row. Each row is rendered
// against headers by the caller.
func Serialize(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write records: %w", err)
	}
	return buf.Bytes(), nil
}
