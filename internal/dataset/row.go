// Package dataset holds the working table of the pipeline: insertion-ordered
// rows addressed by integer index, plus the reserved fields the pipeline
// writes into every row.
package dataset

import "fmt"

// Reserved field names. The inm_ prefix keeps them apart from user columns.
const (
	ReservedPrefix = "inm_"

	FieldStatus    = ReservedPrefix + "status"
	FieldThumbnail = ReservedPrefix + "imgdataurl"
	FieldFilename  = ReservedPrefix + "filename"
)

// ReservedHeaders returns the canonical reserved header list in export order.
func ReservedHeaders() []string {
	return []string{FieldStatus, FieldThumbnail, FieldFilename}
}

// IsReserved reports whether name is one of the pipeline's reserved fields.
func IsReserved(name string) bool {
	switch name {
	case FieldStatus, FieldThumbnail, FieldFilename:
		return true
	}
	return false
}

// Row is one record of the working dataset. Values are strings or opaque
// handles (e.g. a local file). Key order is insertion order.
type Row struct {
	keys   []string
	values map[string]any
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]any)}
}

// RowFrom builds a row from parallel header/value slices. Missing trailing
// values become empty strings.
func RowFrom(headers []string, values []string) *Row {
	r := NewRow()
	for i, h := range headers {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		r.Set(h, v)
	}
	return r
}

// Set writes key, appending it to the key order on first use.
func (r *Row) Set(key string, value any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the raw value at key.
func (r *Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// String returns the value at key rendered as text. Missing keys and nil
// values yield "".
func (r *Row) String(key string) string {
	v, ok := r.values[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Keys returns the keys in insertion order.
func (r *Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r *Row) Len() int { return len(r.keys) }

// Clone returns a shallow copy; handle values are shared.
func (r *Row) Clone() *Row {
	c := &Row{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]any, len(r.values)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Values returns the row rendered against headers, one string per header.
func (r *Row) Values(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = r.String(h)
	}
	return out
}

// Status returns the reserved status field.
func (r *Row) Status() string { return r.String(FieldStatus) }
