package dataset

import "sync"

// Table is the row arena owned by a source adapter. Rows are addressed by
// their position; callers never hold live row pointers, they read copies and
// write through the index.
type Table struct {
	mu      sync.RWMutex
	headers []string
	rows    []*Row
}

// NewTable returns an empty table whose headers are the reserved fields.
func NewTable() *Table {
	return &Table{headers: ReservedHeaders()}
}

// Reset drops every row and restores the canonical reserved headers.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = nil
	t.headers = ReservedHeaders()
}

// Replace swaps in a freshly loaded row set. headers is the full header list.
func (t *Table) Replace(headers []string, rows []*Row) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.headers = append([]string(nil), headers...)
	t.rows = rows
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Headers returns a copy of the header list.
func (t *Table) Headers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.headers))
	copy(out, t.headers)
	return out
}

// Row returns a copy of the row at i.
func (t *Table) Row(i int) (*Row, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.rows) {
		return nil, false
	}
	return t.rows[i].Clone(), true
}

// Rows returns copies of all rows in order.
func (t *Table) Rows() []*Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out
}

// Value returns the value at (i, key) without copying the row.
func (t *Table) Value(i int, key string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.rows) {
		return nil, false
	}
	return t.rows[i].Get(key)
}

// Update applies fields to the row at i. It returns false when i is out of
// range and leaves the table untouched.
func (t *Table) Update(i int, fields map[string]string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.rows) {
		return false
	}
	r := t.rows[i]
	// Reserved fields first so their order in a fresh row matches the headers.
	for _, k := range ReservedHeaders() {
		if v, ok := fields[k]; ok {
			r.Set(k, v)
		}
	}
	for k, v := range fields {
		if !IsReserved(k) {
			r.Set(k, v)
		}
	}
	return true
}

// Statuses returns the reserved status field of every row.
func (t *Table) Statuses() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Status()
	}
	return out
}
