package logging

import (
	"log/slog"
	"sort"
	"time"
)

// Severity of a user-facing log entry.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Entry is one user-facing log record, published on the event bus next to
// the row status it explains. Details holds the raw facts (error name, HTTP
// status, URL, 1-based row number).
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Severity  Severity       `json:"severity"`
	Msg       string         `json:"msg"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewEntry stamps an entry with the current UTC time.
func NewEntry(sev Severity, msg string, details map[string]any) Entry {
	return Entry{
		Timestamp: time.Now().UTC(),
		Severity:  sev,
		Msg:       msg,
		Details:   details,
	}
}

// Clock returns the entry time as HH:MM:SS.
func (e Entry) Clock() string {
	return e.Timestamp.Format(time.TimeOnly)
}

// Level maps the severity onto slog.
func (e Entry) Level() slog.Level {
	switch e.Severity {
	case SeverityError:
		return slog.LevelError
	case SeverityWarn:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Attrs returns the details as slog attributes in key order.
func (e Entry) Attrs() []any {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.Any(k, e.Details[k]))
	}
	return out
}
