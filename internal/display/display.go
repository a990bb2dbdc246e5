// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, markdown tables and logs.
// Keep raw codes for JSON fields, CSV cells and equality comparisons.
package display

import (
	"strconv"
	"strings"
)

// --- Row Statuses ---

var statuses = map[string]string{
	"":        "Pending",
	"success": "Fetched",
	"empty":   "No Seed",
	"fail":    "Failed",
}

// --- Error Kinds ---

var errorKinds = map[string]string{
	"NetworkError": "Network Error",
	"HTTPError":    "HTTP Error",
	"DecodeError":  "Unreadable Image",
	"ExportError":  "Export Failed",
	"IndexError":   "Row Mismatch",
	"ParseError":   "Unreadable Table",
}

// ErrorKind returns the human-readable name for an error class.
// Unknown kinds are returned as-is.
func ErrorKind(kind string) string {
	if name, ok := errorKinds[kind]; ok {
		return name
	}
	return kind
}

// Status humanizes a row status. Failure statuses ("HTTPError 404 Not
// Found") become "HTTP Error: 404 Not Found".
// Unknown statuses are returned as-is.
func Status(raw string) string {
	if name, ok := statuses[raw]; ok {
		return name
	}
	kind, rest, _ := strings.Cut(raw, " ")
	name, ok := errorKinds[kind]
	if !ok {
		return raw
	}
	if rest == "" {
		return name
	}
	return name + ": " + rest
}

// IsFailure reports whether a raw row status records a failure.
func IsFailure(raw string) bool {
	switch raw {
	case "", "success", "empty":
		return false
	}
	return true
}

// --- Adapter Kinds ---

var sourceKinds = map[string]string{
	"csv":    "URL Table",
	"folder": "Local Folder",
}

var targetKinds = map[string]string{
	"zip":    "Zip Bundle",
	"csv":    "CSV Table",
	"bucket": "Object Bucket",
}

// SourceKind returns "URL Table" for "csv", "Local Folder" for "folder".
func SourceKind(kind string) string {
	if name, ok := sourceKinds[kind]; ok {
		return name
	}
	return kind
}

// TargetKind returns the human-readable name for a target kind.
func TargetKind(kind string) string {
	if name, ok := targetKinds[kind]; ok {
		return name
	}
	return kind
}

// TargetKindWithCode returns "Zip Bundle (zip)" format.
func TargetKindWithCode(kind string) string {
	if name, ok := targetKinds[kind]; ok {
		return name + " (" + kind + ")"
	}
	return kind
}

// --- Events ---

var eventNames = map[string]string{
	"batch:start":   "Batch Started",
	"batch:finish":  "Batch Finished",
	"progress:step": "Progress",
	"row:updated":   "Row Updated",
	"log:add":       "Log Entry",
	"export:done":   "Export Done",
}

// Event returns the human-readable name for a bus event.
// "batch:start" -> "Batch Started".
func Event(name string) string {
	if h, ok := eventNames[name]; ok {
		return h
	}
	return name
}

// Progress renders a 0..1 fraction as a whole percentage, "60%".
func Progress(frac float64) string {
	switch {
	case frac <= 0:
		return "0%"
	case frac >= 1:
		return "100%"
	}
	return strconv.Itoa(int(frac*100+0.5)) + "%"
}
