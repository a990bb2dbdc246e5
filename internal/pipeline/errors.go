package pipeline

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrBatchRunning is returned when ProcessBatch is called while a batch is
// already in progress on the same engine.
var ErrBatchRunning = errors.New("a batch is already running")

// ErrUnknownKind is returned by adapter registries for unsupported kinds.
var ErrUnknownKind = errors.New("unsupported adapter kind")

// ItemError is a per-item fetch failure the engine recovers from: the row is
// marked, a log entry is emitted and the batch continues.
type ItemError interface {
	error
	// Kind is the error class name, e.g. "HTTPError".
	Kind() string
	// Code is the HTTP status code as text, or "" when no response arrived.
	Code() string
	// Text is a short human status text.
	Text() string
	// URL is the seed that failed.
	URL() string
}

// NetworkError means the request never reached a server (DNS, refused
// connection, TLS, timeout).
type NetworkError struct {
	Seed string
	Err  error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return "failed to fetch " + e.Seed
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.Seed, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
func (e *NetworkError) Kind() string  { return "NetworkError" }
func (e *NetworkError) Code() string  { return "" }
func (e *NetworkError) Text() string  { return "Network or connection error" }
func (e *NetworkError) URL() string   { return e.Seed }

// HTTPError means a response arrived with a non-success status.
type HTTPError struct {
	Seed       string
	StatusCode int
	StatusText string
}

// NewHTTPError builds an HTTPError from a status code and the reason phrase
// the server sent. A missing phrase is filled with the canonical text.
func NewHTTPError(seed string, code int, reason string) *HTTPError {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = http.StatusText(code)
	}
	return &HTTPError{Seed: seed, StatusCode: code, StatusText: reason}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %d %s", e.Seed, e.StatusCode, e.StatusText)
}

func (e *HTTPError) Kind() string { return "HTTPError" }
func (e *HTTPError) Code() string { return strconv.Itoa(e.StatusCode) }
func (e *HTTPError) Text() string { return e.StatusText }
func (e *HTTPError) URL() string  { return e.Seed }

// DecodeError means the seed was retrieved but its bytes are not a usable
// image (e.g. an HTML error page served with 200).
type DecodeError struct {
	Seed string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode image from %s: %v", e.Seed, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
func (e *DecodeError) Kind() string  { return "DecodeError" }
func (e *DecodeError) Code() string  { return "" }
func (e *DecodeError) Text() string  { return "Not a readable image" }
func (e *DecodeError) URL() string   { return e.Seed }

// IndexError means a result addressed a row outside the row store. The row
// store and the task list are out of sync; the batch must abort.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("invalid row index %d (rows: %d)", e.Index, e.Len)
}

// ExportError means a target could not store an artifact or produce its
// final byte sequence.
type ExportError struct {
	Target string
	Op     string
	Err    error
}

func (e *ExportError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s target: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("%s target: %s: %v", e.Target, e.Op, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ParseError is surfaced from the tabular parser.
type ParseError struct {
	Source string
	Line   int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AsItemError reports whether err is a recoverable per-item failure.
func AsItemError(err error) (ItemError, bool) {
	var (
		netErr  *NetworkError
		httpErr *HTTPError
		decErr  *DecodeError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr, true
	case errors.As(err, &netErr):
		return netErr, true
	case errors.As(err, &decErr):
		return decErr, true
	}
	return nil, false
}

// StatusText is the row status written for a failed item:
// "<Kind> <Code> <Text>" with empty parts omitted.
func StatusText(err ItemError) string {
	parts := []string{err.Kind()}
	if c := err.Code(); c != "" {
		parts = append(parts, c)
	}
	if t := err.Text(); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

// Short names that classify a log entry next to its errorType.
const (
	NameNetworkError = "NETWORK_ERROR"
	NameNotFound     = "NOT_FOUND"
	NameAccessDenied = "ACCESS_DENIED"
	NameServerError  = "SERVER_ERROR"
	NameUnknownError = "UNKNOWN_ERROR"
)

// ErrorName classifies err for the "name" detail of a log entry.
func ErrorName(err error) string {
	var (
		netErr  *NetworkError
		httpErr *HTTPError
	)
	switch {
	case errors.As(err, &netErr):
		return NameNetworkError
	case errors.As(err, &httpErr):
		switch {
		case httpErr.StatusCode == http.StatusNotFound:
			return NameNotFound
		case httpErr.StatusCode == http.StatusForbidden:
			return NameAccessDenied
		case httpErr.StatusCode >= 500:
			return NameServerError
		}
	}
	return NameUnknownError
}
