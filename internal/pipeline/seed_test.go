package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSeedNodes_IndexAligned(t *testing.T) {
	src := newMemSource("url", "https://x/a.png", "", "https://x/a.png", "   ")
	tasks := SeedNodes(src, "url")

	if len(tasks) != len(src.Rows()) {
		t.Fatalf("tasks = %d, rows = %d", len(tasks), len(src.Rows()))
	}
	for i, task := range tasks {
		if task.Index != i {
			t.Errorf("task %d has index %d", i, task.Index)
		}
	}
	if !IsEmptySeed(tasks[1].Seed) || !IsEmptySeed(tasks[3].Seed) {
		t.Error("blank seeds should be empty")
	}
	if IsEmptySeed(tasks[0].Seed) {
		t.Error("url seed reported empty")
	}
}

func TestSeedNodes_UnknownColumn(t *testing.T) {
	src := newMemSource("url", "https://x/a.png", "https://x/b.png")
	tasks := SeedNodes(src, "nope")

	want := []NodeTask{{Index: 0}, {Index: 1}}
	if diff := cmp.Diff(want, tasks); diff != "" {
		t.Errorf("tasks (-want +got):\n%s", diff)
	}
}

type namedHandle string

func (h namedHandle) Name() string { return string(h) }

func TestSeedString(t *testing.T) {
	if SeedString(namedHandle("cat.png")) != "cat.png" {
		t.Error("handle seeds should render by name")
	}
	if SeedString(nil) != "" || SeedString(42) != "" {
		t.Error("unknown seeds render empty")
	}
}

func TestComputeStats(t *testing.T) {
	src := newMemSource("url", "a", "b", "c", "d", "e")
	_ = src.Update(NodeResult{Index: 0, Status: StatusSuccess})
	_ = src.Update(NodeResult{Index: 1, Status: StatusEmpty})
	_ = src.Update(NodeResult{Index: 2, Status: StatusFail, Err: NewHTTPError("c", 500, "")})

	got := ComputeStats(src)
	want := Stats{Total: 5, Successful: 1, Failed: 1, Empty: 1, Pending: 2, Progress: 0.6}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}

	if s := ComputeStats(newMemSource("url")); s.Progress != 0 || s.Total != 0 {
		t.Errorf("empty table stats = %+v", s)
	}
}

func TestRowStatus(t *testing.T) {
	tests := []struct {
		res  NodeResult
		want string
	}{
		{NodeResult{Status: StatusSuccess}, "success"},
		{NodeResult{Status: StatusEmpty}, "empty"},
		{NodeResult{Status: StatusFail, Err: &NetworkError{Seed: "u"}}, "NetworkError Network or connection error"},
		{NodeResult{Status: StatusFail, Err: NewHTTPError("u", 429, "")}, "HTTPError 429 Too Many Requests"},
		{NodeResult{Status: StatusFail, Err: &DecodeError{Seed: "u", Err: errors.New("bad")}}, "DecodeError Not a readable image"},
		{NodeResult{Status: StatusFail}, "fail"},
	}
	for _, tt := range tests {
		if got := RowStatus(tt.res); got != tt.want {
			t.Errorf("RowStatus(%+v) = %q, want %q", tt.res, got, tt.want)
		}
	}
}

func TestAsItemError_Wrapped(t *testing.T) {
	err := errors.Join(errors.New("ctx"), NewHTTPError("u", 403, "Forbidden"))
	ie, ok := AsItemError(err)
	if !ok || ie.Code() != "403" {
		t.Errorf("AsItemError = %v, %v", ie, ok)
	}
	if _, ok := AsItemError(errors.New("plain")); ok {
		t.Error("plain errors are not item errors")
	}
}

func TestErrorName(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&NetworkError{Seed: "https://x/a.png"}, NameNetworkError},
		{NewHTTPError("https://x/a.png", 404, ""), NameNotFound},
		{NewHTTPError("https://x/a.png", 403, ""), NameAccessDenied},
		{NewHTTPError("https://x/a.png", 500, ""), NameServerError},
		{NewHTTPError("https://x/a.png", 503, ""), NameServerError},
		{NewHTTPError("https://x/a.png", 429, ""), NameUnknownError},
		{&DecodeError{Seed: "https://x/a.png"}, NameUnknownError},
		{&ExportError{Target: "zip", Op: "add"}, NameUnknownError},
		{fmt.Errorf("fetch: %w", NewHTTPError("https://x/a.png", 404, "")), NameNotFound},
	}
	for _, tt := range tests {
		if got := ErrorName(tt.err); got != tt.want {
			t.Errorf("ErrorName(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
