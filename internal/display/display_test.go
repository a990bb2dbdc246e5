package display

import "testing"

func TestStatus(t *testing.T) {
	cases := []struct {
		raw, want string
	}{
		{"", "Pending"},
		{"success", "Fetched"},
		{"empty", "No Seed"},
		{"HTTPError 404 Not Found", "HTTP Error: 404 Not Found"},
		{"NetworkError Network or connection error", "Network Error: Network or connection error"},
		{"DecodeError Not a readable image", "Unreadable Image: Not a readable image"},
		{"ExportError zip", "Export Failed: zip"},
		{"ExportError", "Export Failed"},
		{"something odd", "something odd"},
	}
	for _, tc := range cases {
		if got := Status(tc.raw); got != tc.want {
			t.Errorf("Status(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestIsFailure(t *testing.T) {
	for raw, want := range map[string]bool{
		"":                       false,
		"success":                false,
		"empty":                  false,
		"HTTPError 500 Whatever": true,
		"fail":                   true,
	} {
		if got := IsFailure(raw); got != want {
			t.Errorf("IsFailure(%q) = %v", raw, got)
		}
	}
}

func TestErrorKind(t *testing.T) {
	if got := ErrorKind("HTTPError"); got != "HTTP Error" {
		t.Errorf("got %q", got)
	}
	if got := ErrorKind("Weird"); got != "Weird" {
		t.Errorf("got %q", got)
	}
}

func TestKinds(t *testing.T) {
	if got := SourceKind("folder"); got != "Local Folder" {
		t.Errorf("SourceKind = %q", got)
	}
	if got := TargetKind("bucket"); got != "Object Bucket" {
		t.Errorf("TargetKind = %q", got)
	}
	if got := TargetKindWithCode("zip"); got != "Zip Bundle (zip)" {
		t.Errorf("TargetKindWithCode = %q", got)
	}
	if got := TargetKindWithCode("ftp"); got != "ftp" {
		t.Errorf("unknown kind = %q", got)
	}
}

func TestEvent(t *testing.T) {
	if got := Event("batch:start"); got != "Batch Started" {
		t.Errorf("got %q", got)
	}
	if got := Event("custom"); got != "custom" {
		t.Errorf("got %q", got)
	}
}

func TestProgress(t *testing.T) {
	cases := map[float64]string{0: "0%", 0.6: "60%", 0.333: "33%", 1: "100%", 1.2: "100%", -1: "0%"}
	for in, want := range cases {
		if got := Progress(in); got != want {
			t.Errorf("Progress(%v) = %q, want %q", in, got, want)
		}
	}
}
