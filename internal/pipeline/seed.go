package pipeline

import "strings"

// SeedNodes builds one task per row, in row order, carrying the value of
// column as the seed. Rows with an empty seed are kept so tasks stay index
// aligned with the row store. An unknown column yields empty seeds.
func SeedNodes(src RowSource, column string) []NodeTask {
	rows := src.Rows()
	tasks := make([]NodeTask, len(rows))
	for i, r := range rows {
		v, _ := r.Get(column)
		tasks[i] = NodeTask{Seed: v, Index: i}
	}
	return tasks
}

// IsEmptySeed reports whether a seed carries nothing to fetch.
func IsEmptySeed(seed any) bool {
	switch s := seed.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	}
	return false
}

// SeedString renders a seed for logs and filenames.
func SeedString(seed any) string {
	switch s := seed.(type) {
	case nil:
		return ""
	case string:
		return s
	case interface{ Name() string }:
		return s.Name()
	}
	return ""
}
