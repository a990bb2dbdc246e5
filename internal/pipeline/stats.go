package pipeline

import "imgnet/internal/dataset"

// Stats summarizes a row table by its status fields.
type Stats struct {
	Total      int     `json:"total"`
	Successful int     `json:"successful"`
	Failed     int     `json:"failed"`
	Empty      int     `json:"empty"`
	Pending    int     `json:"pending"`
	Progress   float64 `json:"progress"`
}

// ComputeStats derives Stats from the current row statuses. Any non-blank
// status other than success and empty counts as a failure.
func ComputeStats(src RowSource) Stats {
	var s Stats
	for _, r := range src.Rows() {
		s.Total++
		switch r.String(dataset.FieldStatus) {
		case "":
		case string(StatusSuccess):
			s.Successful++
		case string(StatusEmpty):
			s.Empty++
		default:
			s.Failed++
		}
	}
	s.Pending = s.Total - s.Successful - s.Failed - s.Empty
	if s.Total > 0 {
		s.Progress = float64(s.Successful+s.Failed+s.Empty) / float64(s.Total)
	}
	return s
}
