package storage

import "time"

// CaptureJob records one frame-exact export pass: the frame range the
// external driver walked and where the encoded output went.
type CaptureJob struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	StartFrame int64      `json:"start_frame"`
	EndFrame   int64      `json:"end_frame"`
	FPS        float64    `json:"fps"`
	OutputPath string     `json:"output_path,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// ManifestEntry is one audio segment as persisted with a capture job,
// the row shipped to the external mixer before muxing.
type ManifestEntry struct {
	JobID        string  `json:"-"`
	SegmentID    string  `json:"segment_id"`
	SourcePath   string  `json:"source_path"`
	ProjectStart int64   `json:"project_start"`
	SourceStart  int64   `json:"source_start"`
	Duration     int64   `json:"duration"`
	Volume       float64 `json:"volume"`
	FadeIn       int64   `json:"fade_in"`
	FadeOut      int64   `json:"fade_out"`
}
