package api

import (
	"framestage/internal/audio"
	"framestage/internal/clips"
	"framestage/internal/storage"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Frame store

type FrameResponse struct {
	Frame int64 `json:"frame"`
}

type SetFrameRequest struct {
	Frame float64 `json:"frame"`
}

// Playback

type PlaybackStateResponse struct {
	State     string `json:"state"`
	Frame     int64  `json:"frame"`
	Committed int64  `json:"committed"`
}

type StepRequest struct {
	Delta int `json:"delta"` // +1 or -1
}

type JumpRequest struct {
	To string `json:"to"` // "start" or "end"
}

type RenderedRequest struct {
	Frame int64 `json:"frame"`
}

// Clips

type EnterClipRequest struct {
	ParentID string `json:"parent_id,omitempty"`
	MountID  string `json:"mount_id,omitempty"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Label    string `json:"label,omitempty"`
	LaneID   string `json:"lane_id,omitempty"`
}

type EnterClipResponse struct {
	ID         string `json:"id,omitempty"`
	Registered bool   `json:"registered"`
}

type SerialRequest struct {
	ParentID string             `json:"parent_id,omitempty"`
	Clips    []EnterClipRequest `json:"clips"`
}

type SerialResponse struct {
	IDs []string `json:"ids"`
}

type SetHiddenRequest struct {
	Hidden bool `json:"hidden"`
}

type ClipView struct {
	clips.Clip
	Lane       int   `json:"lane"`
	Hidden     bool  `json:"hidden"`
	Visible    bool  `json:"visible"`
	Active     bool  `json:"active"`
	LocalFrame int64 `json:"local_frame"`
	Frozen     bool  `json:"frozen"`
}

type ClipsResponse struct {
	Frame int64      `json:"frame"`
	Clips []ClipView `json:"clips"`
}

// Audio segments

type RegisterSegmentRequest struct {
	ID             string  `json:"id,omitempty"`
	SourcePath     string  `json:"source_path"`
	ClipID         string  `json:"clip_id"`
	SourceDuration *int64  `json:"source_duration,omitempty"` // probed when absent
	TrimStart      int64   `json:"trim_start,omitempty"`
	LocalStart     int64   `json:"local_start,omitempty"` // clip-local start offset
	Volume         float64 `json:"volume,omitempty"`
	FadeIn         int64   `json:"fade_in,omitempty"`
	FadeOut        int64   `json:"fade_out,omitempty"`
	ShowWaveform   bool    `json:"show_waveform,omitempty"`
}

type RegisterSegmentResponse struct {
	Segment    *audio.Segment `json:"segment,omitempty"`
	Registered bool           `json:"registered"`
}

type SegmentsResponse struct {
	Segments []audio.Segment `json:"segments"`
}

// Readiness

type ReadyResponse struct {
	Ready bool  `json:"ready"`
	Frame int64 `json:"frame"`
}

type PendingResponse struct {
	Pending map[string]int `json:"pending"`
}

type PendingTokenResponse struct {
	Category string `json:"category"`
	Token    string `json:"token"`
}

type FinishPendingRequest struct {
	Token string `json:"token"`
}

// Sources

type InvalidateSourceRequest struct {
	SourcePath string `json:"source_path"`
}

// Capture jobs

type StartJobRequest struct {
	StartFrame int64   `json:"start_frame"`
	EndFrame   int64   `json:"end_frame"`
	FPS        float64 `json:"fps"`
	OutputPath string  `json:"output_path,omitempty"`
}

type FinishJobRequest struct {
	Status string `json:"status"` // "completed" or "failed"
}

type JobsResponse struct {
	Jobs []storage.CaptureJob `json:"jobs"`
}

type ManifestResponse struct {
	JobID   string                  `json:"job_id"`
	Entries []storage.ManifestEntry `json:"entries"`
}
