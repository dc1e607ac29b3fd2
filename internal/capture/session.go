package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"framestage/internal/audio"
	"framestage/internal/readiness"
	"framestage/internal/storage"
	"framestage/internal/timeline"
)

// Session is the surface exposed to the external frame-stepping
// capture driver. The driver sets a frame, awaits readiness, then
// tells the rendering host to sample a still; pacing, timeouts and
// retry policy all belong to the driver, which may set any frame,
// backward included.
type Session struct {
	store     *timeline.Store
	readiness *readiness.Registry
	planner   *audio.Planner
	storage   *storage.SQLiteStorage
	logger    zerolog.Logger
}

func NewSession(
	frames *timeline.Store,
	reg *readiness.Registry,
	planner *audio.Planner,
	jobs *storage.SQLiteStorage,
	logger zerolog.Logger,
) *Session {
	return &Session{
		store:     frames,
		readiness: reg,
		planner:   planner,
		storage:   jobs,
		logger:    logger,
	}
}

// SetFrame positions the timeline for the next capture. Input is
// sanitized by the store, never rejected.
func (s *Session) SetFrame(n int64) timeline.Frame {
	return s.store.Set(float64(n))
}

// GetFrame returns the current global frame.
func (s *Session) GetFrame() timeline.Frame {
	return s.store.Get()
}

// AwaitReady blocks until the current frame is safe to sample: every
// readiness category quiesces past its settle tick, then every
// registered per-frame waiter confirms the target frame. There is no
// internal timeout; the driver bounds the wait through ctx and treats
// expiry as a stuck frame.
func (s *Session) AwaitReady(ctx context.Context, frame timeline.Frame) error {
	if err := s.readiness.ReadyAll(ctx); err != nil {
		return fmt.Errorf("await quiescence at frame %d: %w", frame, err)
	}
	if err := s.readiness.AwaitFrame(ctx, frame); err != nil {
		return fmt.Errorf("await frame waiters at frame %d: %w", frame, err)
	}
	return nil
}

// JobSpec describes a capture pass about to start.
type JobSpec struct {
	StartFrame int64
	EndFrame   int64
	FPS        float64
	OutputPath string
}

// StartJob records a capture pass and snapshots the current audio
// segment set as the job's manifest for the external mixer.
func (s *Session) StartJob(spec JobSpec) (*storage.CaptureJob, error) {
	job := &storage.CaptureJob{
		ID:         uuid.NewString(),
		Status:     storage.JobRunning,
		StartFrame: spec.StartFrame,
		EndFrame:   spec.EndFrame,
		FPS:        spec.FPS,
		OutputPath: spec.OutputPath,
		CreatedAt:  time.Now(),
	}

	if err := s.storage.CreateCaptureJob(job); err != nil {
		return nil, fmt.Errorf("create capture job: %w", err)
	}

	segments := s.planner.Segments()
	entries := make([]storage.ManifestEntry, 0, len(segments))
	for _, seg := range segments {
		entries = append(entries, storage.ManifestEntry{
			JobID:        job.ID,
			SegmentID:    seg.ID,
			SourcePath:   seg.SourcePath,
			ProjectStart: int64(seg.ProjectStart),
			SourceStart:  int64(seg.SourceStart),
			Duration:     int64(seg.Duration),
			Volume:       seg.Volume,
			FadeIn:       int64(seg.FadeIn),
			FadeOut:      int64(seg.FadeOut),
		})
	}

	if err := s.storage.SaveManifest(job.ID, entries); err != nil {
		return nil, fmt.Errorf("save audio manifest: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Int64("start", spec.StartFrame).
		Int64("end", spec.EndFrame).
		Int("segments", len(entries)).
		Msg("capture job started")

	return job, nil
}

// FinishJob marks a capture pass completed or failed.
func (s *Session) FinishJob(id, status string) error {
	if status != storage.JobCompleted && status != storage.JobFailed {
		return fmt.Errorf("invalid job status %q", status)
	}
	if err := s.storage.FinishCaptureJob(id, status, time.Now()); err != nil {
		return fmt.Errorf("finish capture job: %w", err)
	}

	s.logger.Info().Str("job_id", id).Str("status", status).Msg("capture job finished")
	return nil
}

// Job returns a capture job by id, nil when unknown.
func (s *Session) Job(id string) (*storage.CaptureJob, error) {
	return s.storage.GetCaptureJob(id)
}

// Jobs lists recent capture jobs, newest first.
func (s *Session) Jobs(limit int) ([]storage.CaptureJob, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.storage.ListCaptureJobs(limit)
}

// Manifest returns a job's persisted audio manifest, the segment list
// the external mixer consumes after capture.
func (s *Session) Manifest(id string) ([]storage.ManifestEntry, error) {
	return s.storage.GetManifest(id)
}
