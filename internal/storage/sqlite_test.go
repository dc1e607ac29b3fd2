package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func testStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCaptureJobRoundTrip(t *testing.T) {
	s := testStorage(t)

	job := &CaptureJob{
		ID:         "job-1",
		Status:     JobRunning,
		StartFrame: 0,
		EndFrame:   300,
		FPS:        60,
		OutputPath: "/out/take.mp4",
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.CreateCaptureJob(job); err != nil {
		t.Fatalf("CreateCaptureJob: %v", err)
	}

	got, err := s.GetCaptureJob("job-1")
	if err != nil {
		t.Fatalf("GetCaptureJob: %v", err)
	}
	if got == nil || got.Status != JobRunning || got.EndFrame != 300 || got.FinishedAt != nil {
		t.Fatalf("job = %+v, want running [0,300] unfinished", got)
	}

	if err := s.FinishCaptureJob("job-1", JobCompleted, time.Now().UTC()); err != nil {
		t.Fatalf("FinishCaptureJob: %v", err)
	}
	got, err = s.GetCaptureJob("job-1")
	if err != nil {
		t.Fatalf("GetCaptureJob after finish: %v", err)
	}
	if got.Status != JobCompleted || got.FinishedAt == nil {
		t.Errorf("finished job = %+v", got)
	}

	missing, err := s.GetCaptureJob("nope")
	if err != nil || missing != nil {
		t.Errorf("unknown job = %+v, %v, want nil,nil", missing, err)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	s := testStorage(t)

	job := &CaptureJob{ID: "job-2", Status: JobRunning, FPS: 30, CreatedAt: time.Now().UTC()}
	if err := s.CreateCaptureJob(job); err != nil {
		t.Fatalf("CreateCaptureJob: %v", err)
	}

	entries := []ManifestEntry{
		{JobID: "job-2", SegmentID: "s2", SourcePath: "/b.wav", ProjectStart: 120, Duration: 40, Volume: 1},
		{JobID: "job-2", SegmentID: "s1", SourcePath: "/a.wav", ProjectStart: 0, Duration: 100, Volume: 0.5, FadeIn: 10},
	}
	if err := s.SaveManifest("job-2", entries); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}

	got, err := s.GetManifest("job-2")
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	// Mixer order: by project start.
	if got[0].SegmentID != "s1" || got[1].SegmentID != "s2" {
		t.Errorf("order = %s,%s, want s1,s2", got[0].SegmentID, got[1].SegmentID)
	}
	if got[0].Volume != 0.5 || got[0].FadeIn != 10 {
		t.Errorf("entry dropped fields: %+v", got[0])
	}

	// Re-saving replaces the whole manifest.
	if err := s.SaveManifest("job-2", entries[:1]); err != nil {
		t.Fatalf("SaveManifest replace: %v", err)
	}
	got, err = s.GetManifest("job-2")
	if err != nil {
		t.Fatalf("GetManifest after replace: %v", err)
	}
	if len(got) != 1 || got[0].SegmentID != "s2" {
		t.Errorf("replaced manifest = %+v, want only s2", got)
	}
}
