package capture

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"framestage/internal/audio"
	"framestage/internal/clips"
	"framestage/internal/readiness"
	"framestage/internal/storage"
	"framestage/internal/timeline"
)

func testSession() (*Session, *timeline.Store, *readiness.Registry) {
	store := timeline.NewStore()
	ready := readiness.NewRegistry(0, zerolog.Nop())
	return NewSession(store, ready, nil, nil, zerolog.Nop()), store, ready
}

func TestSetFrameSanitizes(t *testing.T) {
	session, store, _ := testSession()

	if got := session.SetFrame(42); got != 42 {
		t.Errorf("SetFrame(42) = %d", got)
	}
	if got := session.SetFrame(-5); got != 0 {
		t.Errorf("SetFrame(-5) = %d, want 0", got)
	}
	// Capture retries may step backward freely.
	session.SetFrame(100)
	if got := session.SetFrame(50); got != 50 {
		t.Errorf("backward SetFrame = %d, want 50", got)
	}
	if session.GetFrame() != store.Get() {
		t.Error("GetFrame disagrees with the store")
	}
}

func TestAwaitReadyComposesBarriersAndWaiters(t *testing.T) {
	session, _, ready := testSession()

	finish := ready.Barrier("gpu").Start()

	var waited []timeline.Frame
	ready.RegisterFrameWaiter("video:x", func(ctx context.Context, f timeline.Frame) error {
		waited = append(waited, f)
		return nil
	})

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- session.AwaitReady(ctx, 30)
	}()

	select {
	case <-done:
		t.Fatal("AwaitReady resolved with gpu work pending")
	case <-time.After(20 * time.Millisecond):
	}

	finish()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("AwaitReady: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("AwaitReady never resolved")
	}

	if len(waited) != 1 || waited[0] != 30 {
		t.Errorf("frame waiter calls = %v, want [30]", waited)
	}
}

func TestAwaitReadyBoundedByCaller(t *testing.T) {
	session, _, ready := testSession()

	_ = ready.Barrier("image-decode").Start() // stuck

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := session.AwaitReady(ctx, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("AwaitReady on stuck barrier = %v, want DeadlineExceeded", err)
	}
}

func TestJobManifestSnapshot(t *testing.T) {
	store := timeline.NewStore()
	ready := readiness.NewRegistry(0, zerolog.Nop())
	registry := clips.NewRegistry(zerolog.Nop())
	planner := audio.NewPlanner(registry, zerolog.Nop())

	jobs, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	defer jobs.Close()

	session := NewSession(store, ready, planner, jobs, zerolog.Nop())

	clipID, _ := registry.Enter("", clips.Spec{Start: 100, End: 199})
	if _, ok := planner.Register(audio.Registration{
		ID:             "seg-1",
		SourcePath:     "/media/track.wav",
		ClipID:         clipID,
		SourceDuration: 600,
	}); !ok {
		t.Fatal("segment did not register")
	}

	job, err := session.StartJob(JobSpec{StartFrame: 0, EndFrame: 300, FPS: 60})
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	entries, err := session.Manifest(job.ID)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].SegmentID != "seg-1" || entries[0].ProjectStart != 100 || entries[0].Duration != 100 {
		t.Errorf("entry = %+v, want seg-1 at 100 for 100", entries[0])
	}

	// The manifest is a snapshot: later planner changes do not touch it.
	planner.Deregister("seg-1")
	entries, err = session.Manifest(job.ID)
	if err != nil {
		t.Fatalf("Manifest after deregister: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("snapshot shrank to %d entries", len(entries))
	}
}
