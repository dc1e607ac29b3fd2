package audio

import (
	"testing"

	"github.com/rs/zerolog"

	"framestage/internal/clips"
	"framestage/internal/timeline"
)

func testPlanner(t *testing.T) (*Planner, *clips.Registry) {
	t.Helper()
	registry := clips.NewRegistry(zerolog.Nop())
	return NewPlanner(registry, zerolog.Nop()), registry
}

func TestRegisterIntersectsWithClip(t *testing.T) {
	planner, registry := testPlanner(t)
	clipID, _ := registry.Enter("", clips.Spec{Start: 100, End: 199}) // span 100

	tests := []struct {
		name           string
		sourceDuration timeline.Frame
		trimStart      timeline.Frame
		wantDuration   timeline.Frame
		wantRegistered bool
	}{
		{"source longer than clip", 500, 0, 100, true},
		{"source shorter than clip", 40, 0, 40, true},
		{"trim shortens source", 50, 20, 30, true},
		{"trim consumes source", 50, 50, 0, false},
		{"trim past source", 50, 80, 0, false},
		{"zero duration source", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg, ok := planner.Register(Registration{
				SourcePath:     "/media/track.wav",
				ClipID:         clipID,
				SourceDuration: tt.sourceDuration,
				TrimStart:      tt.trimStart,
			})
			if ok != tt.wantRegistered {
				t.Fatalf("registered = %v, want %v", ok, tt.wantRegistered)
			}
			if !ok {
				return
			}
			defer planner.Deregister(seg.ID)

			if seg.ProjectStart != 100 {
				t.Errorf("project start = %d, want clip start 100", seg.ProjectStart)
			}
			if seg.SourceStart != tt.trimStart {
				t.Errorf("source start = %d, want trim %d", seg.SourceStart, tt.trimStart)
			}
			if seg.Duration != tt.wantDuration {
				t.Errorf("duration = %d, want %d", seg.Duration, tt.wantDuration)
			}
		})
	}
}

func TestRegisterUnknownClip(t *testing.T) {
	planner, _ := testPlanner(t)

	if _, ok := planner.Register(Registration{
		SourcePath:     "/media/track.wav",
		ClipID:         "gone",
		SourceDuration: 100,
	}); ok {
		t.Error("segment registered against unknown clip")
	}
	if got := planner.Segments(); len(got) != 0 {
		t.Errorf("segments = %v, want none", got)
	}
}

func TestRegisterWithLocalStart(t *testing.T) {
	planner, registry := testPlanner(t)
	clipID, _ := registry.Enter("", clips.Spec{Start: 100, End: 199})

	tests := []struct {
		name             string
		localStart       timeline.Frame
		sourceDuration   timeline.Frame
		wantProjectStart timeline.Frame
		wantDuration     timeline.Frame
		wantRegistered   bool
	}{
		{"offset into clip", 30, 500, 130, 70, true},
		{"offset with short source", 30, 20, 130, 20, true},
		{"offset at last clip frame", 99, 500, 199, 1, true},
		{"offset past clip", 100, 500, 0, 0, false},
		{"negative offset clamps to clip start", -10, 500, 100, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg, ok := planner.Register(Registration{
				SourcePath:     "/media/track.wav",
				ClipID:         clipID,
				SourceDuration: tt.sourceDuration,
				LocalStart:     tt.localStart,
			})
			if ok != tt.wantRegistered {
				t.Fatalf("registered = %v, want %v", ok, tt.wantRegistered)
			}
			if !ok {
				return
			}
			defer planner.Deregister(seg.ID)

			if seg.ProjectStart != tt.wantProjectStart {
				t.Errorf("project start = %d, want %d", seg.ProjectStart, tt.wantProjectStart)
			}
			if seg.Duration != tt.wantDuration {
				t.Errorf("duration = %d, want %d", seg.Duration, tt.wantDuration)
			}
		})
	}
}

func TestDeregisterRemoves(t *testing.T) {
	planner, registry := testPlanner(t)
	clipID, _ := registry.Enter("", clips.Spec{Start: 0, End: 99})

	seg, ok := planner.Register(Registration{
		SourcePath:     "/media/track.wav",
		ClipID:         clipID,
		SourceDuration: 100,
	})
	if !ok {
		t.Fatal("segment did not register")
	}

	planner.Deregister(seg.ID)
	planner.Deregister(seg.ID) // idempotent

	if got := planner.Segments(); len(got) != 0 {
		t.Errorf("segments after deregister = %v, want none", got)
	}
}

func TestSegmentsSortedByProjectStart(t *testing.T) {
	planner, registry := testPlanner(t)

	late, _ := registry.Enter("", clips.Spec{Start: 500, End: 599})
	early, _ := registry.Enter("", clips.Spec{Start: 0, End: 99})

	planner.Register(Registration{ID: "b", SourcePath: "/b.wav", ClipID: late, SourceDuration: 100})
	planner.Register(Registration{ID: "a", SourcePath: "/a.wav", ClipID: early, SourceDuration: 100})

	segs := planner.Segments()
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].ID != "a" || segs[1].ID != "b" {
		t.Errorf("order = %s,%s, want a,b", segs[0].ID, segs[1].ID)
	}
}

func TestRegisterKeepsFadeAndVolume(t *testing.T) {
	planner, registry := testPlanner(t)
	clipID, _ := registry.Enter("", clips.Spec{Start: 0, End: 299})

	seg, ok := planner.Register(Registration{
		SourcePath:     "/media/music.flac",
		ClipID:         clipID,
		SourceDuration: 300,
		Volume:         0.5,
		FadeIn:         12,
		FadeOut:        30,
		ShowWaveform:   true,
	})
	if !ok {
		t.Fatal("segment did not register")
	}

	if seg.Volume != 0.5 || seg.FadeIn != 12 || seg.FadeOut != 30 || !seg.ShowWaveform {
		t.Errorf("segment dropped registration fields: %+v", seg)
	}
}
