package media

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"framestage/internal/readiness"
)

type fakeProber struct {
	meta   Metadata
	err    error
	probes int
}

func (p *fakeProber) Probe(path string) (Metadata, error) {
	p.probes++
	return p.meta, p.err
}

func TestLookupCachesPerPath(t *testing.T) {
	prober := &fakeProber{meta: Metadata{DurationFrames: 900, FPS: 30, Width: 1920, Height: 1080}}
	svc, err := NewMetadataService(prober, 16, readiness.NewRegistry(0, zerolog.Nop()), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMetadataService: %v", err)
	}

	for i := 0; i < 5; i++ {
		got := svc.Lookup("/media/a.mp4")
		if got != prober.meta {
			t.Fatalf("Lookup = %+v, want %+v", got, prober.meta)
		}
	}
	if prober.probes != 1 {
		t.Errorf("probed %d times for one path, want 1", prober.probes)
	}

	svc.Lookup("/media/b.mp4")
	if prober.probes != 2 {
		t.Errorf("probed %d times for two paths, want 2", prober.probes)
	}
}

func TestLookupDegradesOnProbeFailure(t *testing.T) {
	prober := &fakeProber{err: errors.New("no such file")}
	svc, err := NewMetadataService(prober, 16, readiness.NewRegistry(0, zerolog.Nop()), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMetadataService: %v", err)
	}

	got := svc.Lookup("/media/broken.mp4")
	if got != (Metadata{}) {
		t.Errorf("Lookup on broken source = %+v, want zero metadata", got)
	}

	// The failure is cached too: one broken asset probes once.
	svc.Lookup("/media/broken.mp4")
	if prober.probes != 1 {
		t.Errorf("probed %d times, want 1", prober.probes)
	}
}

// pendingProber records the metadata-probe pending count observed
// mid-probe.
type pendingProber struct {
	ready   *readiness.Registry
	pending int
}

func (p *pendingProber) Probe(string) (Metadata, error) {
	p.pending = p.ready.Pending()["metadata-probe"]
	return Metadata{FPS: 30}, nil
}

func TestLookupMarksProbePending(t *testing.T) {
	ready := readiness.NewRegistry(0, zerolog.Nop())
	prober := &pendingProber{ready: ready}
	svc, err := NewMetadataService(prober, 16, ready, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMetadataService: %v", err)
	}

	svc.Lookup("/media/a.mp4")
	if prober.pending != 1 {
		t.Errorf("pending during probe = %d, want 1", prober.pending)
	}
	if got := ready.Pending()["metadata-probe"]; got != 0 {
		t.Errorf("pending after probe = %d, want 0", got)
	}

	// Cache hits are not decode work.
	prober.pending = -1
	svc.Lookup("/media/a.mp4")
	if prober.pending != -1 {
		t.Error("cached lookup re-probed")
	}
}

func TestInvalidateForcesReprobe(t *testing.T) {
	prober := &fakeProber{meta: Metadata{FPS: 24}}
	svc, err := NewMetadataService(prober, 16, readiness.NewRegistry(0, zerolog.Nop()), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMetadataService: %v", err)
	}

	svc.Lookup("/media/a.mp4")
	svc.Invalidate("/media/a.mp4")
	svc.Lookup("/media/a.mp4")
	if prober.probes != 2 {
		t.Errorf("probed %d times across invalidation, want 2", prober.probes)
	}
}

func TestParseProbeOutput(t *testing.T) {
	output := []byte(`{
		"streams": [
			{"codec_type": "audio", "channels": 2},
			{"codec_type": "video", "width": 1280, "height": 720, "r_frame_rate": "30000/1001"}
		],
		"format": {"duration": "10.5"}
	}`)

	meta, err := parseProbeOutput(output)
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}

	if meta.Width != 1280 || meta.Height != 720 {
		t.Errorf("dimensions = %dx%d, want 1280x720", meta.Width, meta.Height)
	}
	if meta.FPS < 29.96 || meta.FPS > 29.98 {
		t.Errorf("fps = %v, want ~29.97", meta.FPS)
	}
	// 10.5s at 29.97fps floors to 314 frames.
	if meta.DurationFrames != 314 {
		t.Errorf("duration = %d frames, want 314", meta.DurationFrames)
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"30/1", 30},
		{"60", 60},
		{"30000/1001", 30000.0 / 1001.0},
		{"0/0", 0},
		{"garbage", 0},
		{"1/garbage", 0},
	}

	for _, tt := range tests {
		if got := parseFrameRate(tt.input); got != tt.want {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSourceKinds(t *testing.T) {
	tests := []struct {
		path      string
		supported bool
		video     bool
	}{
		{"/a/movie.mp4", true, true},
		{"/a/movie.MKV", true, true},
		{"/a/track.wav", true, false},
		{"/a/track.flac", true, false},
		{"/a/notes.txt", false, false},
	}

	for _, tt := range tests {
		if got := IsSupportedSource(tt.path); got != tt.supported {
			t.Errorf("IsSupportedSource(%q) = %v, want %v", tt.path, got, tt.supported)
		}
		if got := HasVideoTrack(tt.path); got != tt.video {
			t.Errorf("HasVideoTrack(%q) = %v, want %v", tt.path, got, tt.video)
		}
	}
}
