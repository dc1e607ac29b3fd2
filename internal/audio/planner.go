package audio

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"framestage/internal/clips"
	"framestage/internal/timeline"
)

// Segment is a resolved mapping from a stretch of source audio onto a
// stretch of project time, derived by intersecting a media element's
// source range with its containing clip's absolute interval. Segments
// feed the waveform layer and, at export, the external mixer.
type Segment struct {
	ID           string         `json:"id"`
	SourcePath   string         `json:"source_path"`
	ClipID       string         `json:"clip_id,omitempty"`
	ProjectStart timeline.Frame `json:"project_start"`
	SourceStart  timeline.Frame `json:"source_start"`
	Duration     timeline.Frame `json:"duration"`
	Volume       float64        `json:"volume,omitempty"`
	FadeIn       timeline.Frame `json:"fade_in,omitempty"`
	FadeOut      timeline.Frame `json:"fade_out,omitempty"`
	ShowWaveform bool           `json:"show_waveform,omitempty"`
}

// Registration is what a media element submits on mount. TrimStart is
// the offset into the source at which playback of this element begins;
// SourceDuration is the source's native length in project frames;
// LocalStart is where inside the clip the element begins playing, in
// clip-local frames.
type Registration struct {
	ID             string
	SourcePath     string
	ClipID         string
	SourceDuration timeline.Frame
	TrimStart      timeline.Frame
	LocalStart     timeline.Frame
	Volume         float64
	FadeIn         timeline.Frame
	FadeOut        timeline.Frame
	ShowWaveform   bool
}

// Planner owns the process-wide audio segment set. Entries follow the
// mount lifecycle of their media element: registered on mount when the
// overlap is non-empty, removed by id on unmount, never mutated in
// place (a changed element re-registers).
type Planner struct {
	registry *clips.Registry
	logger   zerolog.Logger

	mu       sync.RWMutex
	segments map[string]Segment
}

func NewPlanner(registry *clips.Registry, logger zerolog.Logger) *Planner {
	return &Planner{
		registry: registry,
		logger:   logger,
		segments: make(map[string]Segment),
	}
}

// Register resolves a registration against its containing clip and
// stores the resulting segment. The element starts LocalStart frames
// into the clip; its duration is the intersection of the source's
// remaining length (native duration minus trim) with what is left of
// the clip from that point. An empty intersection registers nothing
// and returns false. A missing clip likewise registers nothing: the
// element mounted outside any live interval.
func (p *Planner) Register(reg Registration) (Segment, bool) {
	clip, ok := p.registry.Get(reg.ClipID)
	if !ok {
		p.logger.Debug().Str("clip_id", reg.ClipID).Msg("segment register with unknown clip")
		return Segment{}, false
	}

	local := reg.LocalStart
	if local < 0 {
		local = 0
	}
	start := clip.Start + local

	available := reg.SourceDuration - reg.TrimStart
	span := clip.End - start + 1

	duration := available
	if span < duration {
		duration = span
	}
	if duration <= 0 {
		return Segment{}, false
	}

	id := reg.ID
	if id == "" {
		id = uuid.NewString()
	}

	seg := Segment{
		ID:           id,
		SourcePath:   reg.SourcePath,
		ClipID:       reg.ClipID,
		ProjectStart: start,
		SourceStart:  reg.TrimStart,
		Duration:     duration,
		Volume:       reg.Volume,
		FadeIn:       reg.FadeIn,
		FadeOut:      reg.FadeOut,
		ShowWaveform: reg.ShowWaveform,
	}

	p.mu.Lock()
	p.segments[id] = seg
	p.mu.Unlock()

	p.logger.Debug().
		Str("id", id).
		Str("source", reg.SourcePath).
		Int64("project_start", int64(seg.ProjectStart)).
		Int64("duration", int64(seg.Duration)).
		Msg("audio segment registered")

	return seg, true
}

// Deregister removes a segment by id; unknown ids are a no-op.
func (p *Planner) Deregister(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.segments, id)
}

// Segments returns the currently registered segments sorted by
// (project start, id), the flat list shipped to the mixer at export.
func (p *Planner) Segments() []Segment {
	p.mu.RLock()
	out := make([]Segment, 0, len(p.segments))
	for _, seg := range p.segments {
		out = append(out, seg)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectStart != out[j].ProjectStart {
			return out[i].ProjectStart < out[j].ProjectStart
		}
		return out[i].ID < out[j].ID
	})

	return out
}
