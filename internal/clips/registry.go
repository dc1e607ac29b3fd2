package clips

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"framestage/internal/timeline"
)

// Clip is a time-scoped subtree of the composition. Start and End are
// inclusive and always expressed in global (project-absolute) frames;
// a clip entered under a parent is translated from the parent's local
// frame zero and clamped into the parent's interval, so a child can
// never extend past its parent.
type Clip struct {
	ID       string         `json:"id"`
	Start    timeline.Frame `json:"start"`
	End      timeline.Frame `json:"end"`
	Label    string         `json:"label,omitempty"`
	Depth    int            `json:"depth"`
	ParentID string         `json:"parent_id,omitempty"`
	LaneID   string         `json:"lane_id,omitempty"`
}

// Spec describes a clip at enter time. Start and End are local to the
// parent's frame zero (or absolute for root clips). MountID, when set,
// is the stable per-mount identity: re-entering with the same MountID
// replaces the previous registration with updated bounds.
type Spec struct {
	MountID string
	Start   timeline.Frame
	End     timeline.Frame
	Label   string
	LaneID  string
}

// Registry tracks every active clip's absolute interval, nesting depth
// and parent link, plus the user-controlled hidden set. Entries are
// owned by whoever entered them: components only add or remove their
// own clip, never another's. The hidden set is the one structure
// mutated by an external actor instead.
type Registry struct {
	mu     sync.RWMutex
	clips  map[string]Clip
	hidden map[string]bool
	logger zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		clips:  make(map[string]Clip),
		hidden: make(map[string]bool),
		logger: logger,
	}
}

// Enter registers a clip under parentID ("" for a root clip) and
// returns its id. The spec's interval is translated into the parent's
// absolute space and clamped; if the clamped interval is inverted the
// clip registers nothing and the second return is false. That is not
// an error: a clip collapsed to an empty span simply contributes
// nothing.
func (r *Registry) Enter(parentID string, spec Spec) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		start = spec.Start
		end   = spec.End
		depth = 0
	)

	if parentID != "" {
		parent, ok := r.clips[parentID]
		if !ok {
			r.logger.Warn().Str("parent_id", parentID).Msg("enter with unknown parent")
			return "", false
		}
		start = parent.Start + spec.Start
		end = parent.Start + spec.End
		// Intersection-style clamp: raising only the start and
		// lowering only the end leaves a child that misses its
		// parent entirely as an inverted (rejected) interval.
		if start < parent.Start {
			start = parent.Start
		}
		if end > parent.End {
			end = parent.End
		}
		depth = parent.Depth + 1
	} else {
		if start < 0 {
			start = 0
		}
	}

	if end < start {
		return "", false
	}

	id := spec.MountID
	if id == "" {
		id = uuid.NewString()
	}

	r.clips[id] = Clip{
		ID:       id,
		Start:    start,
		End:      end,
		Label:    spec.Label,
		Depth:    depth,
		ParentID: parentID,
		LaneID:   spec.LaneID,
	}

	r.logger.Debug().
		Str("id", id).
		Int64("start", int64(start)).
		Int64("end", int64(end)).
		Int("depth", depth).
		Msg("clip entered")

	return id, true
}

// Exit removes a clip. Exiting an unknown id is a no-op so teardown
// paths stay idempotent. The clip's hidden flag is kept: hiding is a
// user decision that survives remounts under the same mount id.
func (r *Registry) Exit(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clips, id)
}

// Get returns a clip by id.
func (r *Registry) Get(id string) (Clip, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clips[id]
	return c, ok
}

// Len returns the number of registered clips.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clips)
}

// Snapshot returns all registered clips sorted by (start, end, id).
// The ordering is deterministic so layout recomputation stays stable
// for identical clip sets.
func (r *Registry) Snapshot() []Clip {
	r.mu.RLock()
	out := make([]Clip, 0, len(r.clips))
	for _, c := range r.clips {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		if out[i].End != out[j].End {
			return out[i].End < out[j].End
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// SetHidden flips a clip's explicit hidden flag. Only direct user
// action calls this; effective visibility is derived, never stored.
func (r *Registry) SetHidden(id string, hidden bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hidden {
		r.hidden[id] = true
	} else {
		delete(r.hidden, id)
	}
}

// Hidden returns a clip's own hidden flag, ignoring ancestors.
func (r *Registry) Hidden(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hidden[id]
}

// EffectiveVisible walks the parent chain from the clip upward; any
// hidden node in the chain, the clip itself included, hides the clip
// regardless of its own flag.
func (r *Registry) EffectiveVisible(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.effectiveVisibleLocked(id)
}

func (r *Registry) effectiveVisibleLocked(id string) bool {
	for id != "" {
		if r.hidden[id] {
			return false
		}
		c, ok := r.clips[id]
		if !ok {
			return true
		}
		id = c.ParentID
	}
	return true
}

// Active reports whether a clip participates at the given frame: it
// must have a registered (valid) span, the frame must lie inside it,
// and it must be effectively visible.
func (r *Registry) Active(id string, frame timeline.Frame) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clips[id]
	if !ok {
		return false
	}
	if frame < c.Start || frame > c.End {
		return false
	}
	return r.effectiveVisibleLocked(id)
}
