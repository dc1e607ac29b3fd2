package clips

import "github.com/google/uuid"

// EnterSerial registers a run of same-kind clips back to back: the
// first keeps its declared start, every later clip is rewritten to
// begin one frame after the previous one ends, preserving each clip's
// original duration. All of them share a lane id so the packer keeps
// the run on one visual track.
//
// Returned ids are positionally aligned with specs; a spec whose
// rewritten interval clamps to nothing yields "" at its position, and
// the chain continues from where that clip would have ended.
func (r *Registry) EnterSerial(parentID string, specs []Spec) []string {
	ids := make([]string, len(specs))
	if len(specs) == 0 {
		return ids
	}

	laneID := specs[0].LaneID
	if laneID == "" {
		laneID = "serial-" + uuid.NewString()
	}

	cursor := specs[0].Start
	for i, spec := range specs {
		duration := spec.End - spec.Start
		spec.Start = cursor
		spec.End = cursor + duration
		spec.LaneID = laneID

		id, ok := r.Enter(parentID, spec)
		if ok {
			ids[i] = id
		}

		cursor = spec.End + 1
	}

	return ids
}
