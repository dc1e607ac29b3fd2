package clips

import "sort"

// PackLanes assigns overlapping clips to non-overlapping display
// tracks: greedy first-fit over clips sorted by (start, end, id), the
// classic minimum-platforms packing. A clip carrying a LaneID reuses
// the track previously bound to that id when the track is free at the
// clip's start; a fresh LaneID binds whichever track the clip lands
// on. The assignment is advisory layout only and never feeds into
// activity computation.
//
// Identical input sets always produce identical assignments, and two
// clips on the same track never overlap.
func PackLanes(in []Clip) map[string]int {
	sorted := make([]Clip, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		if sorted[i].End != sorted[j].End {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].ID < sorted[j].ID
	})

	assignment := make(map[string]int, len(sorted))
	laneBinding := make(map[string]int)
	// Per track, the exclusive end frame of the last clip placed there.
	var trackEnds []int64

	for _, c := range sorted {
		track := -1

		if c.LaneID != "" {
			if bound, ok := laneBinding[c.LaneID]; ok && trackEnds[bound] <= int64(c.Start) {
				track = bound
			}
		}

		if track < 0 {
			for i, end := range trackEnds {
				if end <= int64(c.Start) {
					track = i
					break
				}
			}
		}

		if track < 0 {
			trackEnds = append(trackEnds, 0)
			track = len(trackEnds) - 1
		}

		trackEnds[track] = int64(c.End) + 1
		assignment[c.ID] = track

		if c.LaneID != "" {
			if _, ok := laneBinding[c.LaneID]; !ok {
				laneBinding[c.LaneID] = track
			}
		}
	}

	return assignment
}
