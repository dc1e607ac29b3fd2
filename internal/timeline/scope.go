package timeline

// Scope gives a subtree of the composition its own frame zero. Frame
// consumers under a scope read max(globalFrame - offset, 0) instead of
// the raw global frame, which is what makes a nested clip's local time
// start at zero. Offsets are absolute: a child scope's offset already
// includes every ancestor's.
type Scope struct {
	store    *Store
	offset   Frame
	frozen   bool
	snapshot Frame
}

// RootScope returns the scope with offset zero reading live store time.
func (s *Store) RootScope() *Scope {
	return &Scope{store: s}
}

// Child derives a scope whose frame zero sits localOffset frames after
// this scope's. A frozen parent produces a frozen child.
func (sc *Scope) Child(localOffset Frame) *Scope {
	if localOffset < 0 {
		localOffset = 0
	}
	return &Scope{
		store:    sc.store,
		offset:   sc.offset + localOffset,
		frozen:   sc.frozen,
		snapshot: sc.snapshot,
	}
}

// Offset returns the scope's absolute origin offset.
func (sc *Scope) Offset() Frame {
	return sc.offset
}

// Frame returns the scope-local frame. Frozen scopes read the snapshot
// taken at freeze time, so subtrees that do not depend on frame-accurate
// updates skip recomputation while the global frame moves.
func (sc *Scope) Frame() Frame {
	global := sc.snapshot
	if !sc.frozen {
		global = sc.store.Get()
	}
	local := global - sc.offset
	if local < 0 {
		return 0
	}
	return local
}

// Freeze returns a scope that reads a fixed snapshot of the current
// global frame instead of the live store.
func (sc *Scope) Freeze() *Scope {
	return &Scope{
		store:    sc.store,
		offset:   sc.offset,
		frozen:   true,
		snapshot: sc.store.Get(),
	}
}

// Frozen reports whether the scope reads a snapshot.
func (sc *Scope) Frozen() bool {
	return sc.frozen
}
