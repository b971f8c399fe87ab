package vm

// frameEntry is the bookkeeping for one physical frame
type frameEntry struct {
	page       uint32
	perm       Permission
	referenced bool
}

// FrameTable records which page occupies each frame. It is owned and
// mutated only by the Pager; replacers read it.
type FrameTable struct {
	entries  []frameEntry
	resident uint32
}

// NewFrameTable creates a table of nframes empty frames
func NewFrameTable(nframes uint32) *FrameTable {
	return &FrameTable{
		entries: make([]frameEntry, nframes),
	}
}

// Len returns the number of frames
func (ft *FrameTable) Len() uint32 {
	return uint32(len(ft.entries))
}

// Resident returns the number of occupied frames
func (ft *FrameTable) Resident() uint32 {
	return ft.resident
}

// FindFreeFrame returns the lowest-numbered empty frame
func (ft *FrameTable) FindFreeFrame() (uint32, bool) {
	if ft.resident == uint32(len(ft.entries)) {
		return 0, false
	}
	for i := range ft.entries {
		if ft.entries[i].perm == PermAbsent {
			return uint32(i), true
		}
	}
	return 0, false
}

// Get returns the page held by frame and its permission. ok is false
// when the frame is empty.
func (ft *FrameTable) Get(frame uint32) (page uint32, perm Permission, ok bool) {
	e := &ft.entries[frame]
	return e.page, e.perm, e.perm != PermAbsent
}

// Occupy loads page into frame and marks it referenced
func (ft *FrameTable) Occupy(frame, page uint32, perm Permission) {
	e := &ft.entries[frame]
	if e.perm == PermAbsent && perm != PermAbsent {
		ft.resident++
	}
	e.page = page
	e.perm = perm
	e.referenced = true
}

// SetPermission changes the permission of an occupied frame
func (ft *FrameTable) SetPermission(frame uint32, perm Permission) {
	e := &ft.entries[frame]
	switch {
	case e.perm == PermAbsent && perm != PermAbsent:
		ft.resident++
	case e.perm != PermAbsent && perm == PermAbsent:
		ft.resident--
	}
	e.perm = perm
}

// Vacate empties frame and returns what it held. Any writeback must
// happen before this call.
func (ft *FrameTable) Vacate(frame uint32) (page uint32, perm Permission) {
	e := &ft.entries[frame]
	page, perm = e.page, e.perm
	if perm != PermAbsent {
		ft.resident--
	}
	*e = frameEntry{}
	return page, perm
}

func (ft *FrameTable) Reference(frame uint32) {
	ft.entries[frame].referenced = true
}

func (ft *FrameTable) ClearReference(frame uint32) {
	ft.entries[frame].referenced = false
}

func (ft *FrameTable) Referenced(frame uint32) bool {
	return ft.entries[frame].referenced
}
