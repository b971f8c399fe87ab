package vm

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sibexico/virtmem/storage"
)

// Pager is the fault handler. It owns the frame table and the replacer,
// moves pages between the backing store and physical memory, and keeps
// the page table in step with the frame table.
type Pager struct {
	frames   *FrameTable
	replacer Replacer
	policy   Policy
	disk     storage.BackingStore
	metrics  *Metrics
	logger   *slog.Logger
}

// NewPager creates a pager over nframes frames using the given policy
func NewPager(nframes uint32, policy Policy, seed uint64, disk storage.BackingStore, logger *slog.Logger) (*Pager, error) {
	if disk == nil {
		return nil, storage.ErrInvalidConfig("NewPager", "backing store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	frames := NewFrameTable(nframes)
	replacer, err := NewReplacer(policy, frames, seed)
	if err != nil {
		return nil, err
	}

	return &Pager{
		frames:   frames,
		replacer: replacer,
		policy:   policy,
		disk:     disk,
		metrics:  NewMetrics(),
		logger:   logger,
	}, nil
}

// Frames exposes the frame table for inspection
func (p *Pager) Frames() *FrameTable {
	return p.frames
}

// Policy returns the eviction policy in use
func (p *Pager) Policy() Policy {
	return p.policy
}

func (p *Pager) Metrics() *Metrics {
	return p.metrics
}

// RecordAccess marks frame as recently used
func (p *Pager) RecordAccess(frame uint32) {
	p.frames.Reference(frame)
}

// HandleFault resolves an access to page that the page table could not
// satisfy. An absent page is loaded read-only, evicting a victim if no
// frame is free; a read-only page is upgraded to read-write. Any other
// state means the frame table and page table have diverged.
func (p *Pager) HandleFault(pt *PageTable, page uint32) error {
	p.metrics.RecordFault()
	start := time.Now()
	defer func() {
		p.metrics.RecordFaultLatency(time.Since(start))
	}()

	if page >= pt.NumPages() {
		return storage.ErrInvalidPageID("HandleFault", page, pt.NumPages())
	}

	frame, perm := pt.GetEntry(page)
	switch perm {
	case PermAbsent:
		return p.loadPage(pt, page)
	case PermReadOnly:
		return p.upgrade(pt, page, frame)
	default:
		return storage.ErrInconsistentState("HandleFault",
			fmt.Sprintf("fault on page %d mapped %s to frame %d", page, perm, frame))
	}
}

func (p *Pager) loadPage(pt *PageTable, page uint32) error {
	frame, ok := p.frames.FindFreeFrame()
	if !ok {
		frame, ok = p.replacer.Victim()
		if !ok {
			return storage.ErrInconsistentState("HandleFault", "no free frame and no eviction victim")
		}
		if frame >= p.frames.Len() {
			return storage.ErrInvalidFrameID("HandleFault", frame, p.frames.Len())
		}
		if err := p.evict(pt, frame); err != nil {
			return err
		}
	}

	if err := p.disk.ReadPage(page, pt.Frame(frame)); err != nil {
		return storage.ErrDiskRead("HandleFault", page, err)
	}
	p.metrics.RecordRead()

	p.frames.Occupy(frame, page, PermReadOnly)
	pt.SetEntry(page, frame, PermReadOnly)
	p.replacer.Filled(frame)

	p.logger.Debug("page loaded",
		slog.Uint64("page", uint64(page)),
		slog.Uint64("frame", uint64(frame)),
	)
	return nil
}

// evict writes the victim back if dirty, unmaps its page and empties the frame
func (p *Pager) evict(pt *PageTable, frame uint32) error {
	victim, perm, ok := p.frames.Get(frame)
	if !ok {
		return storage.ErrInconsistentState("evict",
			fmt.Sprintf("%s chose empty frame %d", p.policy, frame))
	}
	if mapped, mappedPerm := pt.GetEntry(victim); mapped != frame || mappedPerm != perm {
		return storage.ErrInconsistentState("evict",
			fmt.Sprintf("frame %d holds page %d %s but page table maps it %s to frame %d",
				frame, victim, perm, mappedPerm, mapped))
	}

	dirty := perm == PermReadWrite
	if dirty {
		if err := p.disk.WritePage(victim, pt.Frame(frame)); err != nil {
			return storage.ErrDiskWrite("evict", victim, err)
		}
		p.metrics.RecordWrite()
	}

	pt.SetEntry(victim, 0, PermAbsent)
	p.frames.Vacate(frame)
	p.metrics.RecordEviction()

	p.logger.Debug("page evicted",
		slog.Uint64("page", uint64(victim)),
		slog.Uint64("frame", uint64(frame)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

func (p *Pager) upgrade(pt *PageTable, page, frame uint32) error {
	if frame >= p.frames.Len() {
		return storage.ErrInvalidFrameID("HandleFault", frame, p.frames.Len())
	}
	resident, perm, _ := p.frames.Get(frame)
	if resident != page || perm != PermReadOnly {
		return storage.ErrInconsistentState("HandleFault",
			fmt.Sprintf("page %d mapped read-only to frame %d, but frame holds page %d %s",
				page, frame, resident, perm))
	}

	p.frames.SetPermission(frame, PermReadWrite)
	pt.SetEntry(page, frame, PermReadWrite)
	p.metrics.RecordWriteFault()

	p.logger.Debug("page upgraded",
		slog.Uint64("page", uint64(page)),
		slog.Uint64("frame", uint64(frame)),
	)
	return nil
}

// Flush writes every dirty frame back to the backing store and marks it
// clean. Flushes are counted separately from eviction writebacks.
func (p *Pager) Flush(pt *PageTable) error {
	for frame := range p.frames.Len() {
		page, perm, ok := p.frames.Get(frame)
		if !ok || perm != PermReadWrite {
			continue
		}
		if err := p.disk.WritePage(page, pt.Frame(frame)); err != nil {
			return storage.ErrDiskWrite("Flush", page, err)
		}
		p.frames.SetPermission(frame, PermReadOnly)
		pt.SetEntry(page, frame, PermReadOnly)
		p.metrics.RecordFlush()
	}
	return nil
}

// CheckConsistency verifies that the frame table and page table agree:
// every occupied frame is mapped back with the same permission, no page is
// resident twice, and every mapped page points at a frame that holds it.
func (p *Pager) CheckConsistency(pt *PageTable) error {
	owner := make(map[uint32]uint32, p.frames.Resident())
	var resident uint32

	for frame := range p.frames.Len() {
		page, perm, ok := p.frames.Get(frame)
		if !ok {
			continue
		}
		resident++
		if prev, dup := owner[page]; dup {
			return storage.ErrInconsistentState("CheckConsistency",
				fmt.Sprintf("page %d resident in frames %d and %d", page, prev, frame))
		}
		owner[page] = frame

		mapped, mappedPerm := pt.GetEntry(page)
		if mapped != frame || mappedPerm != perm {
			return storage.ErrInconsistentState("CheckConsistency",
				fmt.Sprintf("frame %d holds page %d %s but page table maps it %s to frame %d",
					frame, page, perm, mappedPerm, mapped))
		}
	}

	if resident != p.frames.Resident() || resident > p.frames.Len() {
		return storage.ErrInconsistentState("CheckConsistency",
			fmt.Sprintf("resident count %d disagrees with table count %d of %d frames",
				resident, p.frames.Resident(), p.frames.Len()))
	}

	for page := range pt.NumPages() {
		_, perm := pt.GetEntry(page)
		if perm == PermAbsent {
			continue
		}
		if _, ok := owner[page]; !ok {
			return storage.ErrInconsistentState("CheckConsistency",
				fmt.Sprintf("page %d mapped %s but held by no frame", page, perm))
		}
	}
	return nil
}
