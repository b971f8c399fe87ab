package vm

import (
	"fmt"
	"log/slog"

	"github.com/sibexico/virtmem/storage"
)

// Permission is the access a page-table mapping allows
type Permission uint8

const (
	PermAbsent Permission = iota
	PermReadOnly
	PermReadWrite
)

func (p Permission) String() string {
	switch p {
	case PermAbsent:
		return "absent"
	case PermReadOnly:
		return "read-only"
	case PermReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("perm(%d)", uint8(p))
	}
}

func (p Permission) allows(write bool) bool {
	if write {
		return p == PermReadWrite
	}
	return p == PermReadOnly || p == PermReadWrite
}

// FaultHandler resolves an access the current mapping cannot satisfy
type FaultHandler interface {
	HandleFault(pt *PageTable, page uint32) error
}

// FaultHandlerFunc adapts a function to FaultHandler
type FaultHandlerFunc func(pt *PageTable, page uint32) error

func (f FaultHandlerFunc) HandleFault(pt *PageTable, page uint32) error {
	return f(pt, page)
}

// AccessRecorder is implemented by handlers that want to observe every
// access the page table satisfies, such as reference-bit tracking.
type AccessRecorder interface {
	RecordAccess(frame uint32)
}

type pageTableEntry struct {
	frame uint32
	perm  Permission
}

// PageTable simulates the MMU: it maps virtual pages to physical frames,
// serves byte accesses from physical memory, and calls the fault handler
// when a mapping is missing or too weak. The faulting access is retried
// after the handler returns, and the retry may fault again.
type PageTable struct {
	entries  []pageTableEntry
	physmem  []byte
	nframes  uint32
	handler  FaultHandler
	recorder AccessRecorder
}

// NewPageTable creates a page table of npages pages backed by nframes
// frames of physical memory
func NewPageTable(npages, nframes uint32, handler FaultHandler) (*PageTable, error) {
	if npages == 0 || nframes == 0 {
		return nil, storage.ErrInvalidConfig("NewPageTable",
			fmt.Sprintf("page table needs pages and frames (npages=%d, nframes=%d)", npages, nframes))
	}
	if handler == nil {
		return nil, storage.ErrInvalidConfig("NewPageTable", "fault handler is required")
	}

	pt := &PageTable{
		entries: make([]pageTableEntry, npages),
		physmem: make([]byte, int(nframes)*storage.PageSize),
		nframes: nframes,
		handler: handler,
	}
	if recorder, ok := handler.(AccessRecorder); ok {
		pt.recorder = recorder
	}
	return pt, nil
}

// NumPages returns the number of virtual pages
func (pt *PageTable) NumPages() uint32 {
	return uint32(len(pt.entries))
}

// NumFrames returns the number of physical frames
func (pt *PageTable) NumFrames() uint32 {
	return pt.nframes
}

// VirtualSize returns the size in bytes of the virtual address space
func (pt *PageTable) VirtualSize() int {
	return len(pt.entries) * storage.PageSize
}

// PhysicalMemory returns the simulated physical memory
func (pt *PageTable) PhysicalMemory() []byte {
	return pt.physmem
}

// Frame returns the slice of physical memory backing frame
func (pt *PageTable) Frame(frame uint32) []byte {
	off := int(frame) * storage.PageSize
	return pt.physmem[off : off+storage.PageSize]
}

// GetEntry returns the current mapping of page
func (pt *PageTable) GetEntry(page uint32) (frame uint32, perm Permission) {
	e := pt.entries[page]
	return e.frame, e.perm
}

// SetEntry replaces the mapping of page
func (pt *PageTable) SetEntry(page, frame uint32, perm Permission) {
	pt.entries[page] = pageTableEntry{frame: frame, perm: perm}
}

// LoadByte reads the byte at virtual address addr
func (pt *PageTable) LoadByte(addr int) (byte, error) {
	off, err := pt.translate("LoadByte", addr, false)
	if err != nil {
		return 0, err
	}
	return pt.physmem[off], nil
}

// StoreByte stores b at virtual address addr
func (pt *PageTable) StoreByte(addr int, b byte) error {
	off, err := pt.translate("StoreByte", addr, true)
	if err != nil {
		return err
	}
	pt.physmem[off] = b
	return nil
}

// maxFaultsPerAccess bounds how often one access may fault. A store to an
// absent page faults twice: once to load it and once to make it writable.
const maxFaultsPerAccess = 2

// translate returns the physical offset for addr. Each fault is followed by
// a retry of the access; a fault that leaves the mapping unchanged is
// reported as unresolved.
func (pt *PageTable) translate(op string, addr int, write bool) (int, error) {
	if addr < 0 || addr >= pt.VirtualSize() {
		return 0, storage.NewStorageError(
			storage.ErrCodeInvalidPageID,
			op,
			fmt.Sprintf("address %d outside virtual memory of %d bytes", addr, pt.VirtualSize()),
			nil,
		)
	}

	page := uint32(addr / storage.PageSize)
	e := pt.entries[page]
	for faults := 0; !e.perm.allows(write); faults++ {
		if faults == maxFaultsPerAccess {
			return 0, pt.unresolved(op, page, e.perm, write)
		}
		if err := pt.handler.HandleFault(pt, page); err != nil {
			return 0, err
		}
		before := e
		e = pt.entries[page]
		if e == before {
			return 0, pt.unresolved(op, page, e.perm, write)
		}
	}
	if e.frame >= pt.nframes {
		return 0, storage.ErrInvalidFrameID(op, e.frame, pt.nframes)
	}

	if pt.recorder != nil {
		pt.recorder.RecordAccess(e.frame)
	}
	return int(e.frame)*storage.PageSize + addr%storage.PageSize, nil
}

func (pt *PageTable) unresolved(op string, page uint32, perm Permission, write bool) error {
	return storage.NewStorageError(
		storage.ErrCodeFaultUnresolved,
		op,
		fmt.Sprintf("page %d still %s after fault (write=%t)", page, perm, write),
		nil,
	)
}

// Dump logs every mapped entry at debug level
func (pt *PageTable) Dump(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for page, e := range pt.entries {
		if e.perm == PermAbsent {
			continue
		}
		logger.Debug("page table entry",
			slog.Int("page", page),
			slog.Uint64("frame", uint64(e.frame)),
			slog.String("perm", e.perm.String()),
		)
	}
}

// Close releases the simulated memory
func (pt *PageTable) Close() {
	pt.entries = nil
	pt.physmem = nil
}
