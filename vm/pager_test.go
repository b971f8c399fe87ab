package vm

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/sibexico/virtmem/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDisk is a MemDisk that logs which pages were read and written
// and can be told to fail
type recordingDisk struct {
	*storage.MemDisk
	reads     []uint32
	writes    []uint32
	failRead  error
	failWrite error
}

func newRecordingDisk(npages uint32) *recordingDisk {
	return &recordingDisk{MemDisk: storage.NewMemDisk(npages)}
}

func (d *recordingDisk) ReadPage(pageID uint32, buf []byte) error {
	if d.failRead != nil {
		return d.failRead
	}
	d.reads = append(d.reads, pageID)
	return d.MemDisk.ReadPage(pageID, buf)
}

func (d *recordingDisk) WritePage(pageID uint32, buf []byte) error {
	if d.failWrite != nil {
		return d.failWrite
	}
	d.writes = append(d.writes, pageID)
	return d.MemDisk.WritePage(pageID, buf)
}

type stubReplacer struct {
	frame uint32
	ok    bool
}

func (s stubReplacer) Victim() (uint32, bool) { return s.frame, s.ok }
func (s stubReplacer) Filled(uint32) {}

func newTestPager(t *testing.T, npages, nframes uint32, policy Policy) (*Pager, *PageTable, *recordingDisk) {
	t.Helper()
	disk := newRecordingDisk(npages)
	pager, err := NewPager(nframes, policy, 42, disk, nil)
	require.NoError(t, err)
	pt, err := NewPageTable(npages, nframes, pager)
	require.NoError(t, err)
	return pager, pt, disk
}

func readPage(t *testing.T, pt *PageTable, page uint32) byte {
	t.Helper()
	b, err := pt.LoadByte(int(page) * storage.PageSize)
	require.NoError(t, err)
	return b
}

func writePage(t *testing.T, pt *PageTable, page uint32, b byte) {
	t.Helper()
	require.NoError(t, pt.StoreByte(int(page)*storage.PageSize, b))
}

// residentPages lists the pages held by occupied frames
func residentPages(p *Pager) []uint32 {
	var pages []uint32
	for frame := range p.Frames().Len() {
		if page, _, ok := p.Frames().Get(frame); ok {
			pages = append(pages, page)
		}
	}
	slices.Sort(pages)
	return pages
}

func TestPagerFIFOReadScenario(t *testing.T) {
	pager, pt, disk := newTestPager(t, 4, 2, PolicyFIFO)

	want := [][]uint32{{0}, {0, 1}, {1, 2}}
	for i, page := range []uint32{0, 1, 2} {
		readPage(t, pt, page)
		assert.Equal(t, want[i], residentPages(pager), "after reading page %d", page)
		require.NoError(t, pager.CheckConsistency(pt))
	}

	stats := pager.Metrics().Snapshot()
	assert.Equal(t, uint64(3), stats.Faults)
	assert.Equal(t, uint64(3), stats.Reads)
	assert.Equal(t, uint64(0), stats.Writes)
	assert.Equal(t, uint64(1), stats.Evictions)
	assert.Empty(t, disk.writes, "clean victim is discarded")

	_, perm := pt.GetEntry(0)
	assert.Equal(t, PermAbsent, perm, "evicted page is unmapped")
}

func TestPagerFIFOWriteScenario(t *testing.T) {
	pager, pt, disk := newTestPager(t, 4, 2, PolicyFIFO)

	readPage(t, pt, 0)
	writePage(t, pt, 0, 0xAB)
	readPage(t, pt, 1)
	readPage(t, pt, 2)
	require.NoError(t, pager.CheckConsistency(pt))

	stats := pager.Metrics().Snapshot()
	assert.Equal(t, uint64(4), stats.Faults)
	assert.Equal(t, uint64(3), stats.Reads)
	assert.Equal(t, uint64(1), stats.Writes)
	assert.Equal(t, uint64(1), stats.WriteFaults)
	assert.Equal(t, []uint32{0}, disk.writes, "dirty victim written back")
	assert.Equal(t, []uint32{1, 2}, residentPages(pager))
}

func TestPagerPageSurvivesEviction(t *testing.T) {
	pager, pt, disk := newTestPager(t, 4, 2, PolicyFIFO)

	writePage(t, pt, 0, 0x11)
	writePage(t, pt, 1, 0x22)
	readPage(t, pt, 2) // evicts page 0
	readPage(t, pt, 3) // evicts page 1
	assert.Equal(t, []uint32{0, 1}, disk.writes)

	assert.Equal(t, byte(0x11), readPage(t, pt, 0))
	assert.Equal(t, byte(0x22), readPage(t, pt, 1))
	assert.Equal(t, byte(0), readPage(t, pt, 3), "never-written page reads as zero")
	require.NoError(t, pager.CheckConsistency(pt))
}

func TestPagerUpgradeIsIdempotent(t *testing.T) {
	pager, pt, disk := newTestPager(t, 4, 2, PolicyFIFO)

	writePage(t, pt, 1, 7)
	faults := pager.Metrics().GetFaults()
	assert.Equal(t, uint64(2), faults, "absent then read-only fault")

	for i := range 50 {
		writePage(t, pt, 1, byte(i))
		readPage(t, pt, 1)
	}
	assert.Equal(t, faults, pager.Metrics().GetFaults(), "read-write page never faults again")
	assert.Equal(t, []uint32{1}, disk.reads, "upgrade does no I/O")

	frame, perm := pt.GetEntry(1)
	_, framePerm, _ := pager.Frames().Get(frame)
	assert.Equal(t, PermReadWrite, perm)
	assert.Equal(t, PermReadWrite, framePerm)
}

func TestPagerFreeFramesFirst(t *testing.T) {
	pager, pt, _ := newTestPager(t, 8, 4, PolicyRandom)

	for page := range uint32(4) {
		readPage(t, pt, page)
		frame, _ := pt.GetEntry(page)
		assert.Equal(t, page, frame, "page %d takes the lowest free frame", page)
	}
	assert.Equal(t, uint64(0), pager.Metrics().GetEvictions())
}

func TestPagerClockSparesReferencedPage(t *testing.T) {
	pager, pt, _ := newTestPager(t, 8, 3, PolicyClock)

	for page := range uint32(4) {
		readPage(t, pt, page)
	}
	// All flags were set, so the first sweep took page 0
	assert.Equal(t, []uint32{1, 2, 3}, residentPages(pager))

	readPage(t, pt, 1)
	readPage(t, pt, 4)
	assert.Equal(t, []uint32{1, 3, 4}, residentPages(pager), "page 1 got a second chance")
	require.NoError(t, pager.CheckConsistency(pt))
}

func TestPagerRandomDeterministic(t *testing.T) {
	run := func() [][]uint32 {
		pager, pt, _ := newTestPager(t, 16, 4, PolicyRandom)
		rng := rand.New(rand.NewPCG(7, 7))
		var history [][]uint32
		for range 200 {
			readPage(t, pt, rng.Uint32N(16))
			history = append(history, residentPages(pager))
		}
		return history
	}

	assert.Equal(t, run(), run(), "same seed and accesses give the same residency")
}

// frameContents maps each resident page to its permission
func frameContents(p *Pager) map[uint32]Permission {
	pages := make(map[uint32]Permission)
	for frame := range p.Frames().Len() {
		if page, perm, ok := p.Frames().Get(frame); ok {
			pages[page] = perm
		}
	}
	return pages
}

func TestPagerInvariantsUnderRandomAccess(t *testing.T) {
	const npages = 10

	for _, policy := range []Policy{PolicyRandom, PolicyFIFO, PolicyClock} {
		for _, nframes := range []uint32{1, 2, 5} {
			t.Run(fmt.Sprintf("%s/%d", policy, nframes), func(t *testing.T) {
				pager, pt, disk := newTestPager(t, npages, nframes, policy)
				rng := rand.New(rand.NewPCG(1, uint64(nframes)))
				shadow := make([]byte, pt.VirtualSize())

				for range 2000 {
					before := frameContents(pager)
					written := len(disk.writes)

					addr := rng.IntN(pt.VirtualSize())
					if rng.IntN(3) == 0 {
						b := byte(rng.Uint32())
						require.NoError(t, pt.StoreByte(addr, b))
						shadow[addr] = b
					} else {
						b, err := pt.LoadByte(addr)
						require.NoError(t, err)
						require.Equal(t, shadow[addr], b, "byte at %d", addr)
					}
					require.NoError(t, pager.CheckConsistency(pt))
					require.LessOrEqual(t, pager.Frames().Resident(), nframes)

					// A page is written back exactly when it leaves its frame dirty
					after := frameContents(pager)
					var wantWrites []uint32
					for page, perm := range before {
						if _, still := after[page]; !still && perm == PermReadWrite {
							wantWrites = append(wantWrites, page)
						}
					}
					require.ElementsMatch(t, wantWrites, disk.writes[written:])
				}

				stats := pager.Metrics().Snapshot()
				assert.Equal(t, stats.Faults, stats.Reads+stats.WriteFaults, "every fault is a read or an upgrade")
				assert.LessOrEqual(t, stats.Writes, stats.Evictions)
				assert.Equal(t, int(stats.Writes), len(disk.writes))
				assert.Equal(t, int(stats.Reads), len(disk.reads))
			})
		}
	}
}

func TestPagerFlush(t *testing.T) {
	pager, pt, disk := newTestPager(t, 4, 2, PolicyFIFO)

	writePage(t, pt, 0, 5)
	readPage(t, pt, 1)
	require.NoError(t, pager.Flush(pt))

	assert.Equal(t, []uint32{0}, disk.writes)
	stats := pager.Metrics().Snapshot()
	assert.Equal(t, uint64(1), stats.Flushes)
	assert.Equal(t, uint64(0), stats.Writes, "flushes are not eviction writebacks")

	_, perm := pt.GetEntry(0)
	assert.Equal(t, PermReadOnly, perm, "flushed page is clean again")
	require.NoError(t, pager.CheckConsistency(pt))

	// Nothing left to flush
	require.NoError(t, pager.Flush(pt))
	assert.Equal(t, uint64(1), pager.Metrics().GetFlushes())
}

func TestPagerInconsistentMapping(t *testing.T) {
	t.Run("fault on read-write page", func(t *testing.T) {
		pager, pt, _ := newTestPager(t, 4, 2, PolicyFIFO)
		pt.SetEntry(1, 0, PermReadWrite)

		err := pager.HandleFault(pt, 1)
		assert.True(t, storage.IsErrorCode(err, storage.ErrCodeInconsistentState), "got %v", err)
		assert.Equal(t, uint64(1), pager.Metrics().GetFaults())
	})

	t.Run("read-only page with empty frame", func(t *testing.T) {
		pager, pt, _ := newTestPager(t, 4, 2, PolicyFIFO)
		pt.SetEntry(2, 0, PermReadOnly)

		err := pager.HandleFault(pt, 2)
		assert.True(t, storage.IsErrorCode(err, storage.ErrCodeInconsistentState), "got %v", err)
	})

	t.Run("read-only page with frame out of range", func(t *testing.T) {
		pager, pt, _ := newTestPager(t, 4, 2, PolicyFIFO)
		pt.SetEntry(2, 9, PermReadOnly)

		err := pager.HandleFault(pt, 2)
		assert.True(t, storage.IsErrorCode(err, storage.ErrCodeInvalidFrameID), "got %v", err)
	})

	t.Run("victim not mapped back", func(t *testing.T) {
		pager, pt, _ := newTestPager(t, 4, 2, PolicyFIFO)
		readPage(t, pt, 0)
		readPage(t, pt, 1)
		pt.SetEntry(0, 1, PermReadOnly)

		err := pager.HandleFault(pt, 2)
		assert.True(t, storage.IsErrorCode(err, storage.ErrCodeInconsistentState), "got %v", err)
		assert.Error(t, pager.CheckConsistency(pt))
	})

	t.Run("page out of range", func(t *testing.T) {
		pager, pt, _ := newTestPager(t, 4, 2, PolicyFIFO)

		err := pager.HandleFault(pt, 4)
		assert.True(t, storage.IsErrorCode(err, storage.ErrCodeInvalidPageID), "got %v", err)
	})
}

func TestPagerBadVictim(t *testing.T) {
	pager, pt, _ := newTestPager(t, 4, 2, PolicyFIFO)
	readPage(t, pt, 0)
	readPage(t, pt, 1)

	pager.replacer = stubReplacer{ok: false}
	err := pager.HandleFault(pt, 2)
	assert.True(t, storage.IsErrorCode(err, storage.ErrCodeInconsistentState), "got %v", err)

	pager.replacer = stubReplacer{frame: 5, ok: true}
	err = pager.HandleFault(pt, 2)
	assert.True(t, storage.IsErrorCode(err, storage.ErrCodeInvalidFrameID), "got %v", err)

	assert.NoError(t, pager.CheckConsistency(pt), "failed faults leave the tables untouched")
}

func TestPagerDiskFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("read", func(t *testing.T) {
		pager, pt, disk := newTestPager(t, 4, 2, PolicyFIFO)
		disk.failRead = boom

		_, err := pt.LoadByte(0)
		assert.True(t, storage.IsErrorCode(err, storage.ErrCodeDiskReadFailed), "got %v", err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, uint64(0), pager.Metrics().GetReads())
	})

	t.Run("write back", func(t *testing.T) {
		pager, pt, disk := newTestPager(t, 4, 2, PolicyFIFO)
		writePage(t, pt, 0, 1)
		readPage(t, pt, 1)
		disk.failWrite = boom

		_, err := pt.LoadByte(2 * storage.PageSize)
		assert.True(t, storage.IsErrorCode(err, storage.ErrCodeDiskWriteFailed), "got %v", err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, uint64(0), pager.Metrics().GetWrites())
	})
}

func TestPagerRecordAccess(t *testing.T) {
	pager, pt, _ := newTestPager(t, 4, 2, PolicyClock)
	readPage(t, pt, 0)

	frame, _ := pt.GetEntry(0)
	pager.Frames().ClearReference(frame)
	readPage(t, pt, 0)
	assert.True(t, pager.Frames().Referenced(frame), "satisfied access sets the reference flag")
}

func TestNewPagerErrors(t *testing.T) {
	_, err := NewPager(2, PolicyFIFO, 1, nil, nil)
	assert.True(t, storage.IsErrorCode(err, storage.ErrCodeInvalidConfig))

	_, err = NewPager(0, PolicyFIFO, 1, storage.NewMemDisk(1), nil)
	assert.True(t, storage.IsErrorCode(err, storage.ErrCodeInvalidConfig))

	pager, err := NewPager(2, PolicyClock, 1, storage.NewMemDisk(1), nil)
	require.NoError(t, err)
	assert.Equal(t, PolicyClock, pager.Policy())
}
