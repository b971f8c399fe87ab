package storage

import "sync"

// MemDisk is an in-memory BackingStore. Blocks are allocated on first write.
type MemDisk struct {
	blocks   map[uint32][]byte
	numPages uint32
	mutex    sync.Mutex
}

func NewMemDisk(numPages uint32) *MemDisk {
	return &MemDisk{
		blocks:   make(map[uint32][]byte),
		numPages: numPages,
	}
}

func (md *MemDisk) NumPages() uint32 {
	return md.numPages
}

func (md *MemDisk) ReadPage(pageID uint32, buf []byte) error {
	if err := checkPageID("ReadPage", pageID, md.numPages); err != nil {
		return err
	}
	if err := checkPageBuffer("ReadPage", buf); err != nil {
		return err
	}

	md.mutex.Lock()
	defer md.mutex.Unlock()

	block, ok := md.blocks[pageID]
	if !ok {
		clear(buf)
		return nil
	}
	copy(buf, block)
	return nil
}

func (md *MemDisk) WritePage(pageID uint32, buf []byte) error {
	if err := checkPageID("WritePage", pageID, md.numPages); err != nil {
		return err
	}
	if err := checkPageBuffer("WritePage", buf); err != nil {
		return err
	}

	md.mutex.Lock()
	defer md.mutex.Unlock()

	block, ok := md.blocks[pageID]
	if !ok {
		block = make([]byte, PageSize)
		md.blocks[pageID] = block
	}
	copy(block, buf)
	return nil
}

func (md *MemDisk) Close() error {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	clear(md.blocks)
	return nil
}
