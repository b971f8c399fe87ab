package storage

import (
	"fmt"
	"os"
	"sync"
)

// DiskManager is a file-backed BackingStore. The file is sized to hold every
// page up front so unwritten pages read back as zeros.
type DiskManager struct {
	file       *os.File
	numPages   uint32
	syncWrites bool
	mutex      sync.Mutex
}

// NewDiskManager creates (or truncates) fileName and sizes it for numPages pages
func NewDiskManager(fileName string, numPages uint32, syncWrites bool) (*DiskManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, NewStorageError(ErrCodeFileNotFound, "NewDiskManager",
			fmt.Sprintf("failed to open/create file %s", fileName), err)
	}

	if err := file.Truncate(int64(numPages) * PageSize); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to size file %s: %w", fileName, err)
	}

	return &DiskManager{
		file:       file,
		numPages:   numPages,
		syncWrites: syncWrites,
	}, nil
}

// NumPages returns the number of pages the file holds
func (dm *DiskManager) NumPages() uint32 {
	return dm.numPages
}

// ReadPage reads a page from disk into buf
func (dm *DiskManager) ReadPage(pageID uint32, buf []byte) error {
	if err := checkPageID("ReadPage", pageID, dm.numPages); err != nil {
		return err
	}
	if err := checkPageBuffer("ReadPage", buf); err != nil {
		return err
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int64(pageID) * PageSize
	if _, err := dm.file.ReadAt(buf, offset); err != nil {
		return ErrDiskRead("ReadPage", pageID, err)
	}

	return nil
}

// WritePage writes buf to disk at the given page ID
func (dm *DiskManager) WritePage(pageID uint32, buf []byte) error {
	if err := checkPageID("WritePage", pageID, dm.numPages); err != nil {
		return err
	}
	if err := checkPageBuffer("WritePage", buf); err != nil {
		return err
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	offset := int64(pageID) * PageSize
	if _, err := dm.file.WriteAt(buf, offset); err != nil {
		return ErrDiskWrite("WritePage", pageID, err)
	}

	if dm.syncWrites {
		if err := dm.file.Sync(); err != nil {
			return ErrDiskWrite("WritePage", pageID, err)
		}
	}
	return nil
}

// Close closes the disk manager and its underlying file
func (dm *DiskManager) Close() error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if dm.file != nil {
		err := dm.file.Close()
		dm.file = nil
		return err
	}
	return nil
}
