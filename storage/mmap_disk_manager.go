//go:build linux || darwin || freebsd

package storage

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MmapDiskManager is a BackingStore over a memory-mapped file. Reads and
// writes copy between the caller's buffer and the mapping; Close syncs the
// mapping back to the file.
type MmapDiskManager struct {
	file     *os.File
	mmapData []byte
	numPages uint32
	mutex    sync.RWMutex
}

// NewMmapDiskManager creates (or truncates) fileName, sizes it for numPages
// pages and maps it shared read-write.
func NewMmapDiskManager(fileName string, numPages uint32) (*MmapDiskManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, NewStorageError(ErrCodeFileNotFound, "NewMmapDiskManager",
			fmt.Sprintf("failed to open/create file %s", fileName), err)
	}

	fileSize := int64(numPages) * PageSize
	if err := file.Truncate(fileSize); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to grow file: %w", err)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(fileSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to map file %s: %w", fileName, err)
	}

	return &MmapDiskManager{
		file:     file,
		mmapData: data,
		numPages: numPages,
	}, nil
}

func (dm *MmapDiskManager) NumPages() uint32 {
	return dm.numPages
}

// ReadPage copies a page out of the mapped region
func (dm *MmapDiskManager) ReadPage(pageID uint32, buf []byte) error {
	if err := checkPageID("ReadPage", pageID, dm.numPages); err != nil {
		return err
	}
	if err := checkPageBuffer("ReadPage", buf); err != nil {
		return err
	}

	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	if dm.mmapData == nil {
		return ErrDiskRead("ReadPage", pageID, os.ErrClosed)
	}

	offset := int64(pageID) * PageSize
	copy(buf, dm.mmapData[offset:offset+PageSize])
	return nil
}

// WritePage copies a page into the mapped region
func (dm *MmapDiskManager) WritePage(pageID uint32, buf []byte) error {
	if err := checkPageID("WritePage", pageID, dm.numPages); err != nil {
		return err
	}
	if err := checkPageBuffer("WritePage", buf); err != nil {
		return err
	}

	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	if dm.mmapData == nil {
		return ErrDiskWrite("WritePage", pageID, os.ErrClosed)
	}

	offset := int64(pageID) * PageSize
	copy(dm.mmapData[offset:offset+PageSize], buf)
	return nil
}

// Flush ensures all written pages reach the file
func (dm *MmapDiskManager) Flush() error {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	if dm.mmapData == nil {
		return nil
	}

	if err := unix.Msync(dm.mmapData, unix.MS_SYNC); err != nil {
		return fmt.Errorf("failed to sync mapping: %w", err)
	}
	return nil
}

// Close syncs and unmaps memory and closes the file
func (dm *MmapDiskManager) Close() error {
	flushErr := dm.Flush()

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if dm.mmapData != nil {
		if err := unix.Munmap(dm.mmapData); err != nil {
			return fmt.Errorf("failed to unmap file: %w", err)
		}
		dm.mmapData = nil
	}

	if dm.file != nil {
		err := dm.file.Close()
		dm.file = nil
		if err != nil {
			return err
		}
	}

	return flushErr
}
