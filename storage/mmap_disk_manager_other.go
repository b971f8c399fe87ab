//go:build !(linux || darwin || freebsd)

package storage

import "fmt"

// MmapDiskManager is only available on platforms with unix mmap support
type MmapDiskManager struct {
	DiskManager
}

func NewMmapDiskManager(fileName string, numPages uint32) (*MmapDiskManager, error) {
	return nil, NewStorageError(
		ErrCodeUnknownBackend,
		"NewMmapDiskManager",
		fmt.Sprintf("mmap backend is not supported on this platform (file %s)", fileName),
		nil,
	)
}
