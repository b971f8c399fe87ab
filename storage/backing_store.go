package storage

import (
	"fmt"
	"strings"
)

// BackingStore is block-addressed persistent storage holding one PageSize
// block per virtual page. Pages that were never written read as zeros.
type BackingStore interface {
	// ReadPage fills buf with the contents of pageID
	ReadPage(pageID uint32, buf []byte) error

	// WritePage stores buf as the new contents of pageID
	WritePage(pageID uint32, buf []byte) error

	// NumPages returns the number of blocks the store was opened with
	NumPages() uint32

	Close() error
}

// Backend names accepted by OpenBackingStore
const (
	BackendFile   = "file"
	BackendMmap   = "mmap"
	BackendMemory = "memory"
)

// StoreOptions describes the backing store to open
type StoreOptions struct {
	Backend     string
	Path        string
	NumPages    uint32
	SyncWrites  bool
	Compression string // none, lz4 or snappy
}

// OpenBackingStore opens the store described by opts, wrapping it in a
// CompressedDisk when a compression algorithm is requested.
func OpenBackingStore(opts StoreOptions) (BackingStore, error) {
	if opts.NumPages == 0 {
		return nil, ErrInvalidConfig("OpenBackingStore", "backing store needs at least one page")
	}

	compression, err := ParseCompressionType(opts.Compression)
	if err != nil {
		return nil, err
	}

	var store BackingStore
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		store, err = NewDiskManager(opts.Path, opts.NumPages, opts.SyncWrites)
	case BackendMmap:
		store, err = NewMmapDiskManager(opts.Path, opts.NumPages)
	case BackendMemory:
		store = NewMemDisk(opts.NumPages)
	default:
		return nil, NewStorageError(
			ErrCodeUnknownBackend,
			"OpenBackingStore",
			fmt.Sprintf("unknown backend %q (must be file, mmap or memory)", opts.Backend),
			nil,
		)
	}
	if err != nil {
		return nil, err
	}

	if compression != CompressionNone {
		return NewCompressedDisk(store, compression), nil
	}
	return store, nil
}

func checkPageID(op string, pageID, npages uint32) error {
	if pageID >= npages {
		return ErrInvalidPageID(op, pageID, npages)
	}
	return nil
}
