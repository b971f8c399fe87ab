package storage

import (
	"log/slog"
	"sync"
)

// CompressedDisk wraps a BackingStore and stores each written page
// compressed when that saves at least MinCompressionThreshold bytes.
// Pages that do not compress well are stored raw; an in-memory bitmap
// records which blocks hold a compressed image.
type CompressedDisk struct {
	inner       BackingStore
	compression CompressionType
	compressed  []bool
	scratch     []byte
	stats       PageCompressionStats
	mutex       sync.Mutex
}

func NewCompressedDisk(inner BackingStore, compression CompressionType) *CompressedDisk {
	return &CompressedDisk{
		inner:       inner,
		compression: compression,
		compressed:  make([]bool, inner.NumPages()),
		scratch:     PageBuffer(),
	}
}

func (cd *CompressedDisk) NumPages() uint32 {
	return cd.inner.NumPages()
}

// ReadPage reads the stored block and decompresses it into buf when needed
func (cd *CompressedDisk) ReadPage(pageID uint32, buf []byte) error {
	if err := checkPageID("ReadPage", pageID, cd.NumPages()); err != nil {
		return err
	}

	cd.mutex.Lock()
	defer cd.mutex.Unlock()

	if !cd.compressed[pageID] {
		return cd.inner.ReadPage(pageID, buf)
	}

	if err := checkPageBuffer("ReadPage", buf); err != nil {
		return err
	}
	if err := cd.inner.ReadPage(pageID, cd.scratch); err != nil {
		return err
	}

	cp, err := DeserializeCompressedPage(cd.scratch)
	if err != nil {
		return NewStorageError(ErrCodePageCorrupted, "ReadPage", "bad compressed block", err)
	}
	data, err := DecompressPage(cp)
	if err != nil {
		return NewStorageError(ErrCodePageCorrupted, "ReadPage", "bad compressed block", err)
	}

	copy(buf, data)
	return nil
}

// WritePage compresses buf and writes the resulting block
func (cd *CompressedDisk) WritePage(pageID uint32, buf []byte) error {
	if err := checkPageID("WritePage", pageID, cd.NumPages()); err != nil {
		return err
	}
	if err := checkPageBuffer("WritePage", buf); err != nil {
		return err
	}

	cd.mutex.Lock()
	defer cd.mutex.Unlock()

	cp, err := CompressPage(buf, cd.compression)
	if err != nil {
		return ErrDiskWrite("WritePage", pageID, err)
	}
	cd.stats.AddCompression(cp)

	if cp.CompressionType == CompressionNone {
		if err := cd.inner.WritePage(pageID, buf); err != nil {
			return err
		}
		cd.compressed[pageID] = false
		return nil
	}

	if err := SerializeCompressedPage(cp, cd.scratch); err != nil {
		return ErrDiskWrite("WritePage", pageID, err)
	}
	if err := cd.inner.WritePage(pageID, cd.scratch); err != nil {
		return err
	}
	cd.compressed[pageID] = true
	return nil
}

// Stats returns a copy of the compression statistics
func (cd *CompressedDisk) Stats() PageCompressionStats {
	cd.mutex.Lock()
	defer cd.mutex.Unlock()
	return cd.stats
}

// LogStats logs the compression statistics
func (cd *CompressedDisk) LogStats(logger *slog.Logger) {
	stats := cd.Stats()
	logger.Info("page compression",
		slog.String("algorithm", cd.compression.String()),
		slog.Uint64("pages_written", stats.TotalPages),
		slog.Uint64("pages_compressed", stats.CompressedPages),
		slog.Uint64("bytes_original", stats.TotalBytesOriginal),
		slog.Uint64("bytes_stored", stats.TotalBytesStored),
		slog.Uint64("bytes_saved", stats.GetSpaceSavings()),
		slog.Float64("compression_ratio", stats.GetCompressionRatio()),
		slog.Float64("stored_ratio", stats.GetStoredRatio()),
	)
}

func (cd *CompressedDisk) Close() error {
	return cd.inner.Close()
}
