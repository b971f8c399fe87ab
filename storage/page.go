package storage

// PageSize is the size in bytes of one virtual page, one physical frame and
// one backing-store block.
const PageSize = 4096

// PageBuffer returns a zero-filled buffer sized for one page.
func PageBuffer() []byte {
	return make([]byte, PageSize)
}

func checkPageBuffer(op string, buf []byte) error {
	if len(buf) != PageSize {
		return NewStorageError(
			ErrCodeInvalidBuffer,
			op,
			"page buffer must be exactly one page",
			nil,
		).withDetail(len(buf))
	}
	return nil
}
