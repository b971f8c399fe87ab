package storage

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of storage and paging errors
type ErrorCode int

const (
	// Generic errors
	ErrCodeUnknown ErrorCode = iota
	ErrCodeInternal

	// Page and frame errors
	ErrCodeInvalidPageID
	ErrCodeInvalidFrameID
	ErrCodeInvalidBuffer
	ErrCodePageCorrupted

	// Paging errors
	ErrCodeInconsistentState
	ErrCodeFaultUnresolved

	// Configuration errors
	ErrCodeInvalidConfig
	ErrCodeUnknownPolicy
	ErrCodeUnknownProgram
	ErrCodeUnknownBackend

	// Disk errors
	ErrCodeDiskReadFailed
	ErrCodeDiskWriteFailed
	ErrCodeFileNotFound
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:           "unknown",
	ErrCodeInternal:          "internal",
	ErrCodeInvalidPageID:     "invalid page id",
	ErrCodeInvalidFrameID:    "invalid frame id",
	ErrCodeInvalidBuffer:     "invalid buffer",
	ErrCodePageCorrupted:     "page corrupted",
	ErrCodeInconsistentState: "inconsistent state",
	ErrCodeFaultUnresolved:   "fault unresolved",
	ErrCodeInvalidConfig:     "invalid config",
	ErrCodeUnknownPolicy:     "unknown policy",
	ErrCodeUnknownProgram:    "unknown program",
	ErrCodeUnknownBackend:    "unknown backend",
	ErrCodeDiskReadFailed:    "disk read failed",
	ErrCodeDiskWriteFailed:   "disk write failed",
	ErrCodeFileNotFound:      "file not found",
}

// String returns a short human readable name for the code
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// StorageError represents a storage or paging error with context
type StorageError struct {
	Code    ErrorCode
	Message string
	Op      string // Operation that failed
	Err     error  // Underlying error (if any)
}

// Error implements the error interface
func (e *StorageError) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a specific error code
func (e *StorageError) Is(target error) bool {
	if t, ok := target.(*StorageError); ok {
		return e.Code == t.Code
	}
	return false
}

func (e *StorageError) withDetail(v any) *StorageError {
	e.Message = fmt.Sprintf("%s (got %v)", e.Message, v)
	return e
}

// NewStorageError creates a new storage error
func NewStorageError(code ErrorCode, op, message string, err error) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// Helper functions for common errors

func ErrInvalidPageID(op string, pageID, npages uint32) *StorageError {
	return NewStorageError(
		ErrCodeInvalidPageID,
		op,
		fmt.Sprintf("page %d out of range [0, %d)", pageID, npages),
		nil,
	)
}

func ErrInvalidFrameID(op string, frameID, nframes uint32) *StorageError {
	return NewStorageError(
		ErrCodeInvalidFrameID,
		op,
		fmt.Sprintf("frame %d out of range [0, %d)", frameID, nframes),
		nil,
	)
}

func ErrInconsistentState(op, message string) *StorageError {
	return NewStorageError(ErrCodeInconsistentState, op, message, nil)
}

func ErrDiskRead(op string, pageID uint32, err error) *StorageError {
	return NewStorageError(
		ErrCodeDiskReadFailed,
		op,
		fmt.Sprintf("failed to read page %d", pageID),
		err,
	)
}

func ErrDiskWrite(op string, pageID uint32, err error) *StorageError {
	return NewStorageError(
		ErrCodeDiskWriteFailed,
		op,
		fmt.Sprintf("failed to write page %d", pageID),
		err,
	)
}

func ErrInvalidConfig(op, message string) *StorageError {
	return NewStorageError(ErrCodeInvalidConfig, op, message, nil)
}

// IsErrorCode checks if an error, or any error it wraps, has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrCodeUnknown
func GetErrorCode(err error) ErrorCode {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeUnknown
}
