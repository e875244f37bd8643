package todo

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is wrapped by the StorageError returned when the store is
// used before Initialize completes.
var ErrNotInitialized = errors.New("storage not initialized, call Initialize first")

// Error codes reported to tool callers
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "TODO_NOT_FOUND"
	CodeStorage    = "STORAGE_ERROR"
	CodeFileRead   = "FILE_READ_ERROR"
	CodeFileWrite  = "FILE_WRITE_ERROR"
	CodeBackup     = "BACKUP_ERROR"
	CodeInternal   = "INTERNAL_ERROR"
)

// ValidationError reports a record or document that fails the schema, a
// duplicate id, or an unrecognized file format. It is never retried.
type ValidationError struct {
	Field   string
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// Code returns the wire error code
func (e *ValidationError) Code() string { return CodeValidation }

// NotFoundError reports an operation on a record that must exist but does not
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Code returns the wire error code
func (e *NotFoundError) Code() string { return CodeNotFound }

// StorageError wraps store-level failures: use before Initialize, or I/O that
// kept failing after retries.
type StorageError struct {
	Message string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StorageError) Unwrap() error { return e.Err }

// Code returns the wire error code
func (e *StorageError) Code() string { return CodeStorage }

// FileOp names the file operation that failed
type FileOp string

const (
	OpRead    FileOp = "read"
	OpWrite   FileOp = "write"
	OpBackup  FileOp = "backup"
	OpRestore FileOp = "restore"
)

// FileError is a read, write, backup or restore failure on a specific path
type FileError struct {
	Op      FileOp
	Path    string
	Message string
	Err     error
}

func (e *FileError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FileError) Unwrap() error { return e.Err }

// Code returns the wire error code
func (e *FileError) Code() string {
	switch e.Op {
	case OpRead:
		return CodeFileRead
	case OpWrite:
		return CodeFileWrite
	case OpBackup, OpRestore:
		return CodeBackup
	default:
		return CodeStorage
	}
}

// notInitialized is returned by every operation before Initialize
func notInitialized() error {
	return &StorageError{Message: "todo store unavailable", Err: ErrNotInitialized}
}

// isPermanent reports errors that retrying cannot fix
func isPermanent(err error) bool {
	var ve *ValidationError
	var nf *NotFoundError
	return errors.As(err, &ve) || errors.As(err, &nf)
}
