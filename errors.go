package asyncftp

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrCancelled is the error of an operation that was cancelled before it
// finished.
var ErrCancelled = errors.New("asyncftp: operation cancelled")

// ErrStreamFailed is captured when a stream reports EventErrorOccurred without
// an error of its own.
var ErrStreamFailed = errors.New("asyncftp: stream failed")

// LocalIOError represents a failure of a local file operation, such as
// creating the temporary file of a download or reading the source of an
// upload.
type LocalIOError struct {
	// Op is the failed file operation (e.g., "create", "write", "read")
	Op string

	// Path is the local file path
	Path string

	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e *LocalIOError) Error() string {
	return fmt.Sprintf("asyncftp: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LocalIOError) Unwrap() error {
	return e.Err
}

func localIOError(op, path string, err error) error {
	return &LocalIOError{Op: op, Path: path, Err: errors.WithStack(err)}
}
