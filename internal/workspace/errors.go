package workspace

import "errors"

// Error taxonomy for workspace operations. All are matched with errors.Is;
// operational context is attached with fmt.Errorf("%w: ...").
var (
	// ErrBoundaryViolation means a path resolves outside the configured
	// boundary set. Never retried, never downgraded.
	ErrBoundaryViolation = errors.New("path is outside the allowed workspace")

	// ErrNotFound means the target does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrAlreadyExists means the destination name is already taken.
	ErrAlreadyExists = errors.New("file already exists")

	// ErrNotADirectory means a directory operation hit a regular file.
	ErrNotADirectory = errors.New("not a directory")

	// ErrIsADirectory means a file operation hit a directory.
	ErrIsADirectory = errors.New("is a directory")

	// ErrContentRejected means the content scanner matched a deny pattern.
	ErrContentRejected = errors.New("content rejected by security policy")

	// ErrTransactionState means an illegal begin/commit/rollback sequence,
	// or an unrecoverable rollback (missing or corrupt backup).
	ErrTransactionState = errors.New("invalid transaction state")
)
