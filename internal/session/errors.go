package session

import "errors"

// Typed reasons for rejected operations. State-machine violations are never
// swallowed: every rejected transition surfaces one of these so the
// presentation layer can explain it to the user.
var (
	// ErrInvalidState means the operation is not valid for the session's
	// current status. Recoverable by re-reading the session.
	ErrInvalidState = errors.New("operation not valid for current session state")

	// ErrAlreadyExists means a non-terminal session already exists for the
	// same (assessment, participant) pair.
	ErrAlreadyExists = errors.New("session already exists")

	// ErrVersionConflict means a compare-and-swap lost the race against
	// another writer. Callers re-read and retry the higher-level intent.
	ErrVersionConflict = errors.New("session version conflict")

	// ErrNotFound means the session or answer record does not exist.
	ErrNotFound = errors.New("record not found")
)
