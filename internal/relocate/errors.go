package relocate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRelocationInProgress is returned when Relocate or ReclaimOrphans is
// called while another call holds the coordinator.
var ErrRelocationInProgress = errors.New("a relocation is already in progress")

// ValidationError rejects a destination before anything is touched.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid destination: %s: %v", e.Reason, e.Err)
	}
	return "invalid destination: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// failureSampleSize bounds the paths kept on a FileMigrationError.
const failureSampleSize = 10

// FileMigrationError reports entries that could not be copied. Both roots
// are left in place.
type FileMigrationError struct {
	Failed int
	Sample []string
}

func (e *FileMigrationError) Error() string {
	shown := e.Sample
	if len(shown) > 3 {
		shown = shown[:3]
	}
	msg := fmt.Sprintf("file migration failed for %d entries: %s", e.Failed, strings.Join(shown, ", "))
	if e.Failed > len(shown) {
		msg += "..."
	}
	return msg
}

// PersistenceError means files were migrated but the new root could not be
// recorded; the old root is still active.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "files were migrated but the new root could not be recorded: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
