// Package derrors defines the error kinds shared by the stores and pipelines.
package derrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRejectedInput marks an upload that failed validation. No store was touched.
	ErrRejectedInput = errors.New("rejected input")
	// ErrDuplicateIdentity is returned when a FileRecord with the same identity already exists.
	ErrDuplicateIdentity = errors.New("duplicate file identity")
	// ErrStoreUnavailable wraps failures talking to a backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEmbedding wraps embedding model failures.
	ErrEmbedding = errors.New("embedding failed")
	// ErrModelCall wraps text generation failures.
	ErrModelCall = errors.New("model call failed")
	// ErrEmptyQuestion is returned when asked a blank question.
	ErrEmptyQuestion = errors.New("question is empty")
)

// Unavailable wraps err so that it matches ErrStoreUnavailable while keeping the cause.
func Unavailable(store string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Store: store, Err: err}
}

// StoreError is a backend failure of a named store.
type StoreError struct {
	Store string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Store, e.Err)
}

// Is makes StoreError match ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *StoreError) Unwrap() error { return e.Err }

// PartialIngestionError reports that the object and FileRecord were written but the
// vector upsert failed.
type PartialIngestionError struct {
	FileID   string
	ChunkIDs []string
	Err      error
	// Compensated is true when the FileRecord was removed again. If the chunk cleanup
	// failed, OrphanedChunkIDs lists the ids that may remain in the index and
	// CompensationErr carries the cause.
	Compensated      bool
	OrphanedChunkIDs []string
	CompensationErr  error
}

func (e *PartialIngestionError) Error() string {
	msg := fmt.Sprintf("partial ingestion of %s: vector upsert failed: %v", e.FileID, e.Err)
	switch {
	case e.Compensated && len(e.OrphanedChunkIDs) > 0:
		msg += fmt.Sprintf(" (file record removed, %d chunks may remain in index: %v)", len(e.OrphanedChunkIDs), e.CompensationErr)
	case e.Compensated:
		msg += " (file record removed)"
	case e.CompensationErr != nil:
		msg += fmt.Sprintf(" (compensation failed: %v)", e.CompensationErr)
	}
	return msg
}

func (e *PartialIngestionError) Unwrap() error { return e.Err }

// PartialDeletionError reports a deletion that did not complete for every requested identity.
type PartialDeletionError struct {
	Succeeded []string
	Failed    []string
	// OrphanedChunkIDs were left in the vector index after their records were deleted.
	OrphanedChunkIDs []string
	Err              error
}

func (e *PartialDeletionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "partial deletion: %d deleted", len(e.Succeeded))
	if len(e.Failed) > 0 {
		fmt.Fprintf(&b, ", %d not deleted (%s)", len(e.Failed), strings.Join(e.Failed, ", "))
	}
	if len(e.OrphanedChunkIDs) > 0 {
		fmt.Fprintf(&b, ", %d chunks left in index", len(e.OrphanedChunkIDs))
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *PartialDeletionError) Unwrap() error { return e.Err }
