package derrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnavailableMatchesSentinelAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("insert: %w", Unavailable("mongo", cause))

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "mongo")
	assert.Nil(t, Unavailable("mongo", nil))
}

func TestPartialErrorsUnwrap(t *testing.T) {
	cause := Unavailable("vector", errors.New("timeout"))

	ing := &PartialIngestionError{FileID: "f1", Err: cause, Compensated: true}
	assert.ErrorIs(t, ing, ErrStoreUnavailable)
	assert.Contains(t, ing.Error(), "file record removed")

	var target *PartialIngestionError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", ing), &target))
	assert.Equal(t, "f1", target.FileID)

	orphaned := &PartialIngestionError{FileID: "f1", Err: cause, Compensated: true, OrphanedChunkIDs: []string{"c1", "c2"}, CompensationErr: cause}
	assert.Contains(t, orphaned.Error(), "file record removed, 2 chunks may remain in index")
	assert.NotContains(t, orphaned.Error(), "compensation failed")

	del := &PartialDeletionError{Succeeded: []string{"a"}, Failed: []string{"b"}, OrphanedChunkIDs: []string{"c1"}, Err: cause}
	assert.ErrorIs(t, del, ErrStoreUnavailable)
	assert.Contains(t, del.Error(), "1 deleted")
	assert.Contains(t, del.Error(), "b")
	assert.Contains(t, del.Error(), "1 chunks left")
}
