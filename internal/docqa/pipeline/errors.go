package pipeline

import (
	"errors"

	"docqa/internal/docqa/derrors"
)

// Error kinds surfaced by the pipelines. They alias derrors so store adapters can
// produce them without importing this package.
var (
	ErrRejectedInput     = derrors.ErrRejectedInput
	ErrDuplicateIdentity = derrors.ErrDuplicateIdentity
	ErrStoreUnavailable  = derrors.ErrStoreUnavailable
	ErrEmbedding         = derrors.ErrEmbedding
	ErrModelCall         = derrors.ErrModelCall
	ErrEmptyQuestion     = derrors.ErrEmptyQuestion
)

type (
	PartialIngestionError = derrors.PartialIngestionError
	PartialDeletionError  = derrors.PartialDeletionError
)

// storeErr tags err as a failure of the named store unless an adapter already did.
func storeErr(store string, err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return derrors.Unavailable(store, err)
}
