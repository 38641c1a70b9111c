package pipeline

import (
	"context"
	"errors"
	"fmt"

	"docqa/internal/docqa/interfaces"
	"docqa/internal/models"
	"docqa/pkg/logger"
)

// DeleteResult reports the identities handled by a deletion.
type DeleteResult struct {
	Deleted  []string `json:"deleted"`
	NotFound []string `json:"not_found,omitempty"`
	// ChunkIDs are the vector entries removed along with the deleted records.
	ChunkIDs []string `json:"chunk_ids,omitempty"`
}

// ResetResult reports what a ResetIndex removed.
type ResetResult struct {
	Records int64 `json:"records"`
	Chunks  int   `json:"chunks"`
}

// DocumentManager lists and deletes ingested files. Original uploads stay in the object
// store.
type DocumentManager struct {
	records interfaces.MetadataStore
	vectors interfaces.VectorStore
	log     *logger.Logger
}

// NewDocumentManager creates a new DocumentManager.
func NewDocumentManager(records interfaces.MetadataStore, vectors interfaces.VectorStore, log *logger.Logger) *DocumentManager {
	return &DocumentManager{records: records, vectors: vectors, log: log}
}

// List returns every FileRecord ordered by creation time.
func (m *DocumentManager) List(ctx context.Context) ([]*models.FileRecord, error) {
	records, err := m.records.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list file records: %w", storeErr("metadata store", err))
	}
	return records, nil
}

// Delete removes the FileRecords for ids and then their chunks from the vector index.
//
// All records are looked up before anything is deleted; a lookup failure aborts with no
// mutation. Records are deleted one at a time and the first failure stops the loop. Only
// chunks of records that were actually deleted are removed, so a failure leaves at worst
// orphaned vector entries and never a record pointing at missing chunks.
func (m *DocumentManager) Delete(ctx context.Context, ids []string) (*DeleteResult, error) {
	res := &DeleteResult{Deleted: []string{}}

	var found []*models.FileRecord
	for _, id := range dedupe(ids) {
		record, err := m.records.FindOne(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("look up %s: %w", id, storeErr("metadata store", err))
		}
		if record == nil {
			res.NotFound = append(res.NotFound, id)
			continue
		}
		found = append(found, record)
	}

	var (
		chunkIDs  []string
		seen      = make(map[string]struct{})
		failed    []string
		recordErr error
	)
	for i, record := range found {
		if _, err := m.records.DeleteMany(ctx, []string{record.ID}); err != nil {
			recordErr = storeErr("metadata store", err)
			for _, rest := range found[i:] {
				failed = append(failed, rest.ID)
			}
			m.log.WithError(err).Error(fmt.Sprintf("Failed to delete file record %s, stopping", record.ID))
			break
		}
		res.Deleted = append(res.Deleted, record.ID)
		for _, c := range record.ChunkIDs {
			if _, dup := seen[c]; !dup {
				seen[c] = struct{}{}
				chunkIDs = append(chunkIDs, c)
			}
		}
	}

	if len(chunkIDs) > 0 {
		if err := m.vectors.Delete(ctx, chunkIDs); err != nil {
			m.log.WithError(err).Error(fmt.Sprintf("Failed to delete %d chunks; they are orphaned in the vector index", len(chunkIDs)))
			return res, &PartialDeletionError{
				Succeeded:        res.Deleted,
				Failed:           failed,
				OrphanedChunkIDs: chunkIDs,
				Err:              errors.Join(recordErr, storeErr("vector index", err)),
			}
		}
		res.ChunkIDs = chunkIDs
	}

	if recordErr != nil {
		return res, &PartialDeletionError{Succeeded: res.Deleted, Failed: failed, Err: recordErr}
	}

	m.log.Info(fmt.Sprintf("Deleted %d files and %d chunks", len(res.Deleted), len(res.ChunkIDs)))
	return res, nil
}

// ResetIndex drops every FileRecord and then every vector entry. Objects and question
// records are kept.
func (m *DocumentManager) ResetIndex(ctx context.Context) (*ResetResult, error) {
	chunks, err := m.vectors.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count vectors: %w", storeErr("vector index", err))
	}
	n, err := m.records.DeleteAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("clear file records: %w", storeErr("metadata store", err))
	}
	if err := m.vectors.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset vector index after removing %d records: %w", n, storeErr("vector index", err))
	}
	m.log.Warn(fmt.Sprintf("Index reset: removed %d file records and %d chunks", n, chunks))
	return &ResetResult{Records: n, Chunks: chunks}, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
