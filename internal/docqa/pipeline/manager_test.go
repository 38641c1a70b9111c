package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"docqa/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) manager() *DocumentManager {
	return NewDocumentManager(h.records, h.vectors, h.log)
}

func TestDeleteRemovesExactlyTheUnionOfChunks(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	a := h.seed(ctx, "a", 3, fixedClock())
	b := h.seed(ctx, "b", 5, fixedClock().Add(time.Second))
	keep := h.seed(ctx, "keep", 2, fixedClock().Add(2*time.Second))

	res, err := h.manager().Delete(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, res.Deleted)
	assert.ElementsMatch(t, append(append([]string{}, a...), b...), res.ChunkIDs)
	assert.Len(t, res.ChunkIDs, 8)

	records, err := h.records.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "keep", records[0].ID)

	n, err := h.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, id := range keep {
		assert.True(t, h.vectors.Has(id))
	}
}

func TestDeleteReportsUnknownAndDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.seed(ctx, "a", 1, fixedClock())

	res, err := h.manager().Delete(ctx, []string{"a", "a", "ghost", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Deleted)
	assert.Equal(t, []string{"ghost"}, res.NotFound)
}

func TestDeleteVectorFailureLeavesOrphansNotDanglingRecords(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	chunks := h.seed(ctx, "a", 3, fixedClock())
	h.vectors.deleteErr = errBackend

	res, err := h.manager().Delete(ctx, []string{"a"})

	var partial *PartialDeletionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"a"}, partial.Succeeded)
	assert.ElementsMatch(t, chunks, partial.OrphanedChunkIDs)
	assert.Equal(t, []string{"a"}, res.Deleted)

	record, err := h.records.FindOne(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, record)
	for _, id := range chunks {
		assert.True(t, h.vectors.Has(id), "chunk vectors remain retrievable")
	}
}

func TestDeleteStopsAtFirstRecordFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	first := h.seed(ctx, "first", 2, fixedClock())
	second := h.seed(ctx, "second", 2, fixedClock())
	third := h.seed(ctx, "third", 1, fixedClock())
	h.records.failDeleteOn = "second"

	_, err := h.manager().Delete(ctx, []string{"first", "second", "third"})

	var partial *PartialDeletionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"first"}, partial.Succeeded)
	assert.Equal(t, []string{"second", "third"}, partial.Failed)
	assert.Empty(t, partial.OrphanedChunkIDs)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	for _, id := range first {
		assert.False(t, h.vectors.Has(id))
	}
	for _, id := range append(second, third...) {
		assert.True(t, h.vectors.Has(id))
	}
	for _, id := range []string{"second", "third"} {
		r, err := h.records.FindOne(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, r)
	}
}

func TestDeleteKeepsRecordAndVectorFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	first := h.seed(ctx, "first", 2, fixedClock())
	h.seed(ctx, "second", 1, fixedClock())
	h.records.failDeleteOn = "second"
	vectorErr := errors.New("vector index timeout")
	h.vectors.deleteErr = vectorErr

	_, err := h.manager().Delete(ctx, []string{"first", "second"})

	var partial *PartialDeletionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"first"}, partial.Succeeded)
	assert.Equal(t, []string{"second"}, partial.Failed)
	assert.ElementsMatch(t, first, partial.OrphanedChunkIDs)
	assert.ErrorIs(t, err, errBackend, "record failure is kept")
	assert.ErrorIs(t, err, vectorErr)
}

func TestDeleteLookupFailureMutatesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.seed(ctx, "a", 2, fixedClock())
	h.records.findErr = errBackend

	_, err := h.manager().Delete(ctx, []string{"a"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	h.records.findErr = nil
	o, r, v := h.counts(t)
	assert.Equal(t, []int{0, 1, 2}, []int{o, r, v})
}

func TestListIsOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.seed(ctx, "newer", 1, fixedClock().Add(time.Hour))
	h.seed(ctx, "older", 1, fixedClock())

	records, err := h.manager().List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "older", records[0].ID)
}

func TestResetIndexKeepsObjectsAndQuestions(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.seed(ctx, "a", 3, fixedClock())
	h.seed(ctx, "b", 2, fixedClock())
	_, err := h.objects.Put(ctx, "a.pdf", []byte("pdf"), TypePDF)
	require.NoError(t, err)
	_, err = h.questions.InsertMany(ctx, []models.QuestionRecord{{"q": "kept"}})
	require.NoError(t, err)

	res, err := h.manager().ResetIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Records)
	assert.Equal(t, 5, res.Chunks)

	o, r, v := h.counts(t)
	assert.Equal(t, []int{1, 0, 0}, []int{o, r, v})
	qs, err := h.questions.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, qs, 1)
}
