package pipeline

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"docqa/internal/docqa/interfaces"
	"docqa/internal/docqa/splitters"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) ingestion(t *testing.T, opts ...IngestionOption) *IngestionPipeline {
	t.Helper()
	splitter, err := splitters.NewRecursiveSplitter(2000, 400)
	require.NoError(t, err)
	opts = append([]IngestionOption{WithClock(fixedClock)}, opts...)
	return NewIngestionPipeline(h.loader, splitter, h.embedder, h.objects, h.records, h.questions, h.vectors, h.log, opts...)
}

func pageText(word string, words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = word
	}
	return strings.Join(parts, " ")
}

func twoPagePDF() []byte {
	return []byte(pageText("alpha", 700) + "\f" + pageText("bravo", 500))
}

func (h *harness) counts(t *testing.T) (objects, records, vectors int) {
	t.Helper()
	all, err := h.records.FindAll(context.Background())
	require.NoError(t, err)
	n, err := h.vectors.Count(context.Background())
	require.NoError(t, err)
	return h.objects.Len(), len(all), n
}

func TestIngestDocumentWritesEveryStore(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	p := h.ingestion(t)

	res, err := p.Ingest(ctx, Upload{FileID: "report-1", FileName: "report.pdf", Data: twoPagePDF(), DeclaredType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, res.Status)
	assert.Equal(t, KindDocument, res.Kind)

	splitter, err := splitters.NewRecursiveSplitter(2000, 400)
	require.NoError(t, err)
	expected, err := splitter.SplitText(pageText("alpha", 700) + "\n\n" + pageText("bravo", 500))
	require.NoError(t, err)
	require.Greater(t, len(expected), 1)
	assert.Len(t, res.ChunkIDs, len(expected))

	record, err := h.records.FindOne(ctx, "report-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, res.ChunkIDs, record.ChunkIDs)
	assert.Equal(t, int64(len(twoPagePDF())), record.FileSize)
	assert.Equal(t, "memory://objects/report.pdf", record.FileURL)
	assert.Equal(t, fixedClock(), record.CreatedAt)
	assert.NotEmpty(t, record.SHA256)

	indexed := h.vectors.IDs("report-1")
	want := append([]string(nil), record.ChunkIDs...)
	sort.Strings(want)
	assert.Equal(t, want, indexed)

	obj, ok := h.objects.Get("report.pdf")
	require.True(t, ok)
	assert.Equal(t, "application/pdf", obj.ContentType)
}

func TestIngestSameIdentityIsSkipped(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	p := h.ingestion(t)

	first, err := p.Ingest(ctx, Upload{FileID: "f1", FileName: "a.pdf", Data: twoPagePDF(), DeclaredType: TypePDF})
	require.NoError(t, err)
	objects, records, vectors := h.counts(t)
	calls := h.embedder.Calls()

	again, err := p.Ingest(ctx, Upload{FileID: "f1", FileName: "renamed.pdf", Data: []byte("different bytes"), DeclaredType: TypePDF})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, again.Status)
	assert.Equal(t, first.ChunkIDs, again.ChunkIDs)

	o, r, v := h.counts(t)
	assert.Equal(t, []int{objects, records, vectors}, []int{o, r, v})
	assert.Equal(t, calls, h.embedder.Calls())
}

func TestIngestSameBytesUnderNewIdentityIsIngestedAgain(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	p := h.ingestion(t)

	_, err := p.Ingest(ctx, Upload{FileID: "f1", FileName: "a.pdf", Data: twoPagePDF(), DeclaredType: TypePDF})
	require.NoError(t, err)
	res, err := p.Ingest(ctx, Upload{FileID: "f2", FileName: "a.pdf", Data: twoPagePDF(), DeclaredType: TypePDF})
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, res.Status)

	_, records, _ := h.counts(t)
	assert.Equal(t, 2, records)
}

func TestIngestRejections(t *testing.T) {
	cases := []struct {
		name   string
		upload Upload
		reason string
	}{
		{"png", Upload{FileID: "img", FileName: "a.png", Data: []byte("\x89PNG"), DeclaredType: "image/png"}, "unsupported file type"},
		{"empty identity", Upload{FileID: " ", FileName: "a.pdf", Data: twoPagePDF(), DeclaredType: TypePDF}, "identity"},
		{"empty upload", Upload{FileID: "e", FileName: "a.pdf", DeclaredType: TypePDF}, "empty"},
		{"unreadable pdf", Upload{FileID: "g", FileName: "a.pdf", Data: []byte("garbage"), DeclaredType: TypePDF}, "unreadable"},
		{"no text", Upload{FileID: "n", FileName: "a.pdf", Data: []byte(" \f "), DeclaredType: TypePDF}, "no extractable text"},
		{"not a question set", Upload{FileID: "q", FileName: "q.json", Data: []byte(`{"q":"a"}`), DeclaredType: TypeJSON}, "JSON array"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			res, err := h.ingestion(t).Ingest(context.Background(), tc.upload)
			require.NoError(t, err)
			assert.Equal(t, StatusRejected, res.Status)
			assert.Contains(t, res.Reason, tc.reason)

			o, r, v := h.counts(t)
			assert.Zero(t, o+r+v)
			assert.Zero(t, h.embedder.Calls())
			qs, err := h.questions.FindAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, qs)
		})
	}
}

func TestIngestAcceptsTypeParametersAndSniffing(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	p := h.ingestion(t)

	res, err := p.Ingest(ctx, Upload{FileID: "q1", FileName: "q.json", Data: []byte(`[{"q":"a"}]`), DeclaredType: "application/json; charset=utf-8"})
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, res.Status)

	res, err = p.Ingest(ctx, Upload{FileID: "q2", FileName: "q.json", Data: []byte(`[{"q":"b"},{"q":"c"}]`)})
	require.NoError(t, err)
	assert.Equal(t, KindQuestionSet, res.Kind)
	assert.Equal(t, 2, res.QuestionCount)
}

func TestIngestQuestionSetTouchesOnlyQuestions(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	res, err := h.ingestion(t).Ingest(ctx, Upload{FileID: "qs", FileName: "qs.json", Data: []byte(`[{"question":"Q1","answer":"A1"},{"question":"Q2"}]`), DeclaredType: TypeJSON})
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, res.Status)
	assert.Equal(t, 2, res.QuestionCount)

	qs, err := h.questions.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "A1", qs[0]["answer"])

	o, r, v := h.counts(t)
	assert.Zero(t, o+r+v)
}

func TestIngestEmptyQuestionSet(t *testing.T) {
	h := newHarness()
	res, err := h.ingestion(t).Ingest(context.Background(), Upload{FileID: "qs", FileName: "qs.json", Data: []byte(`[]`), DeclaredType: TypeJSON})
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, res.Status)
	assert.Zero(t, res.QuestionCount)
}

func TestIngestEmbeddingFailureMutatesNothing(t *testing.T) {
	h := newHarness()
	h.embedder.err = errors.New("quota exceeded")

	_, err := h.ingestion(t).Ingest(context.Background(), Upload{FileID: "f1", FileName: "a.pdf", Data: twoPagePDF(), DeclaredType: TypePDF})
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.ErrorContains(t, err, "quota exceeded")

	o, r, v := h.counts(t)
	assert.Zero(t, o+r+v)
}

func TestIngestObjectStoreFailure(t *testing.T) {
	h := newHarness()
	splitter, err := splitters.NewRecursiveSplitter(2000, 400)
	require.NoError(t, err)
	p := NewIngestionPipeline(h.loader, splitter, h.embedder, failingObjects{}, h.records, h.questions, h.vectors, h.log)

	_, err = p.Ingest(context.Background(), Upload{FileID: "f1", FileName: "a.pdf", Data: twoPagePDF(), DeclaredType: TypePDF})
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, r, v := h.counts(t)
	assert.Zero(t, r+v)
}

func TestIngestExistenceCheckFailure(t *testing.T) {
	h := newHarness()
	h.records.findErr = errBackend

	_, err := h.ingestion(t).Ingest(context.Background(), Upload{FileID: "f1", FileName: "a.pdf", Data: twoPagePDF(), DeclaredType: TypePDF})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, errBackend)
}

func TestIngestConcurrentDuplicateSurfacesUniquenessError(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.seed(ctx, "f1", 2, fixedClock())
	// The existence check misses the record, as when two callers race.
	h.records.hideOnFind = true

	_, err := h.ingestion(t).Ingest(ctx, Upload{FileID: "f1", FileName: "a.pdf", Data: twoPagePDF(), DeclaredType: TypePDF})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	_, r, v := h.counts(t)
	assert.Equal(t, 1, r)
	assert.Equal(t, 2, v)
}

func TestIngestVectorFailureCompensates(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.vectors.addErr = errBackend

	_, err := h.ingestion(t).Ingest(ctx, Upload{FileID: "f1", FileName: "a.pdf", Data: twoPagePDF(), DeclaredType: TypePDF})

	var partial *PartialIngestionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "f1", partial.FileID)
	assert.NotEmpty(t, partial.ChunkIDs)
	assert.True(t, partial.Compensated)
	assert.NoError(t, partial.CompensationErr)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	record, err := h.records.FindOne(ctx, "f1")
	require.NoError(t, err)
	assert.Nil(t, record, "no visible record for a partially ingested file")
	assert.Equal(t, 1, h.objects.Len(), "original upload is retained")
}

func TestIngestCompensationWithIndexDownRemovesRecordAndReportsOrphans(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.vectors.addErr = errBackend
	h.vectors.deleteErr = errBackend

	_, err := h.ingestion(t).Ingest(ctx, Upload{FileID: "f1", FileName: "a.pdf", Data: twoPagePDF(), DeclaredType: TypePDF})

	var partial *PartialIngestionError
	require.ErrorAs(t, err, &partial)
	assert.True(t, partial.Compensated)
	assert.ElementsMatch(t, partial.ChunkIDs, partial.OrphanedChunkIDs)
	var deletion *PartialDeletionError
	assert.ErrorAs(t, partial.CompensationErr, &deletion)
	assert.Contains(t, err.Error(), "file record removed")
	assert.NotContains(t, err.Error(), "compensation failed")

	record, err := h.records.FindOne(ctx, "f1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestIngestVectorFailureWithoutCompensationKeepsRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.vectors.addErr = errBackend

	_, err := h.ingestion(t, WithCompensation(false)).Ingest(ctx, Upload{FileID: "f1", FileName: "a.pdf", Data: twoPagePDF(), DeclaredType: TypePDF})

	var partial *PartialIngestionError
	require.ErrorAs(t, err, &partial)
	assert.False(t, partial.Compensated)

	record, err := h.records.FindOne(ctx, "f1")
	require.NoError(t, err)
	assert.NotNil(t, record)
}

func TestIngestChunkSizeOverride(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	factory := func(size, overlap int) (interfaces.Splitter, error) {
		return splitters.NewRecursiveSplitter(size, overlap)
	}
	p := h.ingestion(t, WithSplitterFactory(factory))

	def, err := p.Ingest(ctx, Upload{FileID: "big", FileName: "a.pdf", Data: twoPagePDF(), DeclaredType: TypePDF})
	require.NoError(t, err)
	small, err := p.Ingest(ctx, Upload{FileID: "small", FileName: "b.pdf", Data: twoPagePDF(), DeclaredType: TypePDF, ChunkSize: 500, ChunkOverlap: 100})
	require.NoError(t, err)
	assert.Greater(t, len(small.ChunkIDs), len(def.ChunkIDs))

	bad, err := p.Ingest(ctx, Upload{FileID: "bad", FileName: "c.pdf", Data: twoPagePDF(), DeclaredType: TypePDF, ChunkSize: 100, ChunkOverlap: 100})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, bad.Status)
}
