package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"docqa/internal/docqa/loaders"
	"docqa/internal/docqa/schema"
	"docqa/internal/docqa/storages/metastore"
	"docqa/internal/docqa/storages/objectstore"
	"docqa/internal/docqa/storages/vectorstore"
	"docqa/internal/models"
	"docqa/pkg/logger"
)

var errBackend = errors.New("backend unreachable")

// pageLoader treats "\f" as a page break. Data starting with "garbage" is unreadable.
type pageLoader struct{}

func (pageLoader) Load(_ context.Context, name string, data []byte) ([]*schema.Document, error) {
	if strings.HasPrefix(string(data), "garbage") {
		return nil, loaders.ErrUnreadablePDF
	}
	var docs []*schema.Document
	for i, page := range strings.Split(string(data), "\f") {
		docs = append(docs, &schema.Document{
			ID:       name + "-" + string(rune('0'+i)),
			Text:     page,
			Metadata: map[string]interface{}{schema.MetadataKeyFileName: name},
		})
	}
	return docs, nil
}

// hashEmbedder derives a small deterministic vector from the letters of each text.
type hashEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 8)
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				v[(r-'a')%8]++
			}
		}
		v[7] += 0.01
		out[i] = v
	}
	return out, nil
}

func (e *hashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type recordingLLM struct {
	prompts []string
	answer  string
	err     error
}

func (l *recordingLLM) Generate(_ context.Context, prompt string) (string, error) {
	l.prompts = append(l.prompts, prompt)
	if l.err != nil {
		return "", l.err
	}
	return l.answer, nil
}

// flakyVectors injects failures into a MemoryStore.
type flakyVectors struct {
	*vectorstore.MemoryStore
	addErr, queryErr, deleteErr error
}

func (v *flakyVectors) Add(ctx context.Context, docs []*schema.Document) error {
	if v.addErr != nil {
		return v.addErr
	}
	return v.MemoryStore.Add(ctx, docs)
}

func (v *flakyVectors) Query(ctx context.Context, emb []float32, k int) ([]*schema.Document, error) {
	if v.queryErr != nil {
		return nil, v.queryErr
	}
	return v.MemoryStore.Query(ctx, emb, k)
}

func (v *flakyVectors) Delete(ctx context.Context, ids []string) error {
	if v.deleteErr != nil {
		return v.deleteErr
	}
	return v.MemoryStore.Delete(ctx, ids)
}

// flakyRecords injects failures into a metastore.MemoryStore.
type flakyRecords struct {
	*metastore.MemoryStore
	findErr      error
	hideOnFind   bool
	failDeleteOn string
}

func (r *flakyRecords) FindOne(ctx context.Context, id string) (*models.FileRecord, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if r.hideOnFind {
		return nil, nil
	}
	return r.MemoryStore.FindOne(ctx, id)
}

func (r *flakyRecords) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	for _, id := range ids {
		if id == r.failDeleteOn {
			return 0, errBackend
		}
	}
	return r.MemoryStore.DeleteMany(ctx, ids)
}

type failingObjects struct{}

func (failingObjects) Put(context.Context, string, []byte, string) (string, error) {
	return "", errBackend
}

func (failingObjects) URL(key string) string { return key }

type harness struct {
	loader    pageLoader
	embedder  *hashEmbedder
	objects   *objectstore.MemoryStore
	records   *flakyRecords
	questions *metastore.MemoryQuestionStore
	vectors   *flakyVectors
	log       *logger.Logger
}

func newHarness() *harness {
	return &harness{
		embedder:  &hashEmbedder{},
		objects:   objectstore.NewMemoryStore(),
		records:   &flakyRecords{MemoryStore: metastore.NewMemoryStore()},
		questions: metastore.NewMemoryQuestionStore(),
		vectors:   &flakyVectors{MemoryStore: vectorstore.NewMemoryStore()},
		log:       logger.Nop(),
	}
}

func fixedClock() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

// seed writes a FileRecord and its chunks directly, bypassing ingestion.
func (h *harness) seed(ctx context.Context, fileID string, chunks int, created time.Time) []string {
	ids := make([]string, chunks)
	docs := make([]*schema.Document, chunks)
	for i := range ids {
		ids[i] = fileID + "-chunk-" + string(rune('a'+i))
		docs[i] = &schema.Document{
			ID:        ids[i],
			Text:      "text of " + ids[i],
			Embedding: []float32{float32(i + 1), 1},
			Metadata:  map[string]interface{}{schema.MetadataKeyFileID: fileID},
		}
	}
	if err := h.vectors.MemoryStore.Add(ctx, docs); err != nil {
		panic(err)
	}
	if err := h.records.MemoryStore.InsertOne(ctx, &models.FileRecord{ID: fileID, FileName: fileID + ".pdf", ChunkIDs: ids, CreatedAt: created}); err != nil {
		panic(err)
	}
	return ids
}
