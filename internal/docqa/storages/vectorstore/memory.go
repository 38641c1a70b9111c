package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"docqa/internal/docqa/interfaces"
	"docqa/internal/docqa/schema"
)

// MemoryStore is a brute-force cosine store kept in a map. Insertion order breaks score ties.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*schema.Document
	order map[string]int
	seq   int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]*schema.Document),
		order: make(map[string]int),
	}
}

// Add upserts docs by ID.
func (s *MemoryStore) Add(_ context.Context, docs []*schema.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s has no embedding", doc.ID)
		}
	}
	for _, doc := range docs {
		cp := *doc
		cp.Embedding = append([]float32(nil), doc.Embedding...)
		cp.Metadata = schema.CopyMetadata(doc.Metadata)
		if _, ok := s.order[doc.ID]; !ok {
			s.order[doc.ID] = s.seq
			s.seq++
		}
		s.docs[doc.ID] = &cp
	}
	return nil
}

// Query returns up to topK docs by decreasing cosine similarity.
func (s *MemoryStore) Query(_ context.Context, embedding []float32, topK int) ([]*schema.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]*schema.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		cp := *doc
		cp.Score = cosine(embedding, doc.Embedding)
		scored = append(scored, &cp)
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return s.order[scored[i].ID] < s.order[scored[j].ID]
	})
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}

// Delete removes ids; unknown ids are ignored.
func (s *MemoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, id)
		delete(s.order, id)
	}
	return nil
}

// Count returns the number of stored docs.
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Reset drops every doc.
func (s *MemoryStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]*schema.Document)
	s.order = make(map[string]int)
	return nil
}

// Has reports whether id is stored.
func (s *MemoryStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[id]
	return ok
}

// IDs returns the stored ids whose file_id metadata equals fileID.
func (s *MemoryStore) IDs(fileID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, doc := range s.docs {
		if doc.MetadataString(schema.MetadataKeyFileID) == fileID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ interfaces.VectorStore = (*MemoryStore)(nil)
