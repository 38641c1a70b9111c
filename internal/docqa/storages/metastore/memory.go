package metastore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docqa/internal/docqa/derrors"
	"docqa/internal/docqa/interfaces"
	"docqa/internal/models"
)

// MemoryStore keeps FileRecords in a map. Used by tests and the "memory" backend.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.FileRecord
}

var _ interfaces.MetadataStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.FileRecord)}
}

func (s *MemoryStore) FindOne(_ context.Context, id string) (*models.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return cloneRecord(r), nil
}

func (s *MemoryStore) InsertOne(_ context.Context, record *models.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; ok {
		return fmt.Errorf("file %s: %w", record.ID, derrors.ErrDuplicateIdentity)
	}
	s.records[record.ID] = cloneRecord(record)
	return nil
}

// FindAll returns records ordered by creation time, then id.
func (s *MemoryStore) FindAll(_ context.Context) ([]*models.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.FileRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, cloneRecord(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteMany(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.records))
	s.records = make(map[string]*models.FileRecord)
	return n, nil
}

func cloneRecord(r *models.FileRecord) *models.FileRecord {
	cp := *r
	cp.ChunkIDs = append([]string(nil), r.ChunkIDs...)
	return &cp
}

// MemoryQuestionStore keeps question entries in insertion order.
type MemoryQuestionStore struct {
	mu        sync.RWMutex
	questions []models.QuestionRecord
}

var _ interfaces.QuestionStore = (*MemoryQuestionStore)(nil)

func NewMemoryQuestionStore() *MemoryQuestionStore {
	return &MemoryQuestionStore{}
}

func (s *MemoryQuestionStore) InsertMany(_ context.Context, questions []models.QuestionRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		cp := make(models.QuestionRecord, len(q))
		for k, v := range q {
			cp[k] = v
		}
		s.questions = append(s.questions, cp)
	}
	return len(questions), nil
}

func (s *MemoryQuestionStore) FindAll(_ context.Context) ([]models.QuestionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.QuestionRecord(nil), s.questions...), nil
}
