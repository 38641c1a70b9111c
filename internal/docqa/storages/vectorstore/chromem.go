package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"docqa/internal/docqa/interfaces"
	"docqa/internal/docqa/schema"

	chromem "github.com/philippgille/chromem-go"
)

// errEmbeddingRequired is returned by the collection's embedding func; every chunk
// is embedded before it reaches the store.
var errEmbeddingRequired = errors.New("chromem store requires precomputed embeddings")

// ChromemStore keeps chunk vectors in an embedded chromem-go collection,
// optionally persisted to a directory.
type ChromemStore struct {
	db   *chromem.DB
	name string

	mu         sync.RWMutex
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) the collection. An empty dir keeps everything in memory.
func NewChromemStore(dir, collection string, compress bool) (*ChromemStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if dir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dir, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db at %s: %w", dir, err)
		}
	}

	s := &ChromemStore{db: db, name: collection}
	col, err := db.GetOrCreateCollection(collection, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collection = col
	return s, nil
}

func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errEmbeddingRequired
}

func (s *ChromemStore) col() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

// Add upserts docs; chromem replaces documents with the same ID.
func (s *ChromemStore) Add(ctx context.Context, docs []*schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s: %w", doc.ID, errEmbeddingRequired)
		}
		chromDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Text,
			Embedding: doc.Embedding,
			Metadata:  metadataToMap(doc.Metadata),
		}
	}
	return s.col().AddDocuments(ctx, chromDocs, 1)
}

// Query returns up to topK nearest chunks by cosine similarity.
func (s *ChromemStore) Query(ctx context.Context, embedding []float32, topK int) ([]*schema.Document, error) {
	col := s.col()
	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	docs := make([]*schema.Document, len(results))
	for i, r := range results {
		docs[i] = &schema.Document{
			ID:       r.ID,
			Text:     r.Content,
			Score:    r.Similarity,
			Metadata: mapToMetadata(r.Metadata),
		}
	}
	return docs, nil
}

// Delete removes ids; unknown ids are ignored.
func (s *ChromemStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.col().Delete(ctx, nil, nil, ids...)
}

// Count returns the number of stored chunks.
func (s *ChromemStore) Count(context.Context) (int, error) {
	return s.col().Count(), nil
}

// Reset deletes the collection (and its files) and starts an empty one.
func (s *ChromemStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := s.db.GetOrCreateCollection(s.name, nil, noEmbed)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.collection = col
	return nil
}

// metadataToMap flattens metadata to strings for chromem.
func metadataToMap(m map[string]interface{}) map[string]string {
	md := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			md[k] = val
		case int:
			md[k] = strconv.Itoa(val)
		default:
			md[k] = fmt.Sprint(val)
		}
	}
	return md
}

// mapToMetadata restores the typed keys written by metadataToMap.
func mapToMetadata(m map[string]string) map[string]interface{} {
	md := make(map[string]interface{}, len(m))
	for k, v := range m {
		md[k] = v
	}
	if n, err := strconv.Atoi(m[schema.MetadataKeyChunkIndex]); err == nil {
		md[schema.MetadataKeyChunkIndex] = n
	}
	return md
}

var _ interfaces.VectorStore = (*ChromemStore)(nil)
