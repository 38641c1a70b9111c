package interfaces

import (
	"context"

	"docqa/internal/docqa/schema"
	"docqa/internal/models"
)

// Loader turns the raw bytes of an uploaded file into one Document per logical page.
type Loader interface {
	Load(ctx context.Context, name string, data []byte) ([]*schema.Document, error)
}

// Splitter is the interface for splitting a list of Documents into smaller chunks.
// Every returned chunk carries a fresh unique ID.
type Splitter interface {
	Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error)
}

// ObjectStore durably keeps original uploads.
type ObjectStore interface {
	// Put stores data under key and returns a URL for the stored object.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// URL returns the URL an object stored under key is reachable at.
	URL(key string) string
}

// MetadataStore persists one FileRecord per ingested document.
type MetadataStore interface {
	// FindOne returns (nil, nil) when no record has the given id.
	FindOne(ctx context.Context, id string) (*models.FileRecord, error)
	// InsertOne fails with an error matching derrors.ErrDuplicateIdentity when the id exists.
	InsertOne(ctx context.Context, record *models.FileRecord) error
	FindAll(ctx context.Context) ([]*models.FileRecord, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// QuestionStore keeps uploaded question-set entries verbatim.
type QuestionStore interface {
	InsertMany(ctx context.Context, questions []models.QuestionRecord) (int, error)
	FindAll(ctx context.Context) ([]models.QuestionRecord, error)
}

// VectorStore is the interface for storing and querying chunk vectors.
type VectorStore interface {
	// Add upserts docs by ID. Every doc must carry an embedding.
	Add(ctx context.Context, docs []*schema.Document) error
	// Query returns at most topK docs ordered by decreasing similarity.
	Query(ctx context.Context, embedding []float32, topK int) ([]*schema.Document, error)
	// Delete removes the given ids; unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	// Reset drops every entry.
	Reset(ctx context.Context) error
}

// EmbeddingModel is the interface for a text embedding model.
type EmbeddingModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// LLM is the interface for a large language model that can generate text.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EventPublisher emits document lifecycle events for operators.
type EventPublisher interface {
	Publish(ctx context.Context, event models.DocumentEvent) error
	Close() error
}

// AnswerCache stores serialized answers under the index generation they were built
// from. Callers read Generation once before retrieval and pass it to Get and Set, so
// an answer finished after Invalidate is never served. Invalidate advances the
// generation and makes every cached answer unreachable.
type AnswerCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, question string, topK int) ([]byte, bool, error)
	Set(ctx context.Context, gen int64, question string, topK int, value []byte) error
	Invalidate(ctx context.Context) error
}
