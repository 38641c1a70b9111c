package pipeline

import (
	"context"
	"fmt"

	"docqa/internal/docqa/interfaces"
	"docqa/internal/docqa/schema"
	"docqa/pkg/logger"
)

// OutcomeKind separates "no matches" from "index unreachable".
type OutcomeKind string

const (
	OutcomeFound       OutcomeKind = "found"
	OutcomeEmpty       OutcomeKind = "empty"
	OutcomeUnavailable OutcomeKind = "unavailable"
)

// RetrievalOutcome is the result of a retrieval. Err is set only for OutcomeUnavailable.
type RetrievalOutcome struct {
	Kind   OutcomeKind
	Chunks []*schema.Document
	Err    error
}

// RetrievalPipeline finds the chunks nearest to a question.
type RetrievalPipeline struct {
	embedder interfaces.EmbeddingModel
	vectors  interfaces.VectorStore
	topK     int
	log      *logger.Logger
}

// NewRetrievalPipeline creates a new RetrievalPipeline. topK is used when a call passes k <= 0.
func NewRetrievalPipeline(embedder interfaces.EmbeddingModel, vectors interfaces.VectorStore, topK int, log *logger.Logger) *RetrievalPipeline {
	if topK <= 0 {
		topK = 3
	}
	return &RetrievalPipeline{embedder: embedder, vectors: vectors, topK: topK, log: log}
}

// Run embeds question and queries the vector index. It never returns an error; failures
// are reported as OutcomeUnavailable.
func (p *RetrievalPipeline) Run(ctx context.Context, question string, k int) RetrievalOutcome {
	if k <= 0 {
		k = p.topK
	}

	queryEmbeddings, err := p.embedder.Embed(ctx, []string{question})
	if err == nil && len(queryEmbeddings) != 1 {
		err = fmt.Errorf("expected 1 query vector, got %d", len(queryEmbeddings))
	}
	if err != nil {
		p.log.WithError(err).Warn("Failed to embed query, answering without context")
		return RetrievalOutcome{Kind: OutcomeUnavailable, Err: fmt.Errorf("%w: %w", ErrEmbedding, err)}
	}

	docs, err := p.vectors.Query(ctx, queryEmbeddings[0], k)
	if err != nil {
		p.log.WithError(err).Warn("Failed to query vector index, answering without context")
		return RetrievalOutcome{Kind: OutcomeUnavailable, Err: storeErr("vector index", err)}
	}
	if len(docs) == 0 {
		p.log.Info("No documents found in vector index for the given query.")
		return RetrievalOutcome{Kind: OutcomeEmpty}
	}
	if len(docs) > k {
		docs = docs[:k]
	}

	p.log.Info(fmt.Sprintf("Retrieved %d chunks from vector index", len(docs)))
	return RetrievalOutcome{Kind: OutcomeFound, Chunks: docs}
}
