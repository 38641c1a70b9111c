package splitters

import (
	"context"
	"fmt"

	"docqa/internal/docqa/interfaces"
	"docqa/internal/docqa/schema"

	"github.com/pkoukk/tiktoken-go"
)

// TokenSplitter implements the Splitter interface to split documents based on token count.
type TokenSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	tokenizer    *tiktoken.Tiktoken
}

// NewTokenSplitter creates a new TokenSplitter for the named encoding, e.g. "cl100k_base".
func NewTokenSplitter(chunkSize, chunkOverlap int, encoding string) (*TokenSplitter, error) {
	if err := validateSizes(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}

	return &TokenSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		tokenizer:    tke,
	}, nil
}

// SplitText cuts text into windows of ChunkSize tokens advancing by ChunkSize-ChunkOverlap.
func (s *TokenSplitter) SplitText(text string) []string {
	tokens := s.tokenizer.Encode(text, nil, nil)
	step := s.ChunkSize - s.ChunkOverlap

	var texts []string
	for start := 0; start < len(tokens); start += step {
		end := start + s.ChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		texts = append(texts, s.tokenizer.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return texts
}

// Split splits a list of documents into smaller chunks based on the token size.
func (s *TokenSplitter) Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error) {
	var chunks []*schema.Document
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks = appendChunks(chunks, doc, s.SplitText(doc.Text))
	}
	return chunks, nil
}

// compile-time check to ensure TokenSplitter implements the Splitter interface
var _ interfaces.Splitter = (*TokenSplitter)(nil)
