package splitters

import (
	"context"
	"fmt"

	"docqa/internal/docqa/interfaces"
	"docqa/internal/docqa/schema"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveSplitter splits text on the coarsest separator that keeps chunks under
// ChunkSize characters, carrying ChunkOverlap characters between neighbours.
type RecursiveSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	splitter     textsplitter.RecursiveCharacter
}

// NewRecursiveSplitter creates a RecursiveSplitter. Lengths are counted in runes.
func NewRecursiveSplitter(chunkSize, chunkOverlap int) (*RecursiveSplitter, error) {
	if err := validateSizes(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &RecursiveSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(DefaultSeparators),
		),
	}, nil
}

// SplitText returns the chunk texts for text. The same input always yields the same output.
func (s *RecursiveSplitter) SplitText(text string) ([]string, error) {
	return s.splitter.SplitText(text)
}

// Split splits every document and gives each chunk a fresh ID.
func (s *RecursiveSplitter) Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error) {
	var chunks []*schema.Document
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		texts, err := s.SplitText(doc.Text)
		if err != nil {
			return nil, fmt.Errorf("split document %s: %w", doc.ID, err)
		}
		chunks = appendChunks(chunks, doc, texts)
	}
	return chunks, nil
}

// appendChunks wraps texts as chunk Documents inheriting doc's metadata.
func appendChunks(chunks []*schema.Document, doc *schema.Document, texts []string) []*schema.Document {
	for i, text := range texts {
		md := schema.CopyMetadata(doc.Metadata)
		md["original_doc_id"] = doc.ID
		md[schema.MetadataKeyChunkIndex] = i
		chunks = append(chunks, &schema.Document{
			ID:       uuid.New().String(),
			Text:     text,
			Metadata: md,
		})
	}
	return chunks
}

func validateSizes(chunkSize, chunkOverlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return fmt.Errorf("chunk overlap %d must be in [0, %d)", chunkOverlap, chunkSize)
	}
	return nil
}

var _ interfaces.Splitter = (*RecursiveSplitter)(nil)
