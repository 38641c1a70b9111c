package loaders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"docqa/internal/docqa/interfaces"
	"docqa/internal/docqa/schema"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// ErrUnreadablePDF is returned when the bytes cannot be parsed as a PDF.
var ErrUnreadablePDF = errors.New("unreadable pdf")

// PdfLoader implements the Loader interface for PDF uploads.
type PdfLoader struct{}

// NewPdfLoader creates a new PdfLoader.
func NewPdfLoader() *PdfLoader {
	return &PdfLoader{}
}

// Load parses the PDF held in data and returns a Document for each page, in page order.
// Pages without extractable text still produce a Document with empty Text.
func (l *PdfLoader) Load(ctx context.Context, name string, data []byte) (docs []*schema.Document, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("%w: %v", ErrUnreadablePDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		var text string
		if !page.V.IsNull() {
			// font names are scoped to the page, so each page resolves its own
			text, err = page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("extract text from page %d: %w", i, err)
			}
		}

		docs = append(docs, &schema.Document{
			ID:   uuid.New().String(),
			Text: strings.TrimSpace(text),
			Metadata: map[string]interface{}{
				schema.MetadataKeyFileName:  name,
				schema.MetadataKeyPageLabel: fmt.Sprintf("%d", i),
			},
		})
	}

	return docs, nil
}

// compile-time check to ensure PdfLoader implements the Loader interface
var _ interfaces.Loader = (*PdfLoader)(nil)
