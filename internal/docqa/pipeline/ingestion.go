package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"slices"
	"strings"
	"time"

	"docqa/internal/docqa/interfaces"
	"docqa/internal/docqa/loaders"
	"docqa/internal/docqa/schema"
	"docqa/internal/models"
	"docqa/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
)

// Accepted declared content types.
const (
	TypePDF  = "application/pdf"
	TypeJSON = "application/json"
)

// Status is the outcome of one Ingest call that did not fail.
type Status string

const (
	StatusIngested Status = "ingested"
	StatusSkipped  Status = "skipped"
	StatusRejected Status = "rejected"
)

// Kind tells what an upload was ingested as.
type Kind string

const (
	KindDocument    Kind = "document"
	KindQuestionSet Kind = "question_set"
)

const compensationTimeout = 30 * time.Second

// Upload is one file handed to the ingestion pipeline.
type Upload struct {
	// FileID is the caller-supplied identity used for de-duplication.
	FileID   string
	FileName string
	Data     []byte
	// DeclaredType is the content type reported by the upload source. When empty the
	// type is sniffed from Data.
	DeclaredType string
	// ChunkSize and ChunkOverlap override the configured splitter when ChunkSize > 0.
	// ChunkOverlap set to DefaultOverlap lets the splitter factory choose.
	ChunkSize    int
	ChunkOverlap int
}

// DefaultOverlap marks an overridden chunk size without an explicit overlap.
const DefaultOverlap = -1

// IngestResult describes what happened to an Upload.
type IngestResult struct {
	FileID        string   `json:"file_id"`
	FileName      string   `json:"file_name"`
	Status        Status   `json:"status"`
	Kind          Kind     `json:"kind,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	FileURL       string   `json:"file_url,omitempty"`
	ChunkIDs      []string `json:"chunk_ids,omitempty"`
	QuestionCount int      `json:"question_count,omitempty"`
}

// SplitterFactory builds a splitter for a per-upload chunk size override.
type SplitterFactory func(chunkSize, chunkOverlap int) (interfaces.Splitter, error)

// IngestionOption configures an IngestionPipeline.
type IngestionOption func(*IngestionPipeline)

// WithSplitterFactory enables per-upload chunk size overrides.
func WithSplitterFactory(f SplitterFactory) IngestionOption {
	return func(p *IngestionPipeline) { p.newSplitter = f }
}

// WithCompensation controls whether a failed vector upsert removes the FileRecord again.
func WithCompensation(enabled bool) IngestionOption {
	return func(p *IngestionPipeline) { p.compensate = enabled }
}

// WithClock overrides the timestamp source for FileRecords.
func WithClock(now func() time.Time) IngestionOption {
	return func(p *IngestionPipeline) { p.now = now }
}

// IngestionPipeline stores an upload in the object store, the metadata store and the
// vector index, in that order.
type IngestionPipeline struct {
	loader      interfaces.Loader
	splitter    interfaces.Splitter
	newSplitter SplitterFactory
	embedder    interfaces.EmbeddingModel
	objects     interfaces.ObjectStore
	records     interfaces.MetadataStore
	questions   interfaces.QuestionStore
	vectors     interfaces.VectorStore
	manager     *DocumentManager
	compensate  bool
	now         func() time.Time
	log         *logger.Logger
}

// NewIngestionPipeline creates a new IngestionPipeline. Compensation is on by default.
func NewIngestionPipeline(
	loader interfaces.Loader,
	splitter interfaces.Splitter,
	embedder interfaces.EmbeddingModel,
	objects interfaces.ObjectStore,
	records interfaces.MetadataStore,
	questions interfaces.QuestionStore,
	vectors interfaces.VectorStore,
	log *logger.Logger,
	opts ...IngestionOption,
) *IngestionPipeline {
	p := &IngestionPipeline{
		loader:     loader,
		splitter:   splitter,
		embedder:   embedder,
		objects:    objects,
		records:    records,
		questions:  questions,
		vectors:    vectors,
		manager:    NewDocumentManager(records, vectors, log),
		compensate: true,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest processes a single upload. Rejected and skipped uploads are reported through
// IngestResult.Status with a nil error; the returned error is reserved for store, embedding
// and consistency failures.
func (p *IngestionPipeline) Ingest(ctx context.Context, up Upload) (*IngestResult, error) {
	res := &IngestResult{FileID: up.FileID, FileName: up.FileName}
	log := p.log.WithFields(map[string]interface{}{"file_id": up.FileID, "file_name": up.FileName})
	log.Info(fmt.Sprintf("Processing file: %s, type: %s, size: %d", up.FileName, up.DeclaredType, len(up.Data)))

	if strings.TrimSpace(up.FileID) == "" {
		return reject(res, "file identity is empty"), nil
	}

	existing, err := p.records.FindOne(ctx, up.FileID)
	if err != nil {
		return nil, fmt.Errorf("check existence of %s: %w", up.FileID, storeErr("metadata store", err))
	}
	if existing != nil {
		log.Info(fmt.Sprintf("File %s already exists, skipping.", up.FileName))
		res.Status = StatusSkipped
		res.FileURL = existing.FileURL
		res.ChunkIDs = existing.ChunkIDs
		return res, nil
	}

	mediaType := mediaTypeOf(up.DeclaredType, up.Data)
	switch mediaType {
	case TypePDF:
		res.Kind = KindDocument
	case TypeJSON:
		res.Kind = KindQuestionSet
	default:
		log.Warn(fmt.Sprintf("Invalid file type: %s", mediaType))
		return reject(res, fmt.Sprintf("unsupported file type %q", mediaType)), nil
	}
	if len(up.Data) == 0 {
		return reject(res, "upload is empty"), nil
	}

	if res.Kind == KindQuestionSet {
		return p.ingestQuestions(ctx, up, res, log)
	}
	return p.ingestDocument(ctx, up, res, log)
}

func (p *IngestionPipeline) ingestDocument(ctx context.Context, up Upload, res *IngestResult, log *logger.Logger) (*IngestResult, error) {
	splitter, err := p.splitterFor(up)
	if err != nil {
		return reject(res, err.Error()), nil
	}

	pages, err := p.loader.Load(ctx, up.FileName, up.Data)
	if err != nil {
		if errors.Is(err, loaders.ErrUnreadablePDF) {
			return reject(res, err.Error()), nil
		}
		return nil, fmt.Errorf("load %s: %w", up.FileName, err)
	}
	log.Info(fmt.Sprintf("PDF loaded, pages: %d", len(pages)))

	text := joinPages(pages)
	if text == "" {
		return reject(res, "document has no extractable text"), nil
	}

	chunks, err := splitter.Split(ctx, []*schema.Document{{
		ID:   up.FileID,
		Text: text,
		Metadata: map[string]interface{}{
			schema.MetadataKeyFileID:   up.FileID,
			schema.MetadataKeyFileName: up.FileName,
		},
	}})
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", up.FileName, err)
	}
	if len(chunks) == 0 {
		return reject(res, "document has no extractable text"), nil
	}
	log.Info(fmt.Sprintf("Document split into %d chunks", len(chunks)))

	chunkIDs := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		if chunk.Metadata == nil {
			chunk.Metadata = map[string]interface{}{schema.MetadataKeyFileID: up.FileID, schema.MetadataKeyFileName: up.FileName}
		}
		chunk.Metadata[schema.MetadataKeyChunkIndex] = i
		chunkIDs[i] = chunk.ID
		texts[i] = chunk.Text
	}

	// Embed before the first write so an embedding failure leaves every store untouched.
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbedding, len(chunks), len(embeddings))
	}
	for i, chunk := range chunks {
		chunk.Embedding = embeddings[i]
	}

	url, err := p.objects.Put(ctx, up.FileName, up.Data, TypePDF)
	if err != nil {
		return nil, fmt.Errorf("store original %s: %w", up.FileName, storeErr("object store", err))
	}
	log.Info("File uploaded to object store")

	sum := sha256.Sum256(up.Data)
	now := p.now()
	record := &models.FileRecord{
		ID:        up.FileID,
		FileName:  up.FileName,
		FileURL:   url,
		FileSize:  int64(len(up.Data)),
		ChunkIDs:  chunkIDs,
		SHA256:    hex.EncodeToString(sum[:]),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.records.InsertOne(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return nil, err
		}
		return nil, fmt.Errorf("insert file record %s: %w", up.FileID, storeErr("metadata store", err))
	}

	if err := p.vectors.Add(ctx, chunks); err != nil {
		partial := &PartialIngestionError{FileID: up.FileID, ChunkIDs: chunkIDs, Err: storeErr("vector index", err)}
		log.WithError(err).Error("Vector index write failed after file record insert")
		if p.compensate {
			p.runCompensation(ctx, partial, log)
		}
		return nil, partial
	}
	log.Info("Embeddings created and stored")

	res.Status = StatusIngested
	res.FileURL = url
	res.ChunkIDs = chunkIDs
	return res, nil
}

// runCompensation removes the FileRecord written by a failed ingestion. It runs on a
// context detached from the caller so a request deadline does not abort it halfway.
func (p *IngestionPipeline) runCompensation(ctx context.Context, partial *PartialIngestionError, log *logger.Logger) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	_, err := p.manager.Delete(cctx, []string{partial.FileID})
	if err == nil {
		partial.Compensated = true
		log.Warn("Compensating deletion removed the file record")
		return
	}

	partial.CompensationErr = err
	var pd *PartialDeletionError
	if errors.As(err, &pd) && slices.Contains(pd.Succeeded, partial.FileID) {
		partial.Compensated = true
		partial.OrphanedChunkIDs = pd.OrphanedChunkIDs
		log.WithError(err).WithField("orphaned_chunks", len(pd.OrphanedChunkIDs)).
			Error("Compensating deletion removed the file record but chunks may remain in the index")
		return
	}
	log.WithError(err).Error("Compensating deletion failed; file record may point at missing chunks")
}

func (p *IngestionPipeline) ingestQuestions(ctx context.Context, up Upload, res *IngestResult, log *logger.Logger) (*IngestResult, error) {
	questions, err := loaders.ParseQuestionSet(up.Data)
	if err != nil {
		return reject(res, err.Error()), nil
	}
	n, err := p.questions.InsertMany(ctx, questions)
	if err != nil {
		return nil, fmt.Errorf("insert questions from %s: %w", up.FileName, storeErr("question store", err))
	}
	log.Info(fmt.Sprintf("Questions inserted from JSON: %d", n))

	res.Status = StatusIngested
	res.QuestionCount = n
	return res, nil
}

func (p *IngestionPipeline) splitterFor(up Upload) (interfaces.Splitter, error) {
	if up.ChunkSize <= 0 {
		return p.splitter, nil
	}
	if p.newSplitter == nil {
		return nil, errors.New("chunk size override is not supported")
	}
	return p.newSplitter(up.ChunkSize, up.ChunkOverlap)
}

func reject(res *IngestResult, reason string) *IngestResult {
	res.Status = StatusRejected
	res.Reason = reason
	return res
}

// mediaTypeOf strips parameters from declared, or sniffs data when nothing was declared.
func mediaTypeOf(declared string, data []byte) string {
	if strings.TrimSpace(declared) == "" {
		declared = mimetype.Detect(data).String()
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return mt
}

// joinPages concatenates page texts separated by a blank line, skipping empty pages.
func joinPages(pages []*schema.Document) string {
	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		if t := strings.TrimSpace(page.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n")
}
