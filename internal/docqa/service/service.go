package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"docqa/internal/docqa/interfaces"
	"docqa/internal/docqa/pipeline"
	"docqa/internal/docqa/schema"
	"docqa/internal/models"
	"docqa/pkg/logger"
)

// IngestItem is the outcome of one file in a multi-file upload. Exactly one of Result
// and Err is set.
type IngestItem struct {
	FileID   string
	FileName string
	Result   *pipeline.IngestResult
	Err      error
}

// Source is a chunk that supported an answer.
type Source struct {
	ChunkID  string  `json:"chunk_id"`
	FileID   string  `json:"file_id,omitempty"`
	FileName string  `json:"file_name,omitempty"`
	Score    float32 `json:"score"`
	Text     string  `json:"text"`
}

// AnswerView is the answer returned to callers and stored in the answer cache.
type AnswerView struct {
	Question  string               `json:"question"`
	Answer    string               `json:"answer"`
	Context   string               `json:"context"`
	Retrieval pipeline.OutcomeKind `json:"retrieval"`
	Sources   []Source             `json:"sources"`
	Cached    bool                 `json:"cached"`
}

// Service combines the pipelines with answer caching and document events.
type Service struct {
	ingestion *pipeline.IngestionPipeline
	qa        *pipeline.QAPipeline
	manager   *pipeline.DocumentManager
	questions interfaces.QuestionStore
	cache     interfaces.AnswerCache
	events    interfaces.EventPublisher
	topK      int
	log       *logger.Logger
}

// New creates a new Service. cache and events may be no-op implementations.
func New(
	ingestion *pipeline.IngestionPipeline,
	qa *pipeline.QAPipeline,
	manager *pipeline.DocumentManager,
	questions interfaces.QuestionStore,
	cache interfaces.AnswerCache,
	events interfaces.EventPublisher,
	topK int,
	log *logger.Logger,
) *Service {
	return &Service{
		ingestion: ingestion,
		qa:        qa,
		manager:   manager,
		questions: questions,
		cache:     cache,
		events:    events,
		topK:      topK,
		log:       log,
	}
}

// Ingest processes uploads one after another. A failing file does not stop the rest.
func (s *Service) Ingest(ctx context.Context, uploads []pipeline.Upload) []IngestItem {
	items := make([]IngestItem, 0, len(uploads))
	changed := false
	for _, up := range uploads {
		res, err := s.ingestion.Ingest(ctx, up)
		items = append(items, IngestItem{FileID: up.FileID, FileName: up.FileName, Result: res, Err: err})
		s.publish(ctx, ingestEvent(up, res, err))

		var partial *pipeline.PartialIngestionError
		if (err == nil && res.Status == pipeline.StatusIngested && res.Kind == pipeline.KindDocument) || errors.As(err, &partial) {
			changed = true
		}
	}
	s.log.Info("PDF processing completed")
	if changed {
		s.invalidate(ctx)
	}
	return items
}

// Ask answers question, serving repeated questions from the cache until the index changes.
func (s *Service) Ask(ctx context.Context, question string, topK int) (*AnswerView, error) {
	if topK <= 0 {
		topK = s.topK
	}

	// The generation is read before retrieval so an answer that races a document
	// change lands under the old generation.
	gen, err := s.cache.Generation(ctx)
	cacheable := err == nil
	if err != nil {
		s.log.WithError(err).Warn("Answer cache lookup failed")
	} else if cached, ok := s.cachedAnswer(ctx, gen, question, topK); ok {
		return cached, nil
	}

	ans, err := s.qa.Answer(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	view := toView(ans)

	// Answers built without a reachable index are not worth keeping.
	if cacheable && ans.Retrieval != pipeline.OutcomeUnavailable {
		if data, err := json.Marshal(view); err == nil {
			if err := s.cache.Set(ctx, gen, question, topK, data); err != nil {
				s.log.WithError(err).Warn("Failed to cache answer")
			}
		}
	}
	return view, nil
}

// ListDocuments returns every ingested file.
func (s *Service) ListDocuments(ctx context.Context) ([]*models.FileRecord, error) {
	return s.manager.List(ctx)
}

// ListQuestions returns every stored question record.
func (s *Service) ListQuestions(ctx context.Context) ([]models.QuestionRecord, error) {
	qs, err := s.questions.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return qs, nil
}

// DeleteDocuments removes files from the metadata store and the vector index.
func (s *Service) DeleteDocuments(ctx context.Context, ids []string) (*pipeline.DeleteResult, error) {
	res, err := s.manager.Delete(ctx, ids)

	var partial *pipeline.PartialDeletionError
	switch {
	case errors.As(err, &partial):
		s.publish(ctx, models.DocumentEvent{
			Type:     models.EventPartialDeletion,
			FileIDs:  partial.Succeeded,
			ChunkIDs: partial.OrphanedChunkIDs,
			Error:    err.Error(),
		})
	case err == nil && len(res.Deleted) > 0:
		s.publish(ctx, models.DocumentEvent{
			Type:     models.EventDeleted,
			FileIDs:  res.Deleted,
			ChunkIDs: res.ChunkIDs,
			Count:    len(res.Deleted),
		})
	}
	if res != nil && len(res.Deleted) > 0 {
		s.invalidate(ctx)
	}
	return res, err
}

// ResetIndex empties the vector index and the file records.
func (s *Service) ResetIndex(ctx context.Context) (*pipeline.ResetResult, error) {
	res, err := s.manager.ResetIndex(ctx)
	s.invalidate(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.DocumentEvent{Type: models.EventIndexReset, Count: int(res.Records)})
	return res, nil
}

// Close releases the event publisher.
func (s *Service) Close() error {
	return s.events.Close()
}

func (s *Service) cachedAnswer(ctx context.Context, gen int64, question string, topK int) (*AnswerView, bool) {
	data, ok, err := s.cache.Get(ctx, gen, question, topK)
	if err != nil {
		s.log.WithError(err).Warn("Answer cache lookup failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var view AnswerView
	if err := json.Unmarshal(data, &view); err != nil {
		s.log.WithError(err).Warn("Discarding undecodable cached answer")
		return nil, false
	}
	view.Cached = true
	return &view, true
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate answer cache")
	}
}

func (s *Service) publish(ctx context.Context, event models.DocumentEvent) {
	if event.Type == "" {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.WithError(err).Warn(fmt.Sprintf("Failed to publish %s event", event.Type))
	}
}

func ingestEvent(up pipeline.Upload, res *pipeline.IngestResult, err error) models.DocumentEvent {
	event := models.DocumentEvent{FileIDs: []string{up.FileID}, FileName: up.FileName}
	var partial *pipeline.PartialIngestionError
	switch {
	case errors.As(err, &partial):
		event.Type = models.EventPartialIngestion
		event.ChunkIDs = partial.ChunkIDs
		event.Error = err.Error()
	case err != nil:
		return models.DocumentEvent{}
	case res.Status == pipeline.StatusSkipped:
		event.Type = models.EventSkipped
	case res.Status == pipeline.StatusRejected:
		event.Type = models.EventRejected
		event.Error = res.Reason
	case res.Kind == pipeline.KindQuestionSet:
		event.Type = models.EventQuestionsIngested
		event.Count = res.QuestionCount
	default:
		event.Type = models.EventIngested
		event.ChunkIDs = res.ChunkIDs
		event.Count = len(res.ChunkIDs)
	}
	return event
}

func toView(ans *pipeline.Answer) *AnswerView {
	sources := make([]Source, 0, len(ans.Chunks))
	for _, c := range ans.Chunks {
		sources = append(sources, Source{
			ChunkID:  c.ID,
			FileID:   c.MetadataString(schema.MetadataKeyFileID),
			FileName: c.MetadataString(schema.MetadataKeyFileName),
			Score:    c.Score,
			Text:     c.Text,
		})
	}
	return &AnswerView{
		Question:  ans.Question,
		Answer:    ans.Text,
		Context:   ans.Context,
		Retrieval: ans.Retrieval,
		Sources:   sources,
	}
}
