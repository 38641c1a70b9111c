package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"docqa/internal/database/milvus"
	"docqa/internal/docqa/interfaces"
	"docqa/internal/docqa/schema"
	"docqa/pkg/logger"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusStore keeps chunk vectors in a Milvus collection.
type MilvusStore struct {
	log    *logger.Logger
	mc     *milvus.MilvusClient
	client client.Client
}

// NewMilvusStore creates a MilvusStore and makes sure the collection exists and is loaded.
func NewMilvusStore(ctx context.Context, mc *milvus.MilvusClient, log *logger.Logger) (*MilvusStore, error) {
	if mc == nil || mc.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	if err := mc.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	return &MilvusStore{log: log, mc: mc, client: mc.Client}, nil
}

func (s *MilvusStore) collection() string {
	return s.mc.Config.CollectionName
}

// Add upserts docs into the collection.
func (s *MilvusStore) Add(ctx context.Context, docs []*schema.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	fileIDs := make([]string, len(docs))
	fileNames := make([]string, len(docs))
	chunkIdx := make([]int64, len(docs))
	embeddings := make([][]float32, len(docs))

	dim := s.mc.Config.Dim
	for i, doc := range docs {
		if len(doc.Embedding) != dim {
			return fmt.Errorf("document %s has embedding of dim %d, collection expects %d", doc.ID, len(doc.Embedding), dim)
		}
		ids[i] = doc.ID
		texts[i] = doc.Text
		fileIDs[i] = doc.MetadataString(schema.MetadataKeyFileID)
		fileNames[i] = doc.MetadataString(schema.MetadataKeyFileName)
		if n, ok := doc.Metadata[schema.MetadataKeyChunkIndex].(int); ok {
			chunkIdx[i] = int64(n)
		}
		embeddings[i] = doc.Embedding
	}

	s.log.Info(fmt.Sprintf("Upserting %d chunks into Milvus collection: %s", len(docs), s.collection()))
	_, err := s.client.Upsert(ctx, s.collection(), "",
		entity.NewColumnVarChar(milvus.FieldID, ids),
		entity.NewColumnVarChar(milvus.FieldText, texts),
		entity.NewColumnVarChar(milvus.FieldFileID, fileIDs),
		entity.NewColumnVarChar(milvus.FieldFileName, fileNames),
		entity.NewColumnInt64(milvus.FieldChunkIndex, chunkIdx),
		entity.NewColumnFloatVector(milvus.FieldEmbedding, dim, embeddings),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert data into Milvus: %w", err)
	}
	return nil
}

// Query performs a vector search over the whole collection.
func (s *MilvusStore) Query(ctx context.Context, embedding []float32, topK int) ([]*schema.Document, error) {
	searchParams, err := milvus.BuildSearchParam(s.mc.Config)
	if err != nil {
		return nil, err
	}
	outputFields := []string{milvus.FieldID, milvus.FieldText, milvus.FieldFileID, milvus.FieldFileName, milvus.FieldChunkIndex}

	searchResults, err := s.client.Search(
		ctx, s.collection(), []string{}, "", outputFields,
		[]entity.Vector{entity.FloatVector(embedding)},
		milvus.FieldEmbedding, milvus.MetricType(s.mc.Config), topK, searchParams,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	var results []*schema.Document
	for _, res := range searchResults {
		findColumn := func(name string) entity.Column {
			for _, field := range res.Fields {
				if field.Name() == name {
					return field
				}
			}
			return nil
		}

		idCol, ok := findColumn(milvus.FieldID).(*entity.ColumnVarChar)
		if !ok {
			s.log.Warn("Search result is missing ID field or has wrong type, skipping.")
			continue
		}
		textCol, _ := findColumn(milvus.FieldText).(*entity.ColumnVarChar)
		fileIDCol, _ := findColumn(milvus.FieldFileID).(*entity.ColumnVarChar)
		fileNameCol, _ := findColumn(milvus.FieldFileName).(*entity.ColumnVarChar)
		chunkCol, _ := findColumn(milvus.FieldChunkIndex).(*entity.ColumnInt64)

		for i := 0; i < res.ResultCount; i++ {
			doc := &schema.Document{
				ID:       idCol.Data()[i],
				Score:    res.Scores[i],
				Metadata: map[string]interface{}{},
			}
			if textCol != nil {
				doc.Text = textCol.Data()[i]
			}
			if fileIDCol != nil {
				doc.Metadata[schema.MetadataKeyFileID] = fileIDCol.Data()[i]
			}
			if fileNameCol != nil {
				doc.Metadata[schema.MetadataKeyFileName] = fileNameCol.Data()[i]
			}
			if chunkCol != nil {
				doc.Metadata[schema.MetadataKeyChunkIndex] = int(chunkCol.Data()[i])
			}
			results = append(results, doc)
		}
	}
	return results, nil
}

// Delete removes ids from the collection.
func (s *MilvusStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.client.Delete(ctx, s.collection(), "", idInExpr(ids)); err != nil {
		return fmt.Errorf("failed to delete data from Milvus: %w", err)
	}
	return nil
}

// Count returns the number of live entities.
func (s *MilvusStore) Count(ctx context.Context) (int, error) {
	rs, err := s.client.Query(ctx, s.collection(), nil, "", []string{"count(*)"})
	if err != nil {
		return 0, fmt.Errorf("failed to count Milvus entities: %w", err)
	}
	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	n, err := col.GetAsInt64(0)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Reset drops and recreates the collection.
func (s *MilvusStore) Reset(ctx context.Context) error {
	if err := s.mc.DropCollection(ctx); err != nil {
		return err
	}
	return s.mc.EnsureCollection(ctx)
}

// idInExpr builds `id in ["a","b"]` with each id quoted.
func idInExpr(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return fmt.Sprintf("%s in [%s]", milvus.FieldID, strings.Join(quoted, ","))
}

// compile-time check to ensure MilvusStore implements the VectorStore interface
var _ interfaces.VectorStore = (*MilvusStore)(nil)
