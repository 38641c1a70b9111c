package mcptools

import (
	"context"
	"strings"
	"testing"

	"docqa/internal/database/kafka"
	"docqa/internal/docqa/pipeline"
	"docqa/internal/docqa/schema"
	"docqa/internal/docqa/service"
	"docqa/internal/docqa/splitters"
	"docqa/internal/docqa/storages/cache"
	"docqa/internal/docqa/storages/metastore"
	"docqa/internal/docqa/storages/objectstore"
	"docqa/internal/docqa/storages/vectorstore"
	"docqa/pkg/logger"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type textLoader struct{}

func (textLoader) Load(_ context.Context, name string, data []byte) ([]*schema.Document, error) {
	return []*schema.Document{{ID: name, Text: string(data), Metadata: map[string]interface{}{}}}, nil
}

type lengthEmbedder struct{}

func (lengthEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{1, float32(len(t))}
	}
	return out, nil
}

type echoLLM struct{}

func (echoLLM) Generate(context.Context, string) (string, error) { return "the answer", nil }

func newTestServer(t *testing.T) (*Server, *service.Service) {
	t.Helper()
	log := logger.Nop()
	splitter, err := splitters.NewRecursiveSplitter(2000, 400)
	require.NoError(t, err)

	records := metastore.NewMemoryStore()
	questions := metastore.NewMemoryQuestionStore()
	vectors := vectorstore.NewMemoryStore()
	ingestion := pipeline.NewIngestionPipeline(textLoader{}, splitter, lengthEmbedder{}, objectstore.NewMemoryStore(), records, questions, vectors, log)
	qa := pipeline.NewQAPipeline(pipeline.NewRetrievalPipeline(lengthEmbedder{}, vectors, 3, log), echoLLM{}, "", log)
	svc := service.New(ingestion, qa, pipeline.NewDocumentManager(records, vectors, log), questions, cache.Nop{}, kafka.NopPublisher{}, 3, log)
	return NewServer(svc), svc
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestToolDefinitions(t *testing.T) {
	assert.Equal(t, "ask_documents", askDocumentsTool.Name)
	assert.Contains(t, askDocumentsTool.InputSchema.Required, "question")
	assert.Equal(t, "delete_documents", deleteDocumentsTool.Name)
	assert.Contains(t, deleteDocumentsTool.InputSchema.Required, "ids")
	assert.Equal(t, "list_documents", listDocumentsTool.Name)
	assert.Equal(t, "list_questions", listQuestionsTool.Name)
}

func TestAskAndListDocuments(t *testing.T) {
	ctx := context.Background()
	srv, svc := newTestServer(t)

	res, err := srv.handleListDocuments(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "No documents")

	svc.Ingest(ctx, []pipeline.Upload{{FileID: "guide", FileName: "guide.pdf", Data: []byte("install with make"), DeclaredType: pipeline.TypePDF}})

	res, err = srv.handleAsk(ctx, callRequest(map[string]any{"question": "how do I install?"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	text := resultText(t, res)
	assert.True(t, strings.HasPrefix(text, "the answer"))
	assert.Contains(t, text, "guide")

	res, err = srv.handleListDocuments(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "- guide (guide.pdf): 1 chunks")
}

func TestAskRequiresQuestion(t *testing.T) {
	srv, _ := newTestServer(t)

	res, err := srv.handleAsk(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = srv.handleAsk(context.Background(), callRequest(map[string]any{"question": "  "}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestDeleteDocuments(t *testing.T) {
	ctx := context.Background()
	srv, svc := newTestServer(t)
	svc.Ingest(ctx, []pipeline.Upload{{FileID: "guide", FileName: "guide.pdf", Data: []byte("install with make"), DeclaredType: pipeline.TypePDF}})

	res, err := srv.handleDeleteDocuments(ctx, callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = srv.handleDeleteDocuments(ctx, callRequest(map[string]any{"ids": []any{"guide", "missing"}}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "Deleted 1 document(s), 1 chunk(s). Not found: missing.", resultText(t, res))
}

func TestListQuestions(t *testing.T) {
	ctx := context.Background()
	srv, svc := newTestServer(t)

	res, err := srv.handleListQuestions(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "No questions")

	svc.Ingest(ctx, []pipeline.Upload{{FileID: "qs", FileName: "qs.json", Data: []byte(`[{"question":"why?"}]`), DeclaredType: pipeline.TypeJSON}})
	res, err = srv.handleListQuestions(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"question": "why?"`)
}

func TestServeRejectsUnknownTransport(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.ErrorContains(t, srv.Serve("carrier-pigeon", ""), "unknown transport")
}
