package bootstrap

import (
	"context"
	"errors"
	"testing"

	"docqa/internal/config"
	"docqa/internal/docqa/pipeline"
	"docqa/internal/docqa/splitters"
	"docqa/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.MetadataStore.Backend = "memory"
	cfg.ObjectStore.Backend = "memory"
	cfg.VectorIndex.Backend = "memory"
	cfg.LLM.Model = "gpt-4o-mini"
	return cfg
}

func TestBuildWithMemoryBackends(t *testing.T) {
	cfg := memoryConfig()
	cfg.VectorIndex.ResetOnStartup = true
	cfg.Cache.Enabled = true
	cfg.Cache.Backend = "memory"

	app, err := Build(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	require.NotNil(t, app.Service)
	assert.Empty(t, app.Checks)

	docs, err := app.Service.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, app.Close(context.Background()))
}

func TestBuildWithInMemoryChromem(t *testing.T) {
	cfg := memoryConfig()
	cfg.VectorIndex.Backend = "chromem"
	cfg.VectorIndex.Chromem.PersistDir = ""

	app, err := Build(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	assert.NoError(t, app.Close(context.Background()))
}

func TestBuildFailsWithoutModel(t *testing.T) {
	cfg := memoryConfig()
	cfg.LLM.Model = ""

	_, err := Build(context.Background(), cfg, logger.Nop())
	assert.ErrorContains(t, err, "create llm client")
}

func TestSplitterFactoryOverlap(t *testing.T) {
	factory := splitterFactory(config.IngestionConfig{Splitter: "recursive"})

	s, err := factory(500, pipeline.DefaultOverlap)
	require.NoError(t, err)
	require.IsType(t, &splitters.RecursiveSplitter{}, s)
	assert.Equal(t, 100, s.(*splitters.RecursiveSplitter).ChunkOverlap)

	s, err = factory(500, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, s.(*splitters.RecursiveSplitter).ChunkOverlap)
}

func TestCloseRunsInReverseAndJoinsErrors(t *testing.T) {
	var order []string
	app := &App{log: logger.Nop()}
	app.onClose(func(context.Context) error { order = append(order, "first"); return errors.New("first failed") })
	app.onClose(func(context.Context) error { order = append(order, "second"); return nil })

	err := app.Close(context.Background())
	assert.ErrorContains(t, err, "first failed")
	assert.Equal(t, []string{"second", "first"}, order)
}
