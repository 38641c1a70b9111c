package embedding

import (
	"context"
	"fmt"

	"docqa/internal/docqa/interfaces"

	"golang.org/x/sync/errgroup"
)

// BatchEmbedder 把长文本列表拆成固定大小的批次，并发调用底层模型。
// 它实现了 interfaces.EmbeddingModel，结果顺序与输入一致。
type BatchEmbedder struct {
	model       Embedding
	batchSize   int
	concurrency int
}

var _ interfaces.EmbeddingModel = (*BatchEmbedder)(nil)

// NewBatchEmbedder 创建 BatchEmbedder。batchSize 和 concurrency 小于 1 时按 1 处理。
func NewBatchEmbedder(model Embedding, batchSize, concurrency int) *BatchEmbedder {
	if batchSize < 1 {
		batchSize = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchEmbedder{model: model, batchSize: batchSize, concurrency: concurrency}
}

// Embed 为所有文本生成嵌入向量。任一批次失败时整体失败。
func (b *BatchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for start := 0; start < len(texts); start += b.batchSize {
		start := start
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vectors, err := b.model.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vectors) != end-start {
				return fmt.Errorf("batch [%d:%d]: expected %d embeddings, got %d", start, end, end-start, len(vectors))
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
