package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lengthModel 返回以文本长度为唯一分量的向量，便于校验顺序。
type lengthModel struct {
	mu       sync.Mutex
	batches  [][]string
	inflight int32
	peak     int32
	failOn   string
}

func (m *lengthModel) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (m *lengthModel) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	n := atomic.AddInt32(&m.inflight, 1)
	defer atomic.AddInt32(&m.inflight, -1)
	for {
		p := atomic.LoadInt32(&m.peak)
		if n <= p || atomic.CompareAndSwapInt32(&m.peak, p, n) {
			break
		}
	}

	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	m.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if t == m.failOn {
			return nil, errors.New("provider rejected input")
		}
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestBatchEmbedderPreservesOrder(t *testing.T) {
	model := &lengthModel{}
	b := NewBatchEmbedder(model, 2, 3)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	got, err := b.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, got, len(texts))
	for i, text := range texts {
		assert.Equal(t, []float32{float32(len(text))}, got[i])
	}

	assert.Len(t, model.batches, 3)
	for _, batch := range model.batches {
		assert.LessOrEqual(t, len(batch), 2)
	}
	assert.LessOrEqual(t, model.peak, int32(3))
}

func TestBatchEmbedderEmptyInput(t *testing.T) {
	model := &lengthModel{}
	got, err := NewBatchEmbedder(model, 8, 2).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, model.batches)
}

func TestBatchEmbedderFailsWhole(t *testing.T) {
	model := &lengthModel{failOn: "ccc"}
	_, err := NewBatchEmbedder(model, 1, 1).Embed(context.Background(), []string{"a", "bb", "ccc"})
	assert.ErrorContains(t, err, "provider rejected input")
}
