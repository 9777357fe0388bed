package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/knowhub/internal/ai"
	"github.com/xxxsen/knowhub/internal/model"
)

// Store is the persistent side of the cache, keyed by content hash.
type Store interface {
	GetBatch(ctx context.Context, modelName, taskType string, contentHashes []string) (map[string][]float32, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// dbEmbedder checks the persistent cache before calling the inner
// embedder, and writes fresh embeddings back.
type dbEmbedder struct {
	inner ai.IEmbedder
	store Store
}

func WithStore(inner ai.IEmbedder, store Store) ai.IEmbedder {
	if store == nil {
		return inner
	}
	return &dbEmbedder{inner: inner, store: store}
}

func (e *dbEmbedder) ModelName() string {
	return e.inner.ModelName()
}

func (e *dbEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	hashes := make([]string, 0, len(texts))
	for _, text := range texts {
		hashes = append(hashes, HashText(text))
	}
	cached, err := e.store.GetBatch(ctx, e.inner.ModelName(), taskType, hashes)
	if err != nil {
		// Cache trouble must not block embedding.
		logutil.GetLogger(ctx).Warn("embedding cache lookup failed", zap.Error(err))
		cached = map[string][]float32{}
	}

	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, hash := range hashes {
		if emb, ok := cached[hash]; ok {
			out[i] = emb
			continue
		}
		missTexts = append(missTexts, texts[i])
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	fresh, err := e.inner.EmbedBatch(ctx, missTexts, taskType)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	for j, emb := range fresh {
		i := missIdx[j]
		out[i] = emb
		item := &model.EmbeddingCache{
			ModelName:   e.inner.ModelName(),
			TaskType:    taskType,
			ContentHash: hashes[i],
			Embedding:   emb,
			Ctime:       now,
		}
		if err := e.store.Save(ctx, item); err != nil {
			logutil.GetLogger(ctx).Warn("embedding cache save failed", zap.Error(err))
		}
	}
	return out, nil
}

// lruEmbedder keeps hot embeddings in memory in front of any slower
// layer.
type lruEmbedder struct {
	inner ai.IEmbedder
	cache *lru.LRU[string, []float32]
}

func WithLRU(inner ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if size <= 0 {
		return inner
	}
	return &lruEmbedder{
		inner: inner,
		cache: lru.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (e *lruEmbedder) ModelName() string {
	return e.inner.ModelName()
}

func (e *lruEmbedder) key(taskType, hash string) string {
	return e.inner.ModelName() + "|" + taskType + "|" + hash
}

func (e *lruEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		keys[i] = e.key(taskType, HashText(text))
		if emb, ok := e.cache.Get(keys[i]); ok {
			out[i] = emb
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	fresh, err := e.inner.EmbedBatch(ctx, missTexts, taskType)
	if err != nil {
		return nil, err
	}
	for j, emb := range fresh {
		i := missIdx[j]
		out[i] = emb
		e.cache.Add(keys[i], emb)
	}
	return out, nil
}
