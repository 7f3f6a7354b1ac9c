package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"responsa/internal/models"
	"responsa/pkg/logger"
)

// CachedModel wraps an Embedding with a Redis cache keyed by the hash of the
// input text. Embeddings are deterministic per model, so a hit is always
// valid until the model changes; the model name is part of the key.
type CachedModel struct {
	inner Embedding
	rdb   *redis.Client
	model string
	ttl   time.Duration
	log   *logger.Logger
}

var _ Embedding = (*CachedModel)(nil)

// NewCachedModel wraps inner with a Redis embedding cache. ttlSec of 0 means
// no expiry.
func NewCachedModel(inner Embedding, rdb *redis.Client, modelName string, ttlSec int, log *logger.Logger) *CachedModel {
	return &CachedModel{
		inner: inner,
		rdb:   rdb,
		model: modelName,
		ttl:   time.Duration(ttlSec) * time.Second,
		log:   log,
	}
}

func (c *CachedModel) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.model + ":" + hex.EncodeToString(sum[:])
}

// Embed returns the cached vector when present, otherwise calls the wrapped
// provider and stores the result. Cache failures degrade to a provider call;
// they never fail the embedding.
func (c *CachedModel) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err == nil {
			return vec, nil
		}
		// Corrupt entry: drop it and re-embed.
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		c.log.WithError(models.ErrorInfo{Kind: "redis", Message: err.Error()}).Warn("embedding cache read failed")
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(vec); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.WithError(models.ErrorInfo{Kind: "redis", Message: err.Error()}).Warn("embedding cache write failed")
		}
	}
	return vec, nil
}

// EmbedBatch serves cached vectors where possible and embeds only the misses
// in one provider call.
func (c *CachedModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		raw, err := c.rdb.Get(ctx, c.key(text)).Bytes()
		if err == nil {
			var vec []float32
			if err := json.Unmarshal(raw, &vec); err == nil {
				out[i] = vec
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, i := range missIdx {
		out[i] = vecs[j]
		if raw, err := json.Marshal(vecs[j]); err == nil {
			if err := c.rdb.Set(ctx, c.key(texts[i]), raw, c.ttl).Err(); err != nil {
				c.log.WithError(models.ErrorInfo{Kind: "redis", Message: err.Error()}).Warn("embedding cache write failed")
			}
		}
	}
	return out, nil
}
