package milvus

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"responsa/internal/config"
)

const (
	idField     = "id"
	vectorField = "embedding"
)

// ErrNotFound is returned when a lookup matches no stored vector.
var ErrNotFound = fmt.Errorf("not found")

var (
	instance *MilvusClient
	once     sync.Once
	initErr  error
)

// MilvusClient wraps the Milvus connection for the embedding collection. The
// collection holds one row per archive entry: the entry id and its vector.
// Vectors are derived data; MongoDB stays the source of truth.
type MilvusClient struct {
	Client client.Client
	Config *config.MilvusConfig
}

// GetClient initializes and returns the Milvus client. The connection is
// established once for the process lifetime.
func GetClient(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	once.Do(func() {
		c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
		if err != nil {
			initErr = fmt.Errorf("failed to connect to Milvus: %w", err)
			return
		}
		log.Println("✅ Connected to Milvus!")
		instance = &MilvusClient{Client: c, Config: cfg}
	})
	return instance, initErr
}

// Close shuts down the Milvus connection.
func (c *MilvusClient) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

// HealthCheck verifies the Milvus connection.
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("Milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("Milvus health check failed: %w", err)
	}
	return nil
}

// EnsureCollection creates the embedding collection and its index when
// missing, then loads it for queries. The vector dimension comes from the
// configuration and must match every stored vector.
func (c *MilvusClient) EnsureCollection(ctx context.Context) error {
	collName := c.Config.CollectionName
	exists, err := c.Client.HasCollection(ctx, collName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(collName).
			WithDescription("archive entry embeddings").
			WithField(entity.NewField().
				WithName(idField).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(64).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(vectorField).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(c.Config.Dimension)))

		if err := c.Client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection '%s': %w", collName, err)
		}

		idx, err := entity.NewIndexIvfFlat(entity.IP, 128)
		if err != nil {
			return fmt.Errorf("failed to build index: %w", err)
		}
		if err := c.Client.CreateIndex(ctx, collName, vectorField, idx, false); err != nil {
			return fmt.Errorf("failed to create index on '%s': %w", vectorField, err)
		}
		log.Printf("✅ Created Milvus collection '%s' (dim=%d)", collName, c.Config.Dimension)
	}

	if err := c.Client.LoadCollection(ctx, collName, false); err != nil {
		return fmt.Errorf("failed to load collection '%s': %w", collName, err)
	}
	return nil
}

// Upsert writes the vector for one entry, replacing any previous one.
func (c *MilvusClient) Upsert(ctx context.Context, entryID string, vector []float32) error {
	idCol := entity.NewColumnVarChar(idField, []string{entryID})
	vecCol := entity.NewColumnFloatVector(vectorField, c.Config.Dimension, [][]float32{vector})

	if _, err := c.Client.Upsert(ctx, c.Config.CollectionName, "", idCol, vecCol); err != nil {
		return fmt.Errorf("failed to upsert vector for '%s': %w", entryID, err)
	}
	return nil
}

// UpsertBatch writes vectors for multiple entries in one call.
func (c *MilvusClient) UpsertBatch(ctx context.Context, entryIDs []string, vectors [][]float32) error {
	if len(entryIDs) != len(vectors) {
		return fmt.Errorf("mismatch between ids (%d) and vectors (%d)", len(entryIDs), len(vectors))
	}
	if len(entryIDs) == 0 {
		return nil
	}

	idCol := entity.NewColumnVarChar(idField, entryIDs)
	vecCol := entity.NewColumnFloatVector(vectorField, c.Config.Dimension, vectors)

	if _, err := c.Client.Upsert(ctx, c.Config.CollectionName, "", idCol, vecCol); err != nil {
		return fmt.Errorf("failed to batch upsert %d vectors: %w", len(entryIDs), err)
	}
	return nil
}

// Get returns the stored vector for one entry, or ErrNotFound.
func (c *MilvusClient) Get(ctx context.Context, entryID string) ([]float32, error) {
	expr := fmt.Sprintf("%s == \"%s\"", idField, entryID)
	rs, err := c.Client.Query(ctx, c.Config.CollectionName, nil, expr, []string{idField, vectorField})
	if err != nil {
		return nil, fmt.Errorf("failed to query vector for '%s': %w", entryID, err)
	}

	_, vectors, err := columnsToRows(rs)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrNotFound
	}
	return vectors[0], nil
}

// FetchAll returns every stored (entry id, vector) pair. Used by the vector
// cache rebuild.
func (c *MilvusClient) FetchAll(ctx context.Context) (map[string][]float32, error) {
	expr := fmt.Sprintf("%s != \"\"", idField)
	rs, err := c.Client.Query(ctx, c.Config.CollectionName, nil, expr, []string{idField, vectorField})
	if err != nil {
		return nil, fmt.Errorf("failed to query all vectors: %w", err)
	}

	ids, vectors, err := columnsToRows(rs)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(ids))
	for i, id := range ids {
		out[id] = vectors[i]
	}
	return out, nil
}

// Delete removes the vector of one entry.
func (c *MilvusClient) Delete(ctx context.Context, entryID string) error {
	expr := fmt.Sprintf("%s == \"%s\"", idField, entryID)
	if err := c.Client.Delete(ctx, c.Config.CollectionName, "", expr); err != nil {
		return fmt.Errorf("failed to delete vector for '%s': %w", entryID, err)
	}
	return nil
}

// Flush persists buffered writes to disk.
func (c *MilvusClient) Flush(ctx context.Context) error {
	if err := c.Client.Flush(ctx, c.Config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to flush collection '%s': %w", c.Config.CollectionName, err)
	}
	return nil
}

func columnsToRows(rs client.ResultSet) ([]string, [][]float32, error) {
	var ids []string
	var vectors [][]float32
	for _, col := range rs {
		switch col.Name() {
		case idField:
			c, ok := col.(*entity.ColumnVarChar)
			if !ok {
				return nil, nil, fmt.Errorf("unexpected column type for '%s'", idField)
			}
			ids = c.Data()
		case vectorField:
			c, ok := col.(*entity.ColumnFloatVector)
			if !ok {
				return nil, nil, fmt.Errorf("unexpected column type for '%s'", vectorField)
			}
			vectors = c.Data()
		}
	}
	if len(ids) != len(vectors) {
		return nil, nil, fmt.Errorf("result mismatch: %d ids, %d vectors", len(ids), len(vectors))
	}
	return ids, vectors, nil
}
