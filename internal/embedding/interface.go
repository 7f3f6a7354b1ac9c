package embedding

import "context"

// Embedding is the interface every embedding provider implements. Vectors
// have the fixed dimensionality configured for the Milvus collection; the
// caller treats them as a cache derived from text, never as source of truth.
type Embedding interface {
	// Embed generates the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for a batch of texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ModelType enumerates the supported providers.
type ModelType string

const (
	OpenAI ModelType = "openai"
	Google ModelType = "google"
	Ollama ModelType = "ollama"
)
