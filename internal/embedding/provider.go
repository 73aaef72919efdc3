package embedding

import "context"

// Provider generates embeddings from text.
type Provider interface {
	// EmbedBatch generates one embedding per text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)

	// ModelName returns the name of the embedding model.
	ModelName() string

	// Dimensions returns the expected vector dimensions.
	Dimensions() int
}
