// Package embedding turns paper text into fixed-dimension vectors through a
// pluggable model provider.
package embedding

// Embedding represents a vector embedding of text.
type Embedding struct {
	Vector []float32 // 384 dimensions for the default model
}

// Dimensions returns the dimensionality of the embedding.
func (e Embedding) Dimensions() int {
	return len(e.Vector)
}
