package corpus

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Embedder is the embedding backend contract. langchaingo's embeddings.Embedder
// satisfies it; tests supply a deterministic fake.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// NewOllamaEmbedder builds an Embedder backed by an Ollama embedding model.
func NewOllamaEmbedder(baseURL, model string) (Embedder, error) {
	llm, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize ollama embedder: %w", err)
	}

	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("wrap embedder: %w", err)
	}
	return emb, nil
}
