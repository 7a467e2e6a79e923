package rag

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder computes a fixed-dimension vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder implements Embedder over the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
}

// NewOpenAIEmbedder creates an embedder, or nil when no API key is
// configured so callers can treat the subsystem as absent.
func NewOpenAIEmbedder(apiKey string) *OpenAIEmbedder {
	if apiKey == "" {
		return nil
	}
	return &OpenAIEmbedder{client: openai.NewClient(apiKey)}
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.AdaEmbeddingV2,
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	return resp.Data[0].Embedding, nil
}
