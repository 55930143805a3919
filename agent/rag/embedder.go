package rag

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/pchaya/aftercare/agent/contract"
)

// Embedder turns query text into a vector for the index lookup.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// APIEmbedder embeds via an OpenAI-compatible embeddings endpoint.
type APIEmbedder struct {
	client *openaisdk.Client
	model  string
}

func NewAPIEmbedder(client *openaisdk.Client, model string) (*APIEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: embeddings client is required", contractx.ErrValidation)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = string(openaisdk.EmbeddingModelTextEmbedding3Small)
	}
	return &APIEmbedder{client: client, model: model}, nil
}

func (e *APIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty embedding input", contractx.ErrValidation)
	}

	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		Model: openaisdk.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", contractx.ErrEvidenceUnavailable, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", contractx.ErrEvidenceUnavailable)
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
