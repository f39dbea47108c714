package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openAIEmbeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, request openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIProvider embeds text with the OpenAI embeddings endpoint.
type OpenAIProvider struct {
	client openAIEmbeddingsAPI
	model  openai.EmbeddingModel
}

// NewOpenAIProvider builds a provider from an API key.
func NewOpenAIProvider(apiKey, model string) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("embedding: openai api key is required")
	}
	return newOpenAIProvider(openai.NewClient(apiKey), model), nil
}

func newOpenAIProvider(client openAIEmbeddingsAPI, model string) *OpenAIProvider {
	if strings.TrimSpace(model) == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIProvider{client: client, model: openai.EmbeddingModel(model)}
}

// Embed sends every text in a single request.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, &openai.EmbeddingRequest{
		Model: p.model,
		Input: texts,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New("embedding: openai response size mismatch")
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding: openai returned index %d out of range", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	for i, vec := range out {
		if len(vec) == 0 {
			return nil, fmt.Errorf("embedding: openai returned no vector for input %d", i)
		}
	}
	return out, nil
}
