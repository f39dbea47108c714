package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "text-embedding-004"

type geminiBatchAPI interface {
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// GeminiProvider embeds text with Google's Gemini embedding models.
type GeminiProvider struct {
	api    geminiBatchAPI
	closer func() error
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("embedding: gemini api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("embedding: failed to create gemini client: %w", err)
	}
	return &GeminiProvider{
		api:    genaiBatch{model: client.EmbeddingModel(model)},
		closer: client.Close,
	}, nil
}

// Embed implements Provider.
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := p.api.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, errors.New("embedding: gemini response size mismatch")
	}
	return vectors, nil
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	return p.closer()
}

type genaiBatch struct {
	model *genai.EmbeddingModel
}

func (g genaiBatch) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	batch := g.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	resp, err := g.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(resp.Embeddings))
	for _, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, errors.New("embedding: gemini returned an empty vector")
		}
		out = append(out, emb.Values)
	}
	return out, nil
}
