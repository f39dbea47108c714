package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// DefaultBedrockModel is the Titan multilingual text embedding model.
const DefaultBedrockModel = "amazon.titan-embed-text-v2:0"

type bedrockInvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockProvider embeds text with an Amazon Titan model.
type BedrockProvider struct {
	api     bedrockInvokeModelAPI
	modelID string
}

func NewBedrockProvider(api bedrockInvokeModelAPI, modelID string) *BedrockProvider {
	if api == nil {
		panic("embedding: bedrock runtime client cannot be nil")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultBedrockModel
	}
	return &BedrockProvider{api: api, modelID: modelID}
}

// Embed issues one InvokeModel call per text; Titan does not batch.
func (p *BedrockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	for _, text := range texts {
		payload, err := json.Marshal(map[string]any{
			"inputText": text,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding: bedrock request marshal: %w", err)
		}

		out, err := p.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(p.modelID),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        payload,
		})
		if err != nil {
			return nil, err
		}

		var decoded struct {
			Embedding []float64 `json:"embedding"`
		}
		if err := json.Unmarshal(out.Body, &decoded); err != nil {
			return nil, fmt.Errorf("embedding: bedrock response parse: %w", err)
		}
		if len(decoded.Embedding) == 0 {
			return nil, errors.New("embedding: bedrock response was empty")
		}

		vec := make([]float32, len(decoded.Embedding))
		for i, f := range decoded.Embedding {
			vec[i] = float32(f)
		}
		embeddings = append(embeddings, vec)
	}

	return embeddings, nil
}
