package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// FactoryConfig selects and configures a backend.
type FactoryConfig struct {
	Provider     string // bedrock, openai or gemini
	Model        string
	OpenAIAPIKey string
	GeminiAPIKey string
	AWS          *aws.Config
}

// NewProvider builds the configured backend. The caller wraps it with
// NewResilient.
func NewProvider(ctx context.Context, cfg FactoryConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "bedrock":
		if cfg.AWS == nil {
			return nil, fmt.Errorf("embedding: bedrock provider requires aws config")
		}
		return NewBedrockProvider(bedrockruntime.NewFromConfig(*cfg.AWS), cfg.Model), nil
	case "openai":
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.Model)
	case "gemini":
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}
