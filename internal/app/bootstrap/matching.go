package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/wolfman30/clinic-autoresponder/internal/config"
	"github.com/wolfman30/clinic-autoresponder/internal/embedding"
	"github.com/wolfman30/clinic-autoresponder/internal/similarity"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

// BuildEmbeddingProvider returns the configured provider wrapped with
// timeout and retry, or nil when matching is lexical. awsCfg is only read
// for the bedrock provider.
func BuildEmbeddingProvider(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, observer embedding.Observer, logger *logging.Logger) (embedding.Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.UseEmbeddings() {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	provider, err := embedding.NewProvider(ctx, embedding.FactoryConfig{
		Provider:     cfg.EmbeddingProvider,
		Model:        cfg.EmbeddingModel,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		GeminiAPIKey: cfg.GeminiAPIKey,
		AWS:          awsCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: embedding provider: %w", err)
	}
	logger.Info("embedding provider enabled", "provider", cfg.EmbeddingProvider, "model", cfg.EmbeddingModel)
	return embedding.NewResilient(provider, embedding.ResilientConfig{
		Name:     cfg.EmbeddingProvider,
		Timeout:  cfg.EmbeddingTimeout,
		Observer: observer,
		Logger:   logger,
	}), nil
}

// BuildStrategy picks vector scoring when a provider is available.
func BuildStrategy(provider embedding.Provider) similarity.Strategy {
	if provider == nil {
		return similarity.LexicalStrategy{}
	}
	return similarity.NewEmbeddingStrategy(provider)
}
