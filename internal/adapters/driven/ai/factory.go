// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/quillworks/driveanswer/internal/adapters/driven/config/file"
	ollamaembed "github.com/quillworks/driveanswer/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/quillworks/driveanswer/internal/adapters/driven/embedding/openai"
	ollamallm "github.com/quillworks/driveanswer/internal/adapters/driven/llm/ollama"
	openaillm "github.com/quillworks/driveanswer/internal/adapters/driven/llm/openai"
	"github.com/quillworks/driveanswer/internal/adapters/driven/vector/memory"
	"github.com/quillworks/driveanswer/internal/adapters/driven/vector/qdrant"
	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateEmbeddingService creates the appropriate embedding service based on settings.
func CreateEmbeddingService(cfg file.ProviderSettings) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case "ollama":
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil

	case "openai":
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
func CreateLLMService(cfg file.ProviderSettings) (driven.LLMService, error) {
	switch cfg.Provider {
	case "ollama":
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil

	case "openai":
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// CreateVectorIndex creates the appropriate vector index based on settings.
func CreateVectorIndex(cfg file.VectorSettings) (driven.VectorIndex, error) {
	switch cfg.Provider {
	case "", "memory":
		return memory.New(), nil

	case "qdrant":
		return qdrant.New(qdrant.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported vector provider: %s", cfg.Provider)
	}
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(cfg file.ProviderSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
func CreateAndValidateLLMService(cfg file.ProviderSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}
	return svc, nil
}
