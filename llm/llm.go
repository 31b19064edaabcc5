// Package llm provides chat-completion and embedding providers behind small
// interfaces, selected by configuration.
package llm

import (
	"context"
	"fmt"

	"github.com/pdfchat/pdfchat/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Client generates one completion for a conversation.
type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Embedder turns texts into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewClient selects the completion provider from configuration.
func NewClient(cfg config.Config) (Client, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOllama:
		return newOllamaClient(cfg.OllamaHost, cfg.LLM.Model), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return newOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLM.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}

// NewEmbedder selects the embedding provider from configuration.
func NewEmbedder(cfg config.Config) (Embedder, error) {
	switch cfg.Embeddings.Provider {
	case config.ProviderOllama:
		return newOllamaEmbedder(cfg.OllamaHost, cfg.Embeddings.Model, cfg.Embeddings.Dimension), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return newOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Embeddings.Model, cfg.Embeddings.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embeddings.Provider)
	}
}
