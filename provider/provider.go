// Package provider abstracts the external LLM capabilities the knowledge base
// depends on: text embedding and grounded chat completion.
package provider

import (
	"context"

	"github.com/mohammad-safakhou/ragkb/config"
	"github.com/mohammad-safakhou/ragkb/internal/apperr"
	openai_provider "github.com/mohammad-safakhou/ragkb/provider/openai"
)

// Client identifies an LLM provider implementation.
type Client string

const (
	OpenAI Client = "openai"
)

// Provider is the interface all LLM implementations must satisfy.
type Provider interface {
	// CreateEmbedding generates fixed-dimension vectors for the given texts.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)

	// Completion generates a single non-streaming answer for the given
	// system instruction and user prompt.
	Completion(ctx context.Context, system, user string) (string, error)
}

// New creates an LLM provider from configuration. A missing API key is a
// configuration failure, not an upstream one.
func New(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Type) {
	case OpenAI, "":
		if cfg.APIKey == "" {
			return nil, apperr.Unconfigured("openai api key")
		}
		return openai_provider.NewClient(cfg), nil
	default:
		return nil, apperr.Unconfigured("llm provider " + cfg.Type)
	}
}
