package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/config"
)

// ProviderType - тип провайдера
type ProviderType string

const (
	// ProviderTypeGemini - прямой REST вызов generateContent
	ProviderTypeGemini ProviderType = "gemini"
	// ProviderTypeGenkit - всё остальное через Genkit плагины
	ProviderTypeGenkit ProviderType = "genkit"
)

// TypeFor определяет реализацию по имени провайдера из конфигурации
func TypeFor(provider string) ProviderType {
	if provider == "gemini" {
		return ProviderTypeGemini
	}
	return ProviderTypeGenkit
}

// NewProvider создаёт провайдер на основе конфигурации.
// client используется только REST провайдером, nil - клиент по умолчанию с cfg.Timeout.
func NewProvider(ctx context.Context, cfg config.LLMConfig, client *http.Client) (Provider, error) {
	if !config.IsKnownProvider(cfg.Provider) {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}

	switch TypeFor(cfg.Provider) {
	case ProviderTypeGemini:
		if cfg.BaseURL == "" {
			cfg.BaseURL = config.DefaultBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = config.DefaultModel
		}
		return NewGeminiProvider(GeminiConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIKey:     cfg.ApiKey,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Client:     client,
		}), nil

	default:
		genkitApp, err := InitGenkitApp(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Genkit: %w", err)
		}
		return NewGenkitProvider(genkitApp, cfg)
	}
}
