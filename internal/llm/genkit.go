package llm

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/config"
)

// GenkitProvider - универсальный провайдер через Genkit (Google AI и OpenAI-совместимые API)
type GenkitProvider struct {
	genkitApp  *genkit.Genkit
	provider   string
	model      string
	modelName  string
	maxRetries int
}

// InitGenkitApp создает и инициализирует Genkit с нужным плагином
func InitGenkitApp(ctx context.Context, cfg config.LLMConfig) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case "googleai":
		return genkit.Init(
			ctx, genkit.WithPlugins(
				&googlegenai.GoogleAI{
					APIKey: cfg.ApiKey,
				},
			),
		), nil

	case "openai", "ollama", "localai", "lm-studio":
		return genkit.Init(
			ctx, genkit.WithPlugins(
				&compat_oai.OpenAICompatible{
					Provider: cfg.Provider,
					APIKey:   cfg.ApiKey,
					BaseURL:  compatBaseURL(cfg),
				},
			),
		), nil

	default:
		return nil, fmt.Errorf("unsupported genkit provider: %s", cfg.Provider)
	}
}

// compatBaseURL - адрес AI Studio по умолчанию не подходит OpenAI-совместимым API
func compatBaseURL(cfg config.LLMConfig) string {
	if cfg.BaseURL != "" && cfg.BaseURL != config.DefaultBaseURL {
		return cfg.BaseURL
	}
	switch cfg.Provider {
	case "ollama":
		return "http://localhost:11434/v1"
	case "localai":
		return "http://localhost:8080/v1"
	case "lm-studio":
		return "http://localhost:1234/v1"
	}
	return ""
}

// NewGenkitProvider создает провайдер с уже инициализированным GenkitApp
func NewGenkitProvider(genkitApp *genkit.Genkit, cfg config.LLMConfig) (*GenkitProvider, error) {
	if genkitApp == nil {
		return nil, fmt.Errorf("genkitApp cannot be nil")
	}

	return &GenkitProvider{
		genkitApp:  genkitApp,
		provider:   cfg.Provider,
		model:      cfg.Model,
		modelName:  cfg.Provider + "/" + cfg.Model,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Generate отправляет промпт как одно пользовательское сообщение.
// WithMessages вместо WithPrompt: тело ответа может содержать символы форматирования.
func (p *GenkitProvider) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := genkit.GenerateText(
		ctx,
		p.genkitApp,
		ai.WithModelName(p.modelName),
		ai.WithMessages(ai.NewUserTextMessage(prompt)),
		ai.WithMiddleware(RetryMiddleware(p.maxRetries+1)),
	)
	if err != nil {
		return "", fmt.Errorf("genkit generation failed: %w", err)
	}
	return text, nil
}

func (p *GenkitProvider) GetName() string {
	return p.provider
}

func (p *GenkitProvider) GetModel() string {
	return p.model
}
