package llm

import "context"

// Provider - интерфейс для любого LLM провайдера
type Provider interface {
	// Generate отправляет промпт и возвращает текст ответа модели
	Generate(ctx context.Context, prompt string) (string, error)

	// GetName возвращает название провайдера (для логирования)
	GetName() string

	// GetModel возвращает используемую модель
	GetModel() string
}
