package models

import "time"

// AnalysisResult - результат одного вызова модели для одного ответа
type AnalysisResult struct {
	ID         string        `json:"id"`
	ExchangeID string        `json:"exchange_id,omitempty"`
	URL        string        `json:"url"`
	Provider   string        `json:"provider"`
	Model      string        `json:"model"`
	Text       string        `json:"text,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Succeeded - модель ответила непустым текстом
func (r *AnalysisResult) Succeeded() bool {
	return r.Error == "" && r.Text != ""
}
