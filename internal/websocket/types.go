package websocket

import "github.com/BetterCallFirewall/gemini-analyzer/internal/models"

// Типы сообщений ленты
const (
	MessageTypeExchange = "exchange"
	MessageTypeResult   = "result"
)

// Message - конверт для всех сообщений, отправляемых клиентам
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// ResultDTO - результат анализа вместе с кратким описанием обмена, если оно известно
type ResultDTO struct {
	Result   *models.AnalysisResult  `json:"result"`
	Exchange *models.ExchangeSummary `json:"exchange,omitempty"`
}
