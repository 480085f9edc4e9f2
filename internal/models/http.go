package models

import "time"

// HTTPExchange - пара запрос/ответ, захваченная прокси или загруженная из файла
type HTTPExchange struct {
	ID        string        `json:"id"`
	Request   RequestPart   `json:"request"`
	Response  *ResponsePart `json:"response,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type RequestPart struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// ResponsePart хранит ответ в сыром виде: статусная строка, заголовки, пустая строка, тело.
// Тело извлекается по смещению, как это делает хост.
type ResponsePart struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Raw        []byte            `json:"raw,omitempty"`
}

// HasResponse - nil и пустой ответ считаются отсутствующими
func (e *HTTPExchange) HasResponse() bool {
	return e != nil && e.Response != nil && len(e.Response.Raw) > 0
}

// ExchangeSummary - облегчённое представление для списков в API (без тел)
type ExchangeSummary struct {
	ID           string    `json:"id"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	StatusCode   int       `json:"status_code"`
	ResponseSize int       `json:"response_size"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e *HTTPExchange) Summary() ExchangeSummary {
	s := ExchangeSummary{
		ID:        e.ID,
		Method:    e.Request.Method,
		URL:       e.Request.URL,
		Timestamp: e.Timestamp,
	}
	if e.Response != nil {
		s.StatusCode = e.Response.StatusCode
		s.ResponseSize = len(e.Response.Raw)
	}
	return s
}
