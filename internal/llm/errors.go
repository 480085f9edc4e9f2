package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyCandidates - ответ содержит пустой список кандидатов или частей
var ErrEmptyCandidates = errors.New("response contains no candidates")

// ErrMalformedResponse - null или значение не того типа там, где ожидается объект или массив
var ErrMalformedResponse = errors.New("malformed response")

// APIError - сервис ответил не 2xx
type APIError struct {
	StatusCode int
	Reason     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Reason)
}

// Retryable - перегрузка и ошибки сервера имеет смысл повторить
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// NetworkError - запрос не дошёл до сервиса или ответ не был прочитан
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Reason - причина без префикса, для вывода пользователю
func (e *NetworkError) Reason() string {
	return e.Err.Error()
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
