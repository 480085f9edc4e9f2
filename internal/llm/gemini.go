package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// NoVulnerabilitiesText возвращается, когда в ответе нет текстового поля
const NoVulnerabilitiesText = "[-] No vulnerabilities detected."

// GeminiProvider - прямой REST клиент generateContent (Google AI Studio)
type GeminiProvider struct {
	client     *http.Client
	baseURL    string
	model      string
	apiKey     string
	maxRetries int
}

// GeminiConfig - конфигурация REST клиента
type GeminiConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	// Client позволяет подменить транспорт (прокси, тесты)
	Client *http.Client
}

// NewGeminiProvider создаёт REST провайдер
func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &GeminiProvider{
		client:     client,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
	}
}

type generateContentRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

// Generate выполняет POST generateContent и извлекает candidates[0].content.parts[0].text
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateContentRequest{
		Contents: []requestContent{{Parts: []requestPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var body []byte
	err = withRetry(ctx, p.maxRetries+1, isRetryable, func() error {
		var err error
		body, err = p.post(ctx, payload)
		return err
	})
	if err != nil {
		return "", err
	}

	return ExtractText(body)
}

func (p *GeminiProvider) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Reason:     statusReason(resp),
			Body:       string(body),
		}
	}

	return body, nil
}

func (p *GeminiProvider) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, url.QueryEscape(p.apiKey))
}

// ExtractText достаёт текст первого кандидата candidates[0].content.parts[0].text.
// Отсутствующий ключ на любом уровне даёт NoVulnerabilitiesText, null вместо
// объекта или массива - ErrMalformedResponse, пустой массив - ErrEmptyCandidates.
// "text": null означает пустой результат без ошибки.
func ExtractText(body []byte) (string, error) {
	if isNull(bytes.TrimSpace(body)) {
		return "", fmt.Errorf("%w: response is null", ErrMalformedResponse)
	}

	candidates, ok, err := member(body, "response", "candidates")
	if err != nil || !ok {
		return NoVulnerabilitiesText, err
	}
	candidate, err := firstElement(candidates, "candidates")
	if err != nil {
		return "", err
	}

	content, ok, err := member(candidate, "candidates[0]", "content")
	if err != nil || !ok {
		return NoVulnerabilitiesText, err
	}
	parts, ok, err := member(content, "content", "parts")
	if err != nil || !ok {
		return NoVulnerabilitiesText, err
	}
	part, err := firstElement(parts, "parts")
	if err != nil {
		return "", err
	}

	text, ok, err := member(part, "parts[0]", "text")
	if err != nil || !ok {
		return NoVulnerabilitiesText, err
	}
	if isNull(text) {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(text, &s); err != nil {
		// не строка: печатаем как есть
		return string(text), nil
	}
	return s, nil
}

// member возвращает поле key объекта raw; ok=false, если ключа нет
func member(raw json.RawMessage, name, key string) (json.RawMessage, bool, error) {
	if isNull(raw) {
		return nil, false, fmt.Errorf("%w: %s is null", ErrMalformedResponse, name)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		if name == "response" {
			return nil, false, fmt.Errorf("failed to parse response: %w", err)
		}
		return nil, false, fmt.Errorf("%w: %s is not an object", ErrMalformedResponse, name)
	}
	v, ok := obj[key]
	return v, ok, nil
}

func firstElement(raw json.RawMessage, name string) (json.RawMessage, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("%w: %s is null", ErrMalformedResponse, name)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("%w: %s is not an array", ErrMalformedResponse, name)
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrEmptyCandidates, name)
	}
	return arr[0], nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func statusReason(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}

func (p *GeminiProvider) GetName() string {
	return "gemini"
}

func (p *GeminiProvider) GetModel() string {
	return p.model
}
