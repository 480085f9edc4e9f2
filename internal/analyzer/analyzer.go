package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/capture"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/llm"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/storage"
)

const (
	// ExtensionName - имя расширения в хосте
	ExtensionName = "Gemini Analyzer"
	// MenuItemLabel - пункт контекстного меню
	MenuItemLabel = "Gemini-1.5 Analyze"
)

// Broadcaster получает каждый новый результат (websocket лента)
type Broadcaster interface {
	BroadcastResult(result *models.AnalysisResult)
}

// Analyzer - обработчик сообщений хоста: по команде пользователя отправляет тело ответа модели
// и печатает её комментарий в консоль расширения.
type Analyzer struct {
	provider     llm.Provider
	out          Output
	results      storage.ResultStore
	broadcaster  Broadcaster
	maxBodyBytes int

	// один блокирующий вызов модели за раз
	mu sync.Mutex
}

type Option func(*Analyzer)

func WithResultStore(store storage.ResultStore) Option {
	return func(a *Analyzer) { a.results = store }
}

func WithBroadcaster(b Broadcaster) Option {
	return func(a *Analyzer) { a.broadcaster = b }
}

// WithMaxBodyBytes включает сокращение тела перед отправкой, 0 - тело как есть
func WithMaxBodyBytes(n int) Option {
	return func(a *Analyzer) { a.maxBodyBytes = n }
}

func New(provider llm.Provider, out Output, opts ...Option) *Analyzer {
	a := &Analyzer{
		provider: provider,
		out:      out,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Announce печатает сообщение о загрузке расширения
func (a *Analyzer) Announce() {
	a.out.PrintOutput("[*] Gemini AI Plugin loaded successfully")
	log.Info().Msgf("✅ %s: provider=%s model=%s", ExtensionName, a.provider.GetName(), a.provider.GetModel())
}

// Trigger - действие пункта меню: выбранные сообщения обрабатываются по очереди
// в контексте, помеченном как ручной запуск.
func (a *Analyzer) Trigger(ctx context.Context, toolFlag ToolFlag, messages []*models.HTTPExchange) []models.AnalysisResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx = withManualTrigger(ctx)
	log.Info().Msgf("🔍 Analyzing %d message(s) from %s", len(messages), toolFlag)

	var results []models.AnalysisResult
	for _, msg := range messages {
		if ctx.Err() != nil {
			log.Warn().Msgf("⚠️ Analysis cancelled: %v", ctx.Err())
			break
		}
		if result := a.ProcessHTTPMessage(ctx, toolFlag, false, msg); result != nil {
			results = append(results, *result)
		}
	}
	return results
}

// ProcessHTTPMessage - HTTP listener хоста. Всё, что пришло не из Trigger, и запросы игнорируются.
func (a *Analyzer) ProcessHTTPMessage(
	ctx context.Context,
	toolFlag ToolFlag,
	messageIsRequest bool,
	msg *models.HTTPExchange,
) (result *models.AnalysisResult) {
	if !isManualTrigger(ctx) || messageIsRequest {
		return nil
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			a.out.PrintError(fmt.Sprintf("[-] Error processing HTTP message: %v", err))
			log.Error().Msgf("❌ Panic while processing message: %v", r)
			result = a.newResult(msg, "", err, started)
			a.record(ctx, result)
		}
	}()

	if msg == nil {
		a.out.PrintError("[-] Error processing HTTP message: nil message")
		return nil
	}

	url := msg.Request.URL
	if !msg.HasResponse() {
		log.Debug().Msgf("⚪ No response for %s, skipping", url)
		return nil
	}

	body := capture.ExtractBody(msg.Response.Raw)
	content := llm.PrepareContent(string(body), a.contentType(msg.Response), a.maxBodyBytes)

	text, err := a.SendToAI(ctx, url, content)
	if text != "" {
		a.out.PrintOutput("[*] AI Studio Analysis Result: \n" + text)
	} else {
		a.out.PrintOutput("[-] No result returned from AI Studio.")
	}

	result = a.newResult(msg, text, err, started)
	a.record(ctx, result)
	log.Info().Msgf("✅ [%s] %s analyzed in %v", toolFlag, url, result.Duration.Round(time.Millisecond))
	return result
}

// SendToAI строит промпт и вызывает модель. Ошибки печатаются в консоль,
// вызывающий получает пустую строку и саму ошибку.
func (a *Analyzer) SendToAI(ctx context.Context, url, content string) (string, error) {
	prompt := llm.BuildPrompt(url, content)

	a.out.PrintOutput("[*] Sending request to AI Studio for analysis...")
	text, err := a.provider.Generate(ctx, prompt)
	if err != nil {
		a.out.PrintError(describeError(err))
		log.Error().Err(err).Msgf("❌ LLM request failed for %s", url)
		return "", err
	}
	return text, nil
}

func describeError(err error) string {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("[-] HTTPError: %d - %s", apiErr.StatusCode, apiErr.Reason)
	}
	var netErr *llm.NetworkError
	if errors.As(err, &netErr) {
		return fmt.Sprintf("[-] URLError: %s", netErr.Reason())
	}
	return fmt.Sprintf("[-] Unexpected error: %v", err)
}

func (a *Analyzer) contentType(resp *models.ResponsePart) string {
	if ct := capture.ContentType(resp.Headers); ct != "" {
		return ct
	}
	if _, headers, err := capture.ParseResponse(resp.Raw); err == nil {
		return capture.ContentType(headers)
	}
	return ""
}

func (a *Analyzer) newResult(msg *models.HTTPExchange, text string, err error, started time.Time) *models.AnalysisResult {
	result := &models.AnalysisResult{
		ID:        uuid.New().String(),
		Provider:  a.provider.GetName(),
		Model:     a.provider.GetModel(),
		Text:      text,
		Duration:  time.Since(started),
		CreatedAt: time.Now().UTC(),
	}
	if msg != nil {
		result.ExchangeID = msg.ID
		result.URL = msg.Request.URL
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// record сохраняет и рассылает результат, ошибки хранилища только логируются
func (a *Analyzer) record(ctx context.Context, result *models.AnalysisResult) {
	if a.results != nil {
		if err := a.results.Save(context.WithoutCancel(ctx), result); err != nil {
			log.Error().Err(err).Msgf("❌ Failed to save result %s", result.ID)
		}
	}
	if a.broadcaster != nil {
		a.broadcaster.BroadcastResult(result)
	}
}
