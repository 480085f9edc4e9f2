package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const maxRetryDelay = 30 * time.Second

// retryBaseDelay - первая задержка, дальше удваивается: 1s → 2s → 4s
var retryBaseDelay = time.Second

// withRetry выполняет fn до maxAttempts раз, пока ошибка retryable
func withRetry(ctx context.Context, maxAttempts int, retryable func(error) bool, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().Msgf("✅ LLM retry успешен на попытке %d/%d", attempt, maxAttempts)
			}
			return nil
		}
		lastErr = err

		if attempt == maxAttempts || !retryable(err) {
			break
		}

		delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}

		log.Warn().Msgf("⚠️ LLM ошибка на попытке %d/%d: %v. Retry через %v...", attempt, maxAttempts, err, delay)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	if maxAttempts > 1 {
		return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
	}
	return lastErr
}
