package llm

import (
	"context"

	"github.com/firebase/genkit/go/ai"
)

// RetryMiddleware повторяет вызов модели Genkit с exponential backoff.
// maxAttempts = 1 означает один вызов без повторов.
func RetryMiddleware(maxAttempts int) ai.ModelMiddleware {
	return func(next ai.ModelFunc) ai.ModelFunc {
		return func(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
			var resp *ai.ModelResponse
			err := withRetry(ctx, maxAttempts, func(error) bool { return true }, func() error {
				var err error
				resp, err = next(ctx, req, cb)
				return err
			})
			if err != nil {
				return nil, err
			}
			return resp, nil
		}
	}
}
