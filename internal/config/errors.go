package config

import "errors"

var (
	ErrMissingAPIKey    = errors.New("API key is required (set GEMINI_API_KEY)")
	ErrUnknownProvider  = errors.New("unknown LLM provider")
	ErrMissingModel     = errors.New("model name is required")
	ErrInvalidTimeout   = errors.New("timeout must be positive")
	ErrInvalidRetries   = errors.New("max retries must not be negative")
	ErrInvalidBodyLimit = errors.New("max body bytes must not be negative")
	ErrIncompleteBurp   = errors.New("burp host and port must be set together")
)
