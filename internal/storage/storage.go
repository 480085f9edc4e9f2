package storage

import (
	"context"
	"errors"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
)

// ErrNotFound - запись с таким ID не найдена
var ErrNotFound = errors.New("not found")

// ResultStore хранит результаты анализа
type ResultStore interface {
	Save(ctx context.Context, result *models.AnalysisResult) error
	Get(ctx context.Context, id string) (*models.AnalysisResult, error)
	// List возвращает результаты в порядке сохранения
	List(ctx context.Context) ([]*models.AnalysisResult, error)
	Close() error
}

// NewResultStore - sqlite при заданном пути, иначе память
func NewResultStore(path string) (ResultStore, error) {
	if path == "" {
		return NewMemoryResultStore(), nil
	}
	return NewSQLiteResultStore(path)
}
