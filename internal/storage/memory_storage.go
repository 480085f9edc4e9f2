package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
)

// ExchangeStore - история захваченных обменов в памяти.
// При превышении лимита вытесняются самые старые записи.
type ExchangeStore struct {
	exchanges map[string]*models.HTTPExchange
	order     []string
	limit     int
	mu        sync.RWMutex
}

// NewExchangeStore создаёт хранилище, limit <= 0 - без ограничения
func NewExchangeStore(limit int) *ExchangeStore {
	return &ExchangeStore{
		exchanges: make(map[string]*models.HTTPExchange),
		limit:     limit,
	}
}

func (s *ExchangeStore) StoreExchange(exchange *models.HTTPExchange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.exchanges[exchange.ID]; !exists {
		s.order = append(s.order, exchange.ID)
	}
	s.exchanges[exchange.ID] = exchange

	for s.limit > 0 && len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.exchanges, oldest)
	}
}

func (s *ExchangeStore) GetExchange(id string) (*models.HTTPExchange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exchange, ok := s.exchanges[id]
	return exchange, ok
}

// GetExchanges возвращает обмены в порядке запрошенных ID.
// Неизвестный ID - ошибка: выбор пользователя должен быть полностью валидным.
func (s *ExchangeStore) GetExchanges(ids []string) ([]*models.HTTPExchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exchanges := make([]*models.HTTPExchange, 0, len(ids))
	for _, id := range ids {
		exchange, ok := s.exchanges[id]
		if !ok {
			return nil, fmt.Errorf("exchange %s: %w", id, ErrNotFound)
		}
		exchanges = append(exchanges, exchange)
	}
	return exchanges, nil
}

// ListExchanges - все обмены в порядке захвата
func (s *ExchangeStore) ListExchanges() []*models.HTTPExchange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exchanges := make([]*models.HTTPExchange, 0, len(s.order))
	for _, id := range s.order {
		exchanges = append(exchanges, s.exchanges[id])
	}
	return exchanges
}

// DeleteExchange удаляет обмен из истории, false - такого id нет
func (s *ExchangeStore) DeleteExchange(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exchanges[id]; !ok {
		return false
	}
	delete(s.exchanges, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *ExchangeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// MemoryResultStore - ResultStore без персистентности
type MemoryResultStore struct {
	results map[string]*models.AnalysisResult
	order   []string
	mu      sync.RWMutex
}

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{
		results: make(map[string]*models.AnalysisResult),
	}
}

func (s *MemoryResultStore) Save(_ context.Context, result *models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[result.ID]; !exists {
		s.order = append(s.order, result.ID)
	}
	stored := *result
	s.results[result.ID] = &stored
	return nil
}

func (s *MemoryResultStore) Get(_ context.Context, id string) (*models.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.results[id]
	if !ok {
		return nil, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	copied := *result
	return &copied, nil
}

func (s *MemoryResultStore) List(_ context.Context) ([]*models.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*models.AnalysisResult, 0, len(s.order))
	for _, id := range s.order {
		copied := *s.results[id]
		results = append(results, &copied)
	}
	return results, nil
}

func (s *MemoryResultStore) Close() error {
	return nil
}
