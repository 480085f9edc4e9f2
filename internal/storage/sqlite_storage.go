package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteResultStore сохраняет результаты между запусками
type SQLiteResultStore struct {
	db *sql.DB
}

// NewSQLiteResultStore открывает (или создаёт) базу по пути dbPath
func NewSQLiteResultStore(dbPath string) (*SQLiteResultStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Msgf("💾 Results database: %s", dbPath)
	return &SQLiteResultStore{db: db}, nil
}

func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Save вставляет результат, повторный ID перезаписывает запись
func (s *SQLiteResultStore) Save(ctx context.Context, result *models.AnalysisResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (id, exchange_id, url, provider, model, text, error, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			exchange_id = excluded.exchange_id,
			url = excluded.url,
			provider = excluded.provider,
			model = excluded.model,
			text = excluded.text,
			error = excluded.error,
			duration_ns = excluded.duration_ns,
			created_at = excluded.created_at`,
		result.ID, result.ExchangeID, result.URL, result.Provider, result.Model,
		result.Text, result.Error, int64(result.Duration), result.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save result %s: %w", result.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, exchange_id, url, provider, model, text, error, duration_ns, created_at FROM results`

func (s *SQLiteResultStore) Get(ctx context.Context, id string) (*models.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result %s: %w", id, err)
	}
	return result, nil
}

func (s *SQLiteResultStore) List(ctx context.Context) ([]*models.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*models.AnalysisResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (s *SQLiteResultStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*models.AnalysisResult, error) {
	var (
		r          models.AnalysisResult
		durationNs int64
		createdAt  int64
	)
	if err := row.Scan(&r.ID, &r.ExchangeID, &r.URL, &r.Provider, &r.Model, &r.Text, &r.Error, &durationNs, &createdAt); err != nil {
		return nil, err
	}
	r.Duration = time.Duration(durationNs)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return &r, nil
}
