package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
)

// Format - формат входного файла с захваченным трафиком
type Format string

const (
	FormatAuto     Format = "auto"
	FormatBurpXML  Format = "burp"
	FormatCrawlLog Format = "crawl"
	FormatRaw      Format = "raw"
)

var (
	ErrUnknownFormat = errors.New("unknown capture format")
	ErrMissingURL    = errors.New("raw response input requires a URL")
)

// LoadOptions управляет разбором входа
type LoadOptions struct {
	Format Format
	// URL обязателен для сырого ответа: в нём нет информации о запросе
	URL string
}

// LoadFile читает файл и возвращает найденные обмены
func LoadFile(path string, opts LoadOptions) ([]*models.HTTPExchange, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	exchanges, err := Load(f, opts)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return exchanges, nil
}

// Load разбирает вход в указанном формате; FormatAuto определяет формат по содержимому
func Load(r io.Reader, opts LoadOptions) ([]*models.HTTPExchange, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	format := opts.Format
	if format == "" || format == FormatAuto {
		format = DetectFormat(data)
	}

	switch format {
	case FormatBurpXML:
		return parseBurpXML(data)
	case FormatCrawlLog:
		return parseCrawlLog(data)
	case FormatRaw:
		return parseRawResponse(data, opts.URL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// DetectFormat угадывает формат по первым значимым байтам
func DetectFormat(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n\uFEFF")

	switch {
	case bytes.HasPrefix(trimmed, []byte("<?xml")), bytes.HasPrefix(trimmed, []byte("<items")):
		return FormatBurpXML
	case bytes.HasPrefix(trimmed, []byte("{")), bytes.HasPrefix(trimmed, []byte("[")):
		return FormatCrawlLog
	case bytes.HasPrefix(trimmed, []byte("HTTP/")):
		return FormatRaw
	default:
		return Format("")
	}
}

func parseRawResponse(data []byte, rawURL string) ([]*models.HTTPExchange, error) {
	if rawURL == "" {
		return nil, ErrMissingURL
	}

	resp := &models.ResponsePart{Raw: data}
	if status, headers, err := ParseResponse(data); err == nil {
		resp.StatusCode = status
		resp.Headers = headers
	}

	return []*models.HTTPExchange{newExchange(
		models.RequestPart{Method: "GET", URL: rawURL},
		resp,
		time.Now(),
	)}, nil
}

func newExchange(req models.RequestPart, resp *models.ResponsePart, ts time.Time) *models.HTTPExchange {
	return &models.HTTPExchange{
		ID:        uuid.New().String(),
		Request:   req,
		Response:  resp,
		Timestamp: ts,
	}
}
