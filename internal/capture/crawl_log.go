package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
)

// CrawlLogEntry - запись лога краулера: страница и пойманные на ней запросы/ответы.
// Записи идут подряд отдельными JSON объектами.
type CrawlLogEntry struct {
	URL       string          `json:"url"`
	Requests  []CrawlRequest  `json:"requests"`
	Responses []CrawlResponse `json:"responses"`
	Content   string          `json:"content"`
}

type CrawlRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
}

type CrawlResponse struct {
	URL        string            `json:"url"`
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body,omitempty"`
}

// CrawlLogWriter пишет записи в формате, который читает Load
type CrawlLogWriter struct {
	encoder *json.Encoder
}

func NewCrawlLogWriter(w io.Writer) *CrawlLogWriter {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return &CrawlLogWriter{encoder: encoder}
}

func (w *CrawlLogWriter) Write(entry CrawlLogEntry) error {
	if err := w.encoder.Encode(entry); err != nil {
		return fmt.Errorf("writing crawl log entry %s: %w", entry.URL, err)
	}
	return nil
}

func parseCrawlLog(data []byte) ([]*models.HTTPExchange, error) {
	var entries []CrawlLogEntry

	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decoding crawl log: %w", err)
		}
	} else {
		decoder := json.NewDecoder(bytes.NewReader(trimmed))
		for {
			var entry CrawlLogEntry
			err := decoder.Decode(&entry)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("decoding crawl log entry %d: %w", len(entries), err)
			}
			entries = append(entries, entry)
		}
	}

	now := time.Now()
	var exchanges []*models.HTTPExchange
	for _, entry := range entries {
		for i, r := range entry.Responses {
			req := models.RequestPart{Method: "GET", URL: r.URL}
			if i < len(entry.Requests) {
				cr := entry.Requests[i]
				req = models.RequestPart{Method: cr.Method, URL: cr.URL, Headers: cr.Headers, Body: cr.Body}
			}
			if req.URL == "" {
				req.URL = entry.URL
			}

			exchanges = append(exchanges, newExchange(req, &models.ResponsePart{
				StatusCode: r.StatusCode,
				Headers:    r.Headers,
				Raw:        BuildRawResponseFromMap(r.StatusCode, r.Headers, []byte(r.Body)),
			}, now))
		}
	}

	return exchanges, nil
}
