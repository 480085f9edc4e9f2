package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
)

// Format - формат файла отчёта
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Writer выводит результаты анализа в выбранном формате
type Writer interface {
	// Write возвращает число записанных байт
	Write(results []models.AnalysisResult) (int, error)
}

// NewWriter создаёт Writer по имени формата
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch Format(strings.ToLower(format)) {
	case FormatText, "":
		return NewTextWriter(output), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown report format %q (text, markdown, json)", format)
	}
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText - краткий статус результата для таблиц
func statusText(r models.AnalysisResult) string {
	switch {
	case r.Error != "":
		return "❌ " + r.Error
	case r.Text == "":
		return "⚪ No result"
	default:
		return "✅ Analyzed"
	}
}
