package report

import (
	"encoding/json"
	"io"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
)

// JSONWriter - отчёт для обработки другими инструментами
type JSONWriter struct {
	baseWriter
}

func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{baseWriter: newBaseWriter(output)}
}

type jsonReport struct {
	Total    int                     `json:"total"`
	Analyzed int                     `json:"analyzed"`
	Failed   int                     `json:"failed"`
	Results  []models.AnalysisResult `json:"results"`
}

func (w *JSONWriter) Write(results []models.AnalysisResult) (int, error) {
	rep := jsonReport{Total: len(results), Results: results}
	if rep.Results == nil {
		rep.Results = []models.AnalysisResult{}
	}
	for _, r := range results {
		if r.Succeeded() {
			rep.Analyzed++
		} else {
			rep.Failed++
		}
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
