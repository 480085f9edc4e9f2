package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
)

// MarkdownWriter - отчёт для документации и тикетов
type MarkdownWriter struct {
	baseWriter
}

func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

func (w *MarkdownWriter) Write(results []models.AnalysisResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Gemini Analyzer Report")
	md.PlainText("")

	w.writeSummary(md, results)
	w.writeResults(md, results)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, results []models.AnalysisResult) {
	md.H2("Summary")
	md.PlainText("")

	if len(results) == 0 {
		md.PlainText("No responses were analyzed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(results))
	failed := 0
	for _, r := range results {
		if !r.Succeeded() {
			failed++
		}
		rows = append(rows, []string{
			"`" + r.URL + "`",
			statusText(r),
			r.Provider + "/" + r.Model,
			r.Duration.Round(time.Millisecond).String(),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Model", "Duration"},
		Rows:   rows,
	})
	md.PlainText("")

	if failed > 0 {
		md.Warningf("%d of %d response(s) were not analyzed.", failed, len(results))
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, results []models.AnalysisResult) {
	for i, r := range results {
		md.H2(strconv.Itoa(i+1) + ". " + r.URL)
		md.PlainText("")

		switch {
		case r.Text != "":
			// ответ модели уже в markdown
			md.PlainText(r.Text)
		case r.Error != "":
			md.Cautionf("Analysis failed: %s", r.Error)
		default:
			md.Note("No result returned from AI Studio.")
		}
		md.PlainText("")
	}
}
