package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
)

// TextWriter повторяет вывод консоли расширения, по блоку на URL
type TextWriter struct {
	baseWriter
}

func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{baseWriter: newBaseWriter(output)}
}

func (w *TextWriter) Write(results []models.AnalysisResult) (int, error) {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "=== %s ===\n", r.URL)
		switch {
		case r.Text != "":
			b.WriteString("[*] AI Studio Analysis Result: \n" + r.Text + "\n")
		case r.Error != "":
			b.WriteString("[-] " + r.Error + "\n")
			b.WriteString("[-] No result returned from AI Studio.\n")
		default:
			b.WriteString("[-] No result returned from AI Studio.\n")
		}
	}
	return io.WriteString(w.output, b.String())
}
