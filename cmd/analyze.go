package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/analyzer"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/capture"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/llm"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/report"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/storage"
)

type analyzeOptions struct {
	overrides   configOverrides
	url         string
	inputFormat string
	format      string
	output      string
}

// NewAnalyzeCmd создает команду analyze
func NewAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Analyze captured HTTP responses",
		Long: `Analyze sends every response found in the input to the model, one at a time,
and prints the result the way the Burp extension console does.

Supported inputs (detected automatically):
  - Burp Suite "Save items" XML export
  - crawl logs (JSON objects with url, requests and responses)
  - a raw HTTP response (requires --url)

Examples:
  # Analyze responses exported from Burp
  gemini-analyzer analyze items.xml

  # Analyze a raw response from stdin
  curl -si https://example.com/ | gemini-analyzer analyze --url https://example.com/

  # Save a markdown report
  gemini-analyzer analyze crawl.log --format markdown --output report.md`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	addConfigFlags(cmd, &opts.overrides)
	cmd.Flags().StringVarP(&opts.url, "url", "u", "", "URL of the response for raw input")
	cmd.Flags().StringVarP(&opts.inputFormat, "input-format", "i", string(capture.FormatAuto), "Input format: auto, burp, crawl, raw")
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(report.FormatText), "Report format: text, markdown, json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write a report to this file ('-' for stdout)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *analyzeOptions) error {
	cfg, err := loadConfig(cmd, &opts.overrides)
	if err != nil {
		return err
	}

	// формат отчёта проверяем до вызовов модели
	if _, err := report.NewWriter(opts.format, io.Discard); err != nil {
		return err
	}

	exchanges, err := loadExchanges(cmd.InOrStdin(), args, capture.LoadOptions{
		Format: capture.Format(opts.inputFormat),
		URL:    opts.url,
	})
	if err != nil {
		return err
	}
	if len(exchanges) == 0 {
		return errors.New("no HTTP messages found in input")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := llm.NewProvider(ctx, cfg.LLM, nil)
	if err != nil {
		return err
	}

	results, err := storage.NewResultStore(cfg.Storage.ResultsDB)
	if err != nil {
		return err
	}
	defer results.Close()

	a := analyzer.New(
		provider,
		analyzer.NewWriterOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
		analyzer.WithResultStore(results),
		analyzer.WithMaxBodyBytes(cfg.LLM.MaxBodyBytes),
	)
	a.Announce()

	analyzed := a.Trigger(ctx, analyzer.ToolCLI, exchanges)

	if opts.output != "" {
		if err := writeReport(cmd.OutOrStdout(), opts.output, opts.format, analyzed); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// loadExchanges читает файлы по очереди, без аргументов - stdin
func loadExchanges(stdin io.Reader, paths []string, opts capture.LoadOptions) ([]*models.HTTPExchange, error) {
	if len(paths) == 0 {
		return capture.Load(stdin, opts)
	}

	var all []*models.HTTPExchange
	for _, path := range paths {
		exchanges, err := capture.LoadFile(path, opts)
		if err != nil {
			return nil, err
		}
		log.Info().Msgf("📂 %s: %d message(s)", path, len(exchanges))
		all = append(all, exchanges...)
	}
	return all, nil
}

func writeReport(stdout io.Writer, path, format string, results []models.AnalysisResult) error {
	out := stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		defer f.Close()
		out = f
	}

	w, err := report.NewWriter(format, out)
	if err != nil {
		return err
	}
	if _, err := w.Write(results); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if path != "-" {
		log.Info().Msgf("📝 Report written to %s", path)
	}
	return nil
}

