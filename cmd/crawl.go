package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/capture"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/crawler"
)

type crawlOptions struct {
	url       string
	depth     int
	timeout   time.Duration
	output    string
	browser   bool
	headless  bool
	idleAfter time.Duration
}

// NewCrawlCmd создает команду crawl
func NewCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a site and log every response for later analysis",
		Long: `Crawl walks a site breadth first in a headless browser, staying on the start
URL's domain, and writes every response it sees (pages, scripts, XHR) as a crawl
log. The log is an input for "gemini-analyzer analyze".

Examples:
  gemini-analyzer crawl --url https://example.com --depth 2 -o logs.json
  gemini-analyzer analyze logs.json

  # without Chrome: plain HTTP, no JavaScript
  gemini-analyzer crawl --url https://example.com --browser=false -o -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.url, "url", "u", "", "Start URL, e.g. https://example.com (required)")
	cmd.Flags().IntVarP(&opts.depth, "depth", "d", crawler.DefaultDepth, "Maximum crawl depth")
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", crawler.DefaultTimeout, "Timeout for loading one page")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "logs.json", "Crawl log file ('-' for stdout)")
	cmd.Flags().BoolVar(&opts.browser, "browser", true, "Use headless Chrome (false: plain HTTP without JavaScript)")
	cmd.Flags().BoolVar(&opts.headless, "headless", true, "Hide the browser window")
	cmd.Flags().DurationVar(&opts.idleAfter, "idle", crawler.DefaultIdleAfter, "Network quiet time before a page counts as loaded")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	var fetcher crawler.Fetcher
	if opts.browser {
		f, err := crawler.NewBrowserFetcher(opts.headless, opts.idleAfter)
		if err != nil {
			return fmt.Errorf("%w (use --browser=false to crawl without Chrome)", err)
		}
		fetcher = f
	} else {
		fetcher = crawler.NewHTTPFetcher(nil)
	}
	defer fetcher.Close()

	var out io.Writer = cmd.OutOrStdout()
	if opts.output != "-" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("creating crawl log: %w", err)
		}
		defer f.Close()
		out = f
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := crawler.New(fetcher, crawler.Options{Depth: opts.depth, Timeout: opts.timeout})
	stats, err := c.Run(ctx, opts.url, capture.NewCrawlLogWriter(out))
	if err != nil {
		return err
	}

	if opts.output != "-" {
		log.Info().Msgf("📝 %d response(s) from %d page(s) written to %s", stats.Responses, stats.Pages, opts.output)
	}
	return nil
}
