package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/capture"
)

const (
	DefaultDepth   = 3
	DefaultTimeout = 30 * time.Second
)

var ErrInvalidStartURL = errors.New("start URL must be an absolute http(s) URL")

// Page - то, что fetcher поймал при загрузке одной страницы
type Page struct {
	// Entries - ответы, пришедшие во время загрузки (сама страница и её ресурсы)
	Entries []capture.CrawlLogEntry
	// Links - ссылки со страницы, относительные или абсолютные
	Links []string
}

// Fetcher загружает страницу и собирает ответы и ссылки
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
	Close() error
}

type Options struct {
	// Depth - глубина обхода, стартовая страница имеет глубину 0
	Depth int
	// Timeout на загрузку одной страницы
	Timeout time.Duration
}

// Stats - итог обхода
type Stats struct {
	Pages     int
	Failed    int
	Responses int
}

// Crawler обходит сайт в ширину в пределах домена стартового URL
type Crawler struct {
	fetcher Fetcher
	opts    Options
}

func New(fetcher Fetcher, opts Options) *Crawler {
	if opts.Depth < 0 {
		opts.Depth = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Crawler{fetcher: fetcher, opts: opts}
}

type queued struct {
	url   string
	depth int
}

// Run обходит сайт и пишет каждый пойманный ответ в out.
// Ошибка загрузки одной страницы обход не останавливает.
func (c *Crawler) Run(ctx context.Context, startURL string, out *capture.CrawlLogWriter) (Stats, error) {
	var stats Stats

	base, err := url.Parse(startURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return stats, fmt.Errorf("%w: %q", ErrInvalidStartURL, startURL)
	}

	start := normalizeURL(base.String())
	visited := map[string]struct{}{start: {}}
	written := make(map[string]struct{})
	queue := []queued{{url: start}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		current := queue[0]
		queue = queue[1:]

		log.Info().Msgf("🕷️ Crawling %s (depth %d)", current.url, current.depth)
		page, err := c.fetch(ctx, current.url)
		if err != nil {
			stats.Failed++
			log.Warn().Err(err).Msgf("⚠️ Failed to load %s", current.url)
			continue
		}
		stats.Pages++

		for _, entry := range page.Entries {
			key := normalizeURL(entry.URL)
			if !sameSite(key, base) {
				continue
			}
			if _, ok := written[key]; ok {
				continue
			}
			written[key] = struct{}{}

			if err := out.Write(entry); err != nil {
				return stats, err
			}
			stats.Responses++
			log.Debug().Msgf("📥 Captured %s", entry.URL)
		}

		if current.depth >= c.opts.Depth {
			continue
		}
		for _, link := range page.Links {
			next := resolveURL(current.url, link)
			if next == "" || !sameSite(next, base) {
				continue
			}
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, queued{url: next, depth: current.depth + 1})
		}
	}

	log.Info().Msgf("✅ Crawl finished: %d page(s), %d response(s), %d failed", stats.Pages, stats.Responses, stats.Failed)
	return stats, nil
}

func (c *Crawler) fetch(ctx context.Context, pageURL string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	return c.fetcher.Fetch(ctx, pageURL)
}

// normalizeURL убирает фрагмент: страница с #section та же страница
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// resolveURL приводит ссылку к абсолютному http(s) URL без фрагмента, "" если ссылка не подходит
func resolveURL(pageURL, link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return normalizeURL(abs.String())
}

// sameSite - тот же хост (с портом) или его поддомен
func sameSite(raw string, base *url.URL) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, base.Host) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), "."+strings.ToLower(base.Hostname()))
}
