package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/capture"
)

// linkSelectors - те же элементы, что собирает браузерный fetcher
var linkSelectors = []struct {
	selector string
	attr     string
}{
	{"a[href]", "href"},
	{"form[action]", "action"},
	{"script[src]", "src"},
	{"iframe[src]", "src"},
	{"img[src]", "src"},
	{"link[href]", "href"},
}

// HTTPFetcher загружает страницы обычным HTTP клиентом, без выполнения JavaScript.
// Ловит только ответ самой страницы.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher, nil client - клиент без таймаута (таймаут задаёт Crawler)
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", pageURL, err)
	}

	finalURL := resp.Request.URL.String()
	page := &Page{
		Entries: []capture.CrawlLogEntry{{
			URL: finalURL,
			Requests: []capture.CrawlRequest{{
				Method:  req.Method,
				URL:     finalURL,
				Headers: flattenHeaders(resp.Request.Header),
			}},
			Responses: []capture.CrawlResponse{{
				URL:        finalURL,
				StatusCode: resp.StatusCode,
				Headers:    flattenHeaders(resp.Header),
				Body:       string(body),
			}},
			Content: string(body),
		}},
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		page.Links = extractLinks(body)
	}
	return page, nil
}

func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func extractLinks(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	for _, ls := range linkSelectors {
		doc.Find(ls.selector).Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr(ls.attr); ok {
				links = append(links, v)
			}
		})
	}
	doc.Find(`meta[http-equiv]`).Each(func(_ int, s *goquery.Selection) {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(equiv, "refresh") {
			return
		}
		content, _ := s.Attr("content")
		if target := refreshTarget(content); target != "" {
			links = append(links, target)
		}
	})
	return links
}

// refreshTarget достаёт url из content="5; url=/next"
func refreshTarget(content string) string {
	idx := strings.Index(strings.ToLower(content), "url=")
	if idx == -1 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(content[idx+len("url="):]), `'"`)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}
