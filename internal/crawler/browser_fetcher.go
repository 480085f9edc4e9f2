package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/capture"
)

const DefaultIdleAfter = 2 * time.Second

// linksScript собирает ссылки тех же элементов, что и linkSelectors, плюс meta refresh
const linksScript = `Array.from(document.querySelectorAll(
  "a[href], form[action], script[src], iframe[src], img[src], link[href], meta[http-equiv=refresh][content]"
)).map(el => {
  if (el.tagName === 'META') {
    const content = el.content || '';
    const idx = content.toLowerCase().indexOf('url=');
    return idx === -1 ? null : content.substring(idx + 4);
  }
  return el.href || el.action || el.src || null;
}).filter(Boolean)`

// BrowserFetcher загружает страницы в headless Chrome и ловит все ответы,
// пришедшие во время загрузки, включая XHR и ресурсы
type BrowserFetcher struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	idleAfter     time.Duration
}

// NewBrowserFetcher запускает браузер сразу: отсутствие Chrome видно до начала обхода
func NewBrowserFetcher(headless bool, idleAfter time.Duration) (*BrowserFetcher, error) {
	if idleAfter <= 0 {
		idleAfter = DefaultIdleAfter
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("ignore-certificate-errors", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &BrowserFetcher{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		idleAfter:     idleAfter,
	}, nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(f.browserCtx)
	defer cancel()

	// контекст вкладки наследуется от браузера, таймаут вызывающего переносим вручную
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-tabCtx.Done():
		}
	}()

	rec := newNetworkRecorder()
	chromedp.ListenTarget(tabCtx, rec.listen)

	if err := chromedp.Run(tabCtx, network.Enable(), chromedp.Navigate(pageURL)); err != nil {
		return nil, fmt.Errorf("navigating to %s: %w", pageURL, err)
	}
	rec.waitIdle(tabCtx, f.idleAfter)

	var links []string
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(linksScript, &links)); err != nil {
		log.Debug().Err(err).Msgf("⚠️ Link extraction failed on %s", pageURL)
	}

	entries := rec.entries(tabCtx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Page{Entries: entries, Links: links}, nil
}

func (f *BrowserFetcher) Close() error {
	f.browserCancel()
	f.allocCancel()
	return nil
}

// networkRecorder собирает события сети одной вкладки
type networkRecorder struct {
	mu           sync.Mutex
	requests     map[network.RequestID]capture.CrawlRequest
	responses    map[network.RequestID]capture.CrawlResponse
	finished     map[network.RequestID]bool
	order        []network.RequestID
	inflight     int
	lastActivity time.Time
}

func newNetworkRecorder() *networkRecorder {
	return &networkRecorder{
		requests:     make(map[network.RequestID]capture.CrawlRequest),
		responses:    make(map[network.RequestID]capture.CrawlResponse),
		finished:     make(map[network.RequestID]bool),
		lastActivity: time.Now(),
	}
}

func (r *networkRecorder) listen(ev interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		// редирект приходит с тем же RequestID
		if e.RedirectResponse == nil {
			r.inflight++
		}
		r.requests[e.RequestID] = capture.CrawlRequest{
			Method:  e.Request.Method,
			URL:     e.Request.URL,
			Headers: headerMap(e.Request.Headers),
		}
	case *network.EventResponseReceived:
		if _, ok := r.responses[e.RequestID]; !ok {
			r.order = append(r.order, e.RequestID)
		}
		r.responses[e.RequestID] = capture.CrawlResponse{
			URL:        e.Response.URL,
			StatusCode: int(e.Response.Status),
			Headers:    headerMap(e.Response.Headers),
		}
	case *network.EventLoadingFinished:
		r.finished[e.RequestID] = true
		r.done()
	case *network.EventLoadingFailed:
		r.done()
	default:
		return
	}
	r.lastActivity = time.Now()
}

func (r *networkRecorder) done() {
	if r.inflight > 0 {
		r.inflight--
	}
}

// waitIdle ждёт, пока сеть не затихнет на idleAfter
func (r *networkRecorder) waitIdle(ctx context.Context, idleAfter time.Duration) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		r.mu.Lock()
		idle := r.inflight == 0 && time.Since(r.lastActivity) >= idleAfter
		r.mu.Unlock()
		if idle {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// entries забирает тела завершённых ответов и собирает записи лога
func (r *networkRecorder) entries(ctx context.Context) []capture.CrawlLogEntry {
	r.mu.Lock()
	order := append([]network.RequestID(nil), r.order...)
	r.mu.Unlock()

	var out []capture.CrawlLogEntry
	for _, id := range order {
		r.mu.Lock()
		resp := r.responses[id]
		req, hasReq := r.requests[id]
		finished := r.finished[id]
		r.mu.Unlock()

		if !finished {
			continue
		}

		var body []byte
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			body, err = network.GetResponseBody(id).Do(ctx)
			return err
		}))
		if err != nil {
			log.Debug().Err(err).Msgf("⚪ No body for %s", resp.URL)
		}
		resp.Body = string(body)

		if !hasReq {
			req = capture.CrawlRequest{Method: "GET", URL: resp.URL}
		}
		out = append(out, capture.CrawlLogEntry{
			URL:       resp.URL,
			Requests:  []capture.CrawlRequest{req},
			Responses: []capture.CrawlResponse{resp},
			Content:   resp.Body,
		})
	}
	return out
}

func headerMap(h network.Headers) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = fmt.Sprint(v)
	}
	return out
}
