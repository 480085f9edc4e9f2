package proxy

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/analyzer"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/capture"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/cert"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/config"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/storage"
)

type listenerCall struct {
	toolFlag  analyzer.ToolFlag
	isRequest bool
	id        string
}

type fakeListener struct {
	mu    sync.Mutex
	calls []listenerCall
}

func (l *fakeListener) ProcessHTTPMessage(
	_ context.Context,
	toolFlag analyzer.ToolFlag,
	isRequest bool,
	msg *models.HTTPExchange,
) *models.AnalysisResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, listenerCall{toolFlag: toolFlag, isRequest: isRequest, id: msg.ID})
	return nil
}

type fakeFeed struct {
	mu        sync.Mutex
	exchanges []*models.HTTPExchange
}

func (f *fakeFeed) BroadcastExchange(exchange *models.HTTPExchange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, exchange)
}

type harness struct {
	store    *storage.ExchangeStore
	listener *fakeListener
	feed     *fakeFeed
	certs    *cert.Manager
	client   *http.Client
}

func newHarness(t *testing.T, mutate func(cfg *config.Config)) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Cert.CertFile = filepath.Join(t.TempDir(), "ca.pem")
	if mutate != nil {
		mutate(cfg)
	}

	certs, err := cert.NewCertManager(cfg.Cert.CertFile)
	require.NoError(t, err)

	h := &harness{
		store:    storage.NewExchangeStore(0),
		listener: &fakeListener{},
		feed:     &fakeFeed{},
		certs:    certs,
	}

	srv := NewServer(cfg, h.store, certs)
	srv.SetListener(h.listener)
	srv.SetBroadcaster(h.feed)

	proxyServer := httptest.NewServer(srv.Handler())
	t.Cleanup(proxyServer.Close)

	proxyURL, err := url.Parse(proxyServer.URL)
	require.NoError(t, err)

	h.client = &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{RootCAs: certs.CertPool()},
		},
	}
	return h
}

func TestProxy_CapturesHTTPExchange(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("X-Frame-Options", "DENY")
		io.WriteString(w, "<html>hello "+r.URL.Query().Get("name")+"</html>")
	}))
	defer target.Close()

	h := newHarness(t, nil)

	resp, err := h.client.Get(target.URL + "/page?name=bob")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, "<html>hello bob</html>", string(body), "client gets the original response")

	require.Equal(t, 1, h.store.Len())
	exchange := h.store.ListExchanges()[0]
	assert.Equal(t, "GET", exchange.Request.Method)
	assert.Equal(t, target.URL+"/page?name=bob", exchange.Request.URL)
	require.True(t, exchange.HasResponse())
	assert.Equal(t, 200, exchange.Response.StatusCode)
	assert.Equal(t, "DENY", exchange.Response.Headers["X-Frame-Options"])
	assert.Equal(t, "<html>hello bob</html>", string(capture.ExtractBody(exchange.Response.Raw)))
	assert.True(t, strings.HasPrefix(string(exchange.Response.Raw), "HTTP/1.1 200 OK\r\n"))

	assert.Equal(t, []listenerCall{
		{toolFlag: analyzer.ToolProxy, isRequest: true, id: exchange.ID},
		{toolFlag: analyzer.ToolProxy, isRequest: false, id: exchange.ID},
	}, h.listener.calls)
	require.Len(t, h.feed.exchanges, 1)
	assert.Equal(t, exchange.ID, h.feed.exchanges[0].ID)
}

func TestProxy_ForwardsRequestBody(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, r.Header.Get("Proxy-Connection"))
		w.Write(append([]byte("echo:"), body...))
	}))
	defer target.Close()

	h := newHarness(t, nil)

	resp, err := h.client.Post(target.URL+"/login", "application/x-www-form-urlencoded", strings.NewReader("user=admin&pass=x"))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, "echo:user=admin&pass=x", string(body))
	exchange := h.store.ListExchanges()[0]
	assert.Equal(t, "user=admin&pass=x", exchange.Request.Body)
	assert.Equal(t, "application/x-www-form-urlencoded", exchange.Request.Headers["Content-Type"])
}

func TestProxy_SkipStatic(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer target.Close()

	h := newHarness(t, func(cfg *config.Config) { cfg.Proxy.SkipStatic = true })

	resp, err := h.client.Get(target.URL + "/logo.png")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, body)
	assert.Zero(t, h.store.Len())
	assert.Empty(t, h.feed.exchanges)
	require.Len(t, h.listener.calls, 1)
	assert.True(t, h.listener.calls[0].isRequest)
}

func TestProxy_BadGateway(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := ln.Addr().String()
	ln.Close()

	h := newHarness(t, nil)

	resp, err := h.client.Get("http://" + deadAddr + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Zero(t, h.store.Len())
}

func TestProxy_HTTPSInterception(t *testing.T) {
	target := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"token":"abc"}`)
	}))
	defer target.Close()

	h := newHarness(t, nil)

	resp, err := h.client.Get(target.URL + "/api/me")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, `{"token":"abc"}`, string(body))
	require.Equal(t, 1, h.store.Len())

	exchange := h.store.ListExchanges()[0]
	assert.Equal(t, target.URL+"/api/me", exchange.Request.URL)
	assert.Equal(t, `{"token":"abc"}`, string(capture.ExtractBody(exchange.Response.Raw)))
	assert.Equal(t, "application/json", capture.ContentType(exchange.Response.Headers))
}
