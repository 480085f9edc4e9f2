package proxy

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/analyzer"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/capture"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/cert"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/config"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/storage"
)

// Broadcaster получает каждый захваченный обмен
type Broadcaster interface {
	BroadcastExchange(exchange *models.HTTPExchange)
}

// Listener - HTTP listener хоста, вызывается для запроса и для ответа
type Listener interface {
	ProcessHTTPMessage(
		ctx context.Context,
		toolFlag analyzer.ToolFlag,
		messageIsRequest bool,
		msg *models.HTTPExchange,
	) *models.AnalysisResult
}

// hopHeaders не пересылаются цели
var hopHeaders = []string{
	"Proxy-Connection",
	"Proxy-Authorization",
	"Connection",
	"Keep-Alive",
	"Te",
	"Trailer",
	"Upgrade",
}

type Server struct {
	config      config.ProxyConfig
	exchanges   *storage.ExchangeStore
	server      *http.Server
	certManager *cert.Manager
	upstream    *Upstream
	filter      *StaticFilter
	broadcaster Broadcaster
	listener    Listener
}

func NewServer(cfg *config.Config, store *storage.ExchangeStore, certManager *cert.Manager) *Server {
	s := &Server{
		config:      cfg.Proxy,
		exchanges:   store,
		certManager: certManager,
		upstream:    NewUpstream(cfg.Burp),
	}
	if cfg.Proxy.SkipStatic {
		s.filter = NewStaticFilter()
	}

	s.server = &http.Server{
		Addr:              cfg.Proxy.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func (s *Server) SetListener(l Listener) {
	s.listener = l
}

func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// Start блокируется до остановки сервера
func (s *Server) Start() error {
	log.Info().Msgf("🌐 Proxy listening on %s (%s)", s.server.Addr, s.upstream.RouteInfo())
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	// Обрабатываем CONNECT для HTTPS
	if r.Method == http.MethodConnect {
		s.handleConnect(w, r)
		return
	}

	// Получаем полный URL из запроса
	targetURL := r.URL.String()

	// Если URL не абсолютный, формируем его из Host
	if !r.URL.IsAbs() {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		targetURL = scheme + "://" + r.Host + r.RequestURI
	}

	exchange, response, err := s.roundTrip(r, targetURL)
	if err != nil {
		http.Error(w, "Proxy error: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer response.Body.Close()

	s.record(r.Context(), exchange)

	// Возвращаем ответ клиенту
	s.copyResponse(w, response)
}

// roundTrip перехватывает запрос, пересылает его и захватывает ответ.
// Тело ответа остаётся читаемым для передачи клиенту.
func (s *Server) roundTrip(r *http.Request, targetURL string) (*models.HTTPExchange, *http.Response, error) {
	exchange := s.captureRequest(r, targetURL)
	s.notify(r.Context(), true, exchange)

	response, err := s.forwardRequest(r, targetURL)
	if err != nil {
		log.Warn().Msgf("⚠️ Forward failed for %s %s: %v", r.Method, targetURL, err)
		return nil, nil, err
	}

	if err := s.captureResponse(exchange, response); err != nil {
		response.Body.Close()
		return nil, nil, err
	}
	return exchange, response, nil
}

func (s *Server) captureRequest(r *http.Request, targetURL string) *models.HTTPExchange {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))

	return &models.HTTPExchange{
		ID: uuid.New().String(),
		Request: models.RequestPart{
			Method:  r.Method,
			URL:     targetURL,
			Headers: capture.HeadersToMap(r.Header),
			Body:    string(body),
		},
		Timestamp: time.Now(),
	}
}

func (s *Server) captureResponse(exchange *models.HTTPExchange, resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.TransferEncoding = nil

	exchange.Response = &models.ResponsePart{
		StatusCode: resp.StatusCode,
		Headers:    capture.HeadersToMap(resp.Header),
		Raw:        capture.BuildRawResponse(resp.Proto, resp.StatusCode, resp.Header, body),
	}
	return nil
}

// record сохраняет обмен, если он не отфильтрован, и отдаёт его listener'у
func (s *Server) record(ctx context.Context, exchange *models.HTTPExchange) {
	if s.filter != nil {
		contentType := capture.ContentType(exchange.Response.Headers)
		if skip, reason := s.filter.ShouldSkip(exchange.Request.Method, exchange.Request.URL, contentType); skip {
			log.Debug().Msgf("⚪ Skipping %s %s: %s", exchange.Request.Method, exchange.Request.URL, reason)
			return
		}
	}

	s.exchanges.StoreExchange(exchange)
	log.Debug().Msgf("💾 Stored exchange %s: %s %s -> %d",
		exchange.ID, exchange.Request.Method, exchange.Request.URL, exchange.Response.StatusCode)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastExchange(exchange)
	}
	s.notify(ctx, false, exchange)
}

func (s *Server) notify(ctx context.Context, isRequest bool, exchange *models.HTTPExchange) {
	if s.listener != nil {
		s.listener.ProcessHTTPMessage(ctx, analyzer.ToolProxy, isRequest, exchange)
	}
}

func (s *Server) forwardRequest(r *http.Request, targetURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL, r.Body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = r.ContentLength
	if req.ContentLength == 0 {
		req.Body = http.NoBody
	}

	// Копируем заголовки, кроме hop-by-hop
	for name, values := range r.Header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}

	return s.upstream.Client().Do(req)
}

func (s *Server) copyResponse(w http.ResponseWriter, resp *http.Response) {
	// Копируем заголовки ответа
	for name, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}

	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	// MITM для HTTPS - расшифровка трафика
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "Hijacking not supported", http.StatusInternalServerError)
		return
	}

	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		http.Error(w, "Cannot hijack connection", http.StatusInternalServerError)
		return
	}
	defer clientConn.Close()

	// Сообщаем клиенту что туннель установлен
	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	// Извлекаем хост без порта
	host, port, _ := net.SplitHostPort(r.Host)
	if host == "" {
		host = r.Host
	}

	certificate, err := s.certManager.GetCertificate(host)
	if err != nil {
		log.Error().Err(err).Msgf("❌ Cannot issue certificate for %s", host)
		return
	}

	tlsClientConn := tls.Server(clientConn, &tls.Config{
		Certificates: []tls.Certificate{*certificate},
	})
	defer tlsClientConn.Close()

	if err := tlsClientConn.Handshake(); err != nil {
		log.Debug().Msgf("TLS handshake with client failed for %s: %v", host, err)
		return
	}

	// 443 в URL не показываем
	targetHost := r.Host
	if port == "443" {
		targetHost = host
	}

	// Обрабатываем запросы в цикле (может быть несколько запросов по одному соединению)
	reader := bufio.NewReader(tlsClientConn)
	for {
		req, err := http.ReadRequest(reader)
		if err != nil {
			return
		}

		req.URL.Scheme = "https"
		req.URL.Host = targetHost

		s.handleHTTPSRequest(tlsClientConn, req)

		// Если Connection: close - выходим
		if strings.EqualFold(req.Header.Get("Connection"), "close") {
			return
		}
	}
}

func (s *Server) handleHTTPSRequest(clientConn net.Conn, req *http.Request) {
	exchange, response, err := s.roundTrip(req, req.URL.String())
	if err != nil {
		clientConn.Write([]byte("HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\n\r\n"))
		return
	}
	defer response.Body.Close()

	s.record(req.Context(), exchange)

	response.Write(clientConn)
}

func (s *Server) GetCAPath() string {
	return s.certManager.GetCAPath()
}
