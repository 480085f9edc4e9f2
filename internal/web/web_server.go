package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/analyzer"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/config"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/storage"
)

// Trigger - действие пункта меню над выбранными сообщениями
type Trigger interface {
	Trigger(ctx context.Context, toolFlag analyzer.ToolFlag, messages []*models.HTTPExchange) []models.AnalysisResult
}

type Server struct {
	config    config.WebConfig
	exchanges *storage.ExchangeStore
	results   storage.ResultStore
	trigger   Trigger
	feed      http.Handler
	router    chi.Router
	server    *http.Server
}

// NewServer собирает API. feed - websocket лента, nil отключает /ws.
func NewServer(
	cfg config.WebConfig,
	exchanges *storage.ExchangeStore,
	results storage.ResultStore,
	trigger Trigger,
	feed http.Handler,
) *Server {
	s := &Server{
		config:    cfg,
		exchanges: exchanges,
		results:   results,
		trigger:   trigger,
		feed:      feed,
		router:    chi.NewRouter(),
	}
	s.routes()

	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// без WriteTimeout: анализ держит запрос, пока модель отвечает
	}
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", s.handleMenu)

		r.Get("/exchanges", s.handleListExchanges)
		r.Get("/exchanges/{id}", s.handleGetExchange)
		r.Delete("/exchanges/{id}", s.handleDeleteExchange)

		r.Post("/analyze", s.handleAnalyze)

		r.Get("/results", s.handleListResults)
		r.Get("/results/{id}", s.handleGetResult)
	})

	if s.feed != nil {
		r.Get("/ws", s.feed.ServeHTTP)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start блокируется до остановки сервера
func (s *Server) Start() error {
	log.Info().Msgf("🖥️ Web API listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
