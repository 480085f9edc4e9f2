package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/analyzer"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/storage"
)

// AnalyzeRequest - выбор пользователя для пункта меню
type AnalyzeRequest struct {
	IDs  []string `json:"ids"`
	Tool string   `json:"tool,omitempty"`
}

type AnalyzeResponse struct {
	Results []models.AnalysisResult `json:"results"`
}

type MenuItem struct {
	Label  string `json:"label"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type healthResponse struct {
	Status    string `json:"status"`
	Exchanges int    `json:"exchanges"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Exchanges: s.exchanges.Len()})
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []MenuItem{
		{Label: analyzer.MenuItemLabel, Method: http.MethodPost, Path: "/api/analyze"},
	})
}

func (s *Server) handleListExchanges(w http.ResponseWriter, r *http.Request) {
	exchanges := s.exchanges.ListExchanges()
	summaries := make([]models.ExchangeSummary, 0, len(exchanges))
	for _, e := range exchanges {
		summaries = append(summaries, e.Summary())
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetExchange(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exchange, ok := s.exchanges.GetExchange(id)
	if !ok {
		writeError(w, http.StatusNotFound, "exchange not found")
		return
	}
	writeJSON(w, http.StatusOK, exchange)
}

func (s *Server) handleDeleteExchange(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.exchanges.DeleteExchange(id) {
		writeError(w, http.StatusNotFound, "exchange not found")
		return
	}
	log.Debug().Msgf("🗑️ Exchange %s removed from history", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleAnalyze - пункт меню: выбранные обмены уходят в Trigger, ответ ждёт все результаты
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids must not be empty")
		return
	}

	messages, err := s.exchanges.GetExchanges(req.IDs)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	results := s.trigger.Trigger(r.Context(), analyzer.ParseToolFlag(req.Tool), messages)
	if results == nil {
		results = []models.AnalysisResult{}
	}
	writeJSON(w, http.StatusOK, AnalyzeResponse{Results: results})
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.results.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []*models.AnalysisResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.results.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
