package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"main/internal/cache"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/store"

	"github.com/yanun0323/logs"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 365
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logs.Errorf("encode response, err: %+v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	kind := "bad_request"
	switch status {
	case http.StatusNotFound:
		kind = "not_found"
	case http.StatusInternalServerError:
		kind = "internal_error"
	case http.StatusServiceUnavailable:
		kind = "unavailable"
	}
	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

func pathKey(r *http.Request) (symbol, exchange string, ok bool) {
	symbol = strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	exchange = strings.ToUpper(strings.TrimSpace(r.PathValue("exchange")))
	return symbol, exchange, symbol != "" && exchange != ""
}

// handleCurrentPrice serves GET /api/v1/prices/{exchange}/{symbol}. It
// prefers the redis mirror for freshness and falls back to today's stored
// aggregate.
func (s *Server) handleCurrentPrice(w http.ResponseWriter, r *http.Request) {
	symbol, exchange, ok := pathKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "symbol and exchange are required")
		return
	}

	if s.cache != nil {
		tick, err := s.cache.Latest(r.Context(), symbol, exchange)
		if err == nil {
			writeJSON(w, http.StatusOK, tick)
			return
		}
		if err != cache.ErrNoPrice {
			logs.Errorf("cache lookup %s.%s, err: %+v", symbol, exchange, err)
		}
	}

	row, err := s.store.CurrentPrice(r.Context(), symbol, exchange, s.now())
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "no price data for "+symbol+"."+exchange)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleHistory serves GET /api/v1/history/{exchange}/{symbol}?days=N with
// per-day OHLC rows, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol, exchange, ok := pathKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "symbol and exchange are required")
		return
	}

	days := defaultHistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	rows, err := s.store.History(r.Context(), symbol, exchange, days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []model.DailyAggregate{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleRecentTicks serves GET /api/v1/ticks/{exchange}/{symbol}?limit=N.
func (s *Server) handleRecentTicks(w http.ResponseWriter, r *http.Request) {
	symbol, exchange, ok := pathKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "symbol and exchange are required")
		return
	}

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := s.store.RecentTicks(r.Context(), symbol, exchange, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []model.TickLogEntry{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleMarketStatus serves GET /api/v1/market/status.
func (s *Server) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.MarketStatus(r.Context(), s.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleStreamStatus serves GET /api/v1/stream/status.
func (s *Server) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

type symbolRequest struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Mode     string `json:"mode"`
}

// handleAddSymbol serves POST /api/v1/symbols.
func (s *Server) handleAddSymbol(w http.ResponseWriter, r *http.Request) {
	var req symbolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	exchange := strings.ToUpper(strings.TrimSpace(req.Exchange))
	if symbol == "" || exchange == "" {
		writeError(w, http.StatusBadRequest, "symbol and exchange are required")
		return
	}

	s.controller.AddSymbol(model.SymbolConfig{
		Symbol:   symbol,
		Exchange: exchange,
		Mode:     enum.ParseStreamMode(req.Mode),
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "added", "key": symbol + "." + exchange})
}

// handleRemoveSymbol serves DELETE /api/v1/symbols/{exchange}/{symbol}.
func (s *Server) handleRemoveSymbol(w http.ResponseWriter, r *http.Request) {
	symbol, exchange, ok := pathKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "symbol and exchange are required")
		return
	}
	s.controller.RemoveSymbol(symbol, exchange)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "key": symbol + "." + exchange})
}

// handleHealth serves GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStream upgrades GET /ws/stream to a websocket and registers the
// connection as a fanout consumer. Initial subscriptions come from the
// optional ?symbols=SYM.EXCH,... query; further control is via json
// commands on the socket.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Errorf("websocket upgrade, err: %+v", err)
		return
	}

	client := newWSClient(conn, s.registry)
	go client.run(parseKeys(r.URL.Query().Get("symbols")))
}
