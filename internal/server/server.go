package server

import (
	"context"
	"net/http"
	"time"

	"main/internal/cache"
	"main/internal/fanout"
	"main/internal/store"
	"main/internal/stream"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the REST query surface and the websocket stream endpoint.
type Server struct {
	addr       string
	store      store.Store
	controller *stream.Controller
	registry   *fanout.Registry
	cache      *cache.LatestPrice
	upgrader   websocket.Upgrader
	now        func() time.Time
}

// New builds a server. The cache is optional; when nil, current-price
// queries read the store directly.
func New(addr string, st store.Store, ctrl *stream.Controller, registry *fanout.Registry, latest *cache.LatestPrice) *Server {
	return &Server{
		addr:       addr,
		store:      st,
		controller: ctrl,
		registry:   registry,
		cache:      latest,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/prices/{exchange}/{symbol}", s.handleCurrentPrice)
	mux.HandleFunc("GET /api/v1/history/{exchange}/{symbol}", s.handleHistory)
	mux.HandleFunc("GET /api/v1/ticks/{exchange}/{symbol}", s.handleRecentTicks)
	mux.HandleFunc("GET /api/v1/market/status", s.handleMarketStatus)
	mux.HandleFunc("GET /api/v1/stream/status", s.handleStreamStatus)
	mux.HandleFunc("POST /api/v1/symbols", s.handleAddSymbol)
	mux.HandleFunc("DELETE /api/v1/symbols/{exchange}/{symbol}", s.handleRemoveSymbol)
	mux.HandleFunc("GET /ws/stream", s.handleStream)

	return mux
}

// Run serves until the context is cancelled, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logs.Infof("http server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
