// Package api implements the HTTP surface of spec §6: POST /fetch,
// POST /batch, DELETE /cache/{url_hash}, and GET /health. Grounded on the
// teacher's internal/api/server.go — the same ServeMux route-registration
// and jsonResponse-helper style, generalized from engine-control endpoints
// to the fetch-service's request/response boundary.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cortexlabs/iris/internal/browserpool"
	"github.com/cortexlabs/iris/internal/cache"
	"github.com/cortexlabs/iris/internal/config"
	"github.com/cortexlabs/iris/internal/observability"
	"github.com/cortexlabs/iris/internal/sentinel"
	"github.com/cortexlabs/iris/internal/types"
)

// Fetcher is the pipeline surface the API depends on, small enough to fake
// in tests without a live browser.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.FetchRequest) *types.FetchResponse
	BatchFetch(ctx context.Context, reqs []*types.FetchRequest) *types.BatchFetchResponse
}

// Server serves the Iris HTTP surface.
type Server struct {
	mux       *http.ServeMux
	port      int
	logger    *slog.Logger
	startedAt time.Time

	pipeline  Fetcher
	pool      *browserpool.Pool
	respCache *cache.Cache
	sentinel  *sentinel.Client
	metrics   *observability.Metrics
}

// NewServer creates a Server wired to its collaborators. metrics and
// sentinelClient may be nil, in which case /health reports sentinel as
// disconnected and no /metrics route is registered.
func NewServer(port int, pipeline Fetcher, pool *browserpool.Pool, respCache *cache.Cache, sentinelClient *sentinel.Client, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		port:      port,
		logger:    logger.With("component", "api_server"),
		startedAt: time.Now(),
		pipeline:  pipeline,
		pool:      pool,
		respCache: respCache,
		sentinel:  sentinelClient,
		metrics:   metrics,
	}

	s.registerRoutes()
	return s
}

// Start starts the HTTP server in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, s.mux); err != nil {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /fetch", s.handleFetch)
	s.mux.HandleFunc("POST /batch", s.handleBatch)
	s.mux.HandleFunc("DELETE /cache/{url_hash}", s.handleCacheDelete)

	if s.metrics != nil {
		s.mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
			s.metrics.ActivePages.Store(int32(activePages(s.pool)))
			s.metrics.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if s.pool != nil && !s.pool.Connected() {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"error": "browser not available"})
		return
	}

	var req types.FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := req.Validate(); err != nil {
		s.jsonResponse(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	resp := s.pipeline.Fetch(r.Context(), &req)
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if s.pool != nil && !s.pool.Connected() {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"error": "browser not available"})
		return
	}

	var body types.BatchFetchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(body.Requests) < 1 || len(body.Requests) > 10 {
		s.jsonResponse(w, http.StatusUnprocessableEntity, map[string]string{"error": "requests must contain between 1 and 10 entries"})
		return
	}
	for _, req := range body.Requests {
		if err := req.Validate(); err != nil {
			s.jsonResponse(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
	}

	resp := s.pipeline.BatchFetch(r.Context(), body.Requests)
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("url_hash")
	deleted := s.respCache.Invalidate(r.Context(), hash)
	s.jsonResponse(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:            "ok",
		Service:           config.ServiceName,
		Version:           config.Version,
		BrowserConnected:  s.pool != nil && s.pool.Connected(),
		CacheConnected:    s.respCache != nil && s.respCache.Connected(r.Context()),
		SentinelConnected: s.sentinel != nil && s.sentinel.Connected(),
		ActivePages:       activePages(s.pool),
		UptimeSeconds:     int64(time.Since(s.startedAt).Seconds()),
	}
	if s.pool != nil && !resp.BrowserConnected {
		resp.Status = "degraded"
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func activePages(pool *browserpool.Pool) int {
	if pool == nil {
		return 0
	}
	return pool.ActivePages()
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
