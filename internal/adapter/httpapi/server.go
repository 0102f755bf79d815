// Package httpapi exposes the cleaned grant datasets as a JSON API: the
// aggregation endpoints the dashboards read, plus the usual health,
// readiness, and metrics routes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/grant-data-etl/internal/domain"
	"github.com/couchcryptid/grant-data-etl/internal/observability"
)

// StatsStore answers the aggregation queries. Year 0 means all years.
type StatsStore interface {
	StateTotals(ctx context.Context, year int) ([]domain.StateTotal, error)
	DirectorateTotals(ctx context.Context, year int) ([]domain.DirectorateTotal, error)
	YearTotals(ctx context.Context) ([]domain.YearTotal, error)
	CancellationsByDirectorate(ctx context.Context) ([]domain.CancellationStat, error)
	PerCapita(ctx context.Context, year int) ([]domain.PerCapitaStat, error)
	Ping(ctx context.Context) error
}

// Server exposes the stats API with health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	store      StatsStore
	cache      *responseCache
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer wires the chi router. CORS is restricted to the configured
// origins since the dashboard frontend runs on a different port in
// development.
func NewServer(addr string, store StatsStore, metrics *observability.Metrics,
	logger *slog.Logger, corsOrigins []string, cacheSize int) *Server {
	s := &Server{
		store:   store,
		cache:   newResponseCache(cacheSize),
		metrics: metrics,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/stats", func(r chi.Router) {
		r.Get("/states", s.cached("states", s.handleStates))
		r.Get("/directorates", s.cached("directorates", s.handleDirectorates))
		r.Get("/years", s.cached("years", s.handleYears))
		r.Get("/cancellations", s.cached("cancellations", s.handleCancellations))
		r.Get("/per-capita", s.cached("per_capita", s.handlePerCapita))
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// statsHandler renders an endpoint's payload for a cache key.
type statsHandler func(r *http.Request) (any, error)

// cached wraps a stats handler with the LRU response cache and request
// metrics. The cache key includes the query string so per-year views cache
// independently.
func (s *Server) cached(endpoint string, h statsHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path + "?" + r.URL.RawQuery

		if body, ok := s.cache.get(key); ok {
			s.metrics.StatsCache.WithLabelValues(endpoint, "hit").Inc()
			s.metrics.StatsRequests.WithLabelValues(endpoint, "ok").Inc()
			writeJSONBytes(w, http.StatusOK, body)
			return
		}
		s.metrics.StatsCache.WithLabelValues(endpoint, "miss").Inc()

		payload, err := h(r)
		if err != nil {
			var badReq *badRequestError
			if errors.As(err, &badReq) {
				s.metrics.StatsRequests.WithLabelValues(endpoint, "bad_request").Inc()
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": badReq.msg})
				return
			}
			s.metrics.StatsRequests.WithLabelValues(endpoint, "error").Inc()
			s.logger.Error("stats query failed", "endpoint", endpoint, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
			return
		}

		body, err := json.Marshal(payload)
		if err != nil {
			s.metrics.StatsRequests.WithLabelValues(endpoint, "error").Inc()
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encode failed"})
			return
		}

		s.cache.put(key, body)
		s.metrics.StatsRequests.WithLabelValues(endpoint, "ok").Inc()
		writeJSONBytes(w, http.StatusOK, body)
	}
}

func (s *Server) handleStates(r *http.Request) (any, error) {
	year, err := yearParam(r)
	if err != nil {
		return nil, err
	}
	data, err := s.store.StateTotals(r.Context(), year)
	if err != nil {
		return nil, err
	}
	return statsResponse{Year: year, Data: data}, nil
}

func (s *Server) handleDirectorates(r *http.Request) (any, error) {
	year, err := yearParam(r)
	if err != nil {
		return nil, err
	}
	data, err := s.store.DirectorateTotals(r.Context(), year)
	if err != nil {
		return nil, err
	}
	return statsResponse{Year: year, Data: data}, nil
}

func (s *Server) handleYears(r *http.Request) (any, error) {
	data, err := s.store.YearTotals(r.Context())
	if err != nil {
		return nil, err
	}
	return statsResponse{Data: data}, nil
}

func (s *Server) handleCancellations(r *http.Request) (any, error) {
	data, err := s.store.CancellationsByDirectorate(r.Context())
	if err != nil {
		return nil, err
	}
	return statsResponse{Data: data}, nil
}

func (s *Server) handlePerCapita(r *http.Request) (any, error) {
	year, err := yearParam(r)
	if err != nil {
		return nil, err
	}
	data, err := s.store.PerCapita(r.Context(), year)
	if err != nil {
		return nil, err
	}
	return statsResponse{Year: year, Data: data}, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statsResponse is the envelope for every stats endpoint. Year 0 (or an
// endpoint without a year dimension) marshals as the all-years view.
type statsResponse struct {
	Year int `json:"year"`
	Data any `json:"data"`
}

// badRequestError marks handler errors caused by the client's query.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

// yearParam parses the optional ?year= query parameter. Absent or 0 means
// all years; negative values are rejected.
func yearParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 0 {
		return 0, &badRequestError{msg: "year must be a non-negative integer"}
	}
	return year, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeJSONBytes(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body) //nolint:errcheck // best-effort response
}
