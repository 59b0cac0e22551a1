// Package api exposes the resolution pipeline over HTTP. Handlers are thin
// callers of the resolver; every typed result serializes as JSON and the
// only client-visible failure mode is invalid input.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/fixedincome/marketdata/internal/marketdata"
	"github.com/fixedincome/marketdata/internal/model"
	"github.com/fixedincome/marketdata/internal/resolver"
)

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	resolver *resolver.Service
	log      *zap.Logger
}

// NewServer creates the API server with all routes and middleware.
func NewServer(svc *resolver.Service) *Server {
	s := &Server{
		resolver: svc,
		log:      zap.L().With(zap.String("component", "api")),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router, exported for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/curves/latest", s.handleLatestCurve)
		r.Get("/curves/batch", s.handleCurveBatch)
		r.Get("/curves/{date}", s.handleHistoricalCurve)
		r.Get("/timeseries", s.handleTimeSeries)

		r.Get("/spreads", s.handleCreditSpreads)
		r.Get("/spreads/sector/{sector}", s.handleSectorSpreads)
		r.Get("/rates", s.handleBenchmarkRates)
		r.Get("/inflation/{region}", s.handleInflation)
		r.Get("/liquidity", s.handleLiquidity)

		r.Get("/health/providers", s.handleProviderHealth)

		r.Delete("/admin/cache", s.handleClearCache)
		r.Delete("/admin/data", s.handleClearData)
	})

	return r
}

// ListenAndServe starts the server and blocks until ctx is canceled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	s.log.Info("starting server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if marketdata.IsInvalidInput(err) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.log.Error("request failed", zap.Error(err))
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func parseDate(raw string) (time.Time, error) {
	d, err := time.Parse(model.DateFormat, raw)
	if err != nil {
		return time.Time{}, marketdata.InvalidInputf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return d, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"provider_available": s.resolver.IsAvailable(r.Context()),
		"cache":              s.resolver.CacheStats(),
	})
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.resolver.ProviderHealthStatus(r.Context()))
}

func (s *Server) handleLatestCurve(w http.ResponseWriter, r *http.Request) {
	snap, err := s.resolver.LatestYieldCurve(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHistoricalCurve(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.resolver.HistoricalYieldCurve(r.Context(), date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleCurveBatch resolves curves for ?dates=YYYY-MM-DD,YYYY-MM-DD,...
func (s *Server) handleCurveBatch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("dates")
	if raw == "" {
		s.writeError(w, marketdata.InvalidInputf("dates query parameter is required"))
		return
	}

	var dates []time.Time
	for _, part := range strings.Split(raw, ",") {
		d, err := parseDate(strings.TrimSpace(part))
		if err != nil {
			s.writeError(w, err)
			return
		}
		dates = append(dates, d)
	}

	curves, err := s.resolver.YieldCurvesForDates(r.Context(), dates)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, curves)
}

// handleTimeSeries resolves ?tenor=10Y&start=...&end=...
func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenor := q.Get("tenor")

	start, err := parseDate(q.Get("start"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	end, err := parseDate(q.Get("end"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	points, err := s.resolver.YieldTimeSeries(r.Context(), tenor, start, end)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleCreditSpreads(w http.ResponseWriter, r *http.Request) {
	m, err := s.resolver.CreditSpreads(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleSectorSpreads(w http.ResponseWriter, r *http.Request) {
	m, err := s.resolver.SectorCreditData(r.Context(), chi.URLParam(r, "sector"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleBenchmarkRates(w http.ResponseWriter, r *http.Request) {
	m, err := s.resolver.BenchmarkRates(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleInflation(w http.ResponseWriter, r *http.Request) {
	m, err := s.resolver.InflationExpectations(r.Context(), chi.URLParam(r, "region"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	m, err := s.resolver.LiquidityPremiums(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.resolver.ClearCaches()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "caches cleared"})
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	n, err := s.resolver.ClearDatabaseData(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "data cleared", "deleted": n})
}
