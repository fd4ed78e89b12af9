// Package http exposes the engine's operator surface: health, readiness,
// metrics, manual job triggers, and a probability debug read.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/auroralabs/aurora-alerts/internal/domain"
	"github.com/auroralabs/aurora-alerts/internal/planner"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// FanoutRunner triggers a notification fanout run.
type FanoutRunner interface {
	Fanout(ctx context.Context, strategy planner.Strategy, override map[int64]float64) (planner.FanoutResult, error)
}

// LifecycleRunner triggers the batch state-transition jobs.
type LifecycleRunner interface {
	ResetThrottles(ctx context.Context) (int64, error)
	ExpireSubscriptions(ctx context.Context) (int64, error)
}

// GridSource provides the current OVATION grid for the debug read.
type GridSource interface {
	FetchGrid(ctx context.Context) (*domain.Grid, error)
}

// GridFlusher drops a cached grid so the next fetch hits the feed. The flush
// endpoint is registered only when the grid source supports it.
type GridFlusher interface {
	Flush()
}

// BulletinSource fetches the SWPC text products for the read endpoints.
type BulletinSource interface {
	FetchThreeDayForecast(ctx context.Context) ([]domain.KpForecastDay, error)
	FetchOutlook(ctx context.Context) ([]domain.OutlookReading, error)
}

// Server exposes the operator HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	fanout    FanoutRunner
	lifecycle LifecycleRunner
	grids     GridSource
	bulletins BulletinSource
	strategy  planner.Strategy
	blend     domain.BlendWeights
}

// NewServer creates the operator server. The strategy is the default for the
// fanout endpoint; fanout-per-user always forces per-user addressing.
func NewServer(
	addr string,
	ready ReadinessChecker,
	fanout FanoutRunner,
	lifecycle LifecycleRunner,
	grids GridSource,
	bulletins BulletinSource,
	strategy planner.Strategy,
	blend domain.BlendWeights,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:    logger,
		fanout:    fanout,
		lifecycle: lifecycle,
		grids:     grids,
		bulletins: bulletins,
		strategy:  strategy,
		blend:     blend,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/jobs/fanout", s.handleFanout(s.strategy))
	mux.HandleFunc("POST /api/v1/jobs/fanout-per-user", s.handleFanout(planner.StrategyPerUser))
	mux.HandleFunc("POST /api/v1/jobs/throttle-reset", s.handleThrottleReset)
	mux.HandleFunc("POST /api/v1/jobs/subscription-expiry", s.handleSubscriptionExpiry)
	mux.HandleFunc("GET /api/v1/probability", s.handleProbability)
	mux.HandleFunc("GET /api/v1/kp-3", s.handleThreeDay)
	mux.HandleFunc("GET /api/v1/kp-27", s.handleOutlook)

	if flusher, ok := grids.(GridFlusher); ok {
		mux.HandleFunc("POST /api/v1/jobs/grid-flush", func(w http.ResponseWriter, _ *http.Request) {
			flusher.Flush()
			s.logger.Info("grid cache flushed")
			writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
		})
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// jobResponse is the structured result of a manual job trigger. Per-item
// faults land in Errors with a 200; only a job that could not run at all
// produces a 5xx.
type jobResponse struct {
	Counts map[string]int64 `json:"counts"`
	Errors []string         `json:"errors"`
}

// fanoutRequest optionally overrides the computed probability map. When
// present the override is used verbatim and the grid is not consulted.
type fanoutRequest struct {
	Probabilities map[string]float64 `json:"probabilities"`
}

func (s *Server) handleFanout(strategy planner.Strategy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		override, err := decodeOverride(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		result, err := s.fanout.Fanout(r.Context(), strategy, override)
		if err != nil {
			s.logger.Error("fanout trigger failed", "strategy", strategy, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, jobResponse{
			Counts: map[string]int64{
				"delivered": int64(result.Delivered),
				"targets":   int64(len(result.TargetIDs)),
			},
			Errors: nonNil(result.Errors),
		})
	}
}

func decodeOverride(r *http.Request) (map[int64]float64, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return nil, nil
	}

	var req fanoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, &domain.ValidationError{Field: "body", Reason: "malformed JSON: " + err.Error()}
	}
	if req.Probabilities == nil {
		return nil, nil
	}

	override := make(map[int64]float64, len(req.Probabilities))
	for key, prob := range req.Probabilities {
		cityID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, &domain.ValidationError{Field: "probabilities", Reason: "non-numeric city id: " + key}
		}
		if prob < 0 || prob > 100 {
			return nil, &domain.ValidationError{Field: "probabilities", Reason: "probability out of range for city " + key}
		}
		override[cityID] = prob
	}
	return override, nil
}

func (s *Server) handleThrottleReset(w http.ResponseWriter, r *http.Request) {
	n, err := s.lifecycle.ResetThrottles(r.Context())
	if err != nil {
		s.logger.Error("throttle reset trigger failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{
		Counts: map[string]int64{"released": n},
		Errors: []string{},
	})
}

func (s *Server) handleSubscriptionExpiry(w http.ResponseWriter, r *http.Request) {
	n, err := s.lifecycle.ExpireSubscriptions(r.Context())
	if err != nil {
		s.logger.Error("subscription expiry trigger failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{
		Counts: map[string]int64{"expired": n},
		Errors: []string{},
	})
}

// probabilityResponse is the grid debug read. Combined is present only when
// the auxiliary index parameters were supplied.
type probabilityResponse struct {
	domain.ProbabilityResult
	ObservationTime string   `json:"observation_time"`
	ForecastTime    string   `json:"forecast_time"`
	Combined        *float64 `json:"combined,omitempty"`
}

func (s *Server) handleProbability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat must be a number"})
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lon must be a number"})
		return
	}

	grid, err := s.grids.FetchGrid(r.Context())
	if err != nil {
		s.logger.Error("grid fetch failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	result, err := grid.Nearest(domain.AuroraQuery{Lat: lat, Lon: lon})
	if err != nil {
		status := http.StatusNotFound
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	resp := probabilityResponse{
		ProbabilityResult: result,
		ObservationTime:   grid.ObservationTime(),
		ForecastTime:      grid.ForecastTime(),
	}

	if q.Has("kp") || q.Has("bz") || q.Has("dst") {
		in := domain.BlendInputs{
			Kp:             parseFloatOr(q.Get("kp"), 0),
			Bz:             parseFloatOr(q.Get("bz"), 0),
			Dst:            parseFloatOr(q.Get("dst"), 0),
			SolarWindSpeed: parseFloatOr(q.Get("speed"), s.blend.SpeedBaseline),
			CloudCover:     parseFloatOr(q.Get("cloud"), 0),
		}
		combined := domain.CombinedProbability(in, s.blend)
		resp.Combined = &combined
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleThreeDay(w http.ResponseWriter, r *http.Request) {
	days, err := s.bulletins.FetchThreeDayForecast(r.Context())
	if err != nil {
		s.logger.Error("3-day forecast fetch failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleOutlook(w http.ResponseWriter, r *http.Request) {
	readings, err := s.bulletins.FetchOutlook(r.Context())
	if err != nil {
		s.logger.Error("27-day outlook fetch failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func parseFloatOr(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

func nonNil(errs []string) []string {
	if errs == nil {
		return []string{}
	}
	return errs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
