package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/peircecrit/peirce/internal/metrics"
	"github.com/peircecrit/peirce/internal/stats"
	"github.com/peircecrit/peirce/internal/store"
)

type HealthResponse struct {
	Status           string `json:"status"`
	CachedThresholds int    `json:"cached_thresholds"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

// ThresholdResponse is one solved (N, n, m) combination.
type ThresholdResponse struct {
	Observations    float64 `json:"observations"`
	Outliers        float64 `json:"outliers"`
	Unknowns        float64 `json:"unknowns"`
	X2              float64 `json:"x2"`
	R               float64 `json:"r"`
	TailProbability float64 `json:"tail_probability"`
	Iterations      int     `json:"iterations"`
	Outcome         string  `json:"outcome"`
	Cached          bool    `json:"cached"`
	Error           string  `json:"error,omitempty"`
}

type TableResponse struct {
	Rows []ThresholdResponse `json:"rows"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count := 0
	if s.store != nil {
		var err error
		count, err = s.store.CountThresholds(r.Context())
		if err != nil {
			slog.Error("health check failed", "err", err)
			writeError(w, http.StatusInternalServerError, "cache unavailable")
			return
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		CachedThresholds: count,
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	N, err := parseParam(q.Get("N"), -1)
	if err != nil || q.Get("N") == "" {
		writeError(w, http.StatusBadRequest, "N is required and must be a finite number")
		return
	}
	n, err := parseParam(q.Get("n"), 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "n must be a finite number")
		return
	}
	m, err := parseParam(q.Get("m"), 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "m must be a finite number")
		return
	}

	t, hit, err := s.solver().Lookup(r.Context(), s.cache(), N, n, m)
	if err != nil {
		writeSolveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, thresholdResponse(t, hit))
}

func (s *Server) handleTableAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	spec := s.Config().Table.Spec()
	q := r.URL.Query()

	axes := []struct {
		param string
		dst   *[]float64
	}{
		{"N", &spec.Observations},
		{"n", &spec.Outliers},
		{"m", &spec.Unknowns},
	}
	for _, axis := range axes {
		raw := q.Get(axis.param)
		if raw == "" {
			continue
		}
		values, err := parseList(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", axis.param, err))
			return
		}
		*axis.dst = values
	}

	table, err := s.solver().BuildTable(r.Context(), s.cache(), spec)
	if err != nil {
		slog.Error("failed to build table", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to build table")
		return
	}

	resp := TableResponse{Rows: make([]ThresholdResponse, len(table.Rows))}
	for i, row := range table.Rows {
		resp.Rows[i] = rowResponse(row)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", string(metrics.ContentType))
	if err := s.metrics.Write(w); err != nil {
		slog.Error("failed to write metrics", "err", err)
	}
}

func (s *Server) handleAdminCache(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "cache disabled")
		return
	}

	switch r.Method {
	case http.MethodGet:
		count, err := s.store.CountThresholds(r.Context())
		if err != nil {
			slog.Error("failed to count thresholds", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to count thresholds")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": count})

	case http.MethodDelete:
		removed, err := s.store.ClearThresholds(r.Context())
		if err != nil {
			slog.Error("failed to clear thresholds", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to clear thresholds")
			return
		}
		slog.Info("threshold cache cleared", "removed", removed)
		writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// instrument counts responses per route.
func (s *Server) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		s.metrics.ObserveRequest(path, rec.code)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func thresholdResponse(t *store.Threshold, cached bool) ThresholdResponse {
	row := stats.Row{Observations: t.Observations, Outliers: t.Outliers, Unknowns: t.Unknowns, Cached: cached}
	row.Fill(t)
	return rowResponse(row)
}

func rowResponse(row stats.Row) ThresholdResponse {
	return ThresholdResponse{
		Observations:    row.Observations,
		Outliers:        row.Outliers,
		Unknowns:        row.Unknowns,
		X2:              row.X2,
		R:               row.R,
		TailProbability: row.TailProbability,
		Iterations:      row.Iterations,
		Outcome:         string(row.Outcome),
		Cached:          row.Cached,
		Error:           row.Error,
	}
}

// writeSolveError maps solver errors onto HTTP statuses.
func writeSolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stats.ErrInvalidParams):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, stats.ErrNotConverged):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("threshold lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func parseParam(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	return parseFinite(raw)
}

// parseFinite parses a number and rejects NaN and the infinities, which
// have no JSON encoding.
func parseFinite(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not finite", raw)
	}
	return v, nil
}

// parseList parses a comma-separated list of numbers.
func parseList(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := parseFinite(p)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, errors.New("empty list")
	}
	return values, nil
}
