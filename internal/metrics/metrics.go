// Package metrics counts solver, cache and HTTP activity and renders the
// counters in the Prometheus text exposition format.
package metrics

import (
	"fmt"
	"io"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Solve outcomes beyond stats.Outcome values.
const (
	OutcomeInvalid      = "invalid"
	OutcomeNotConverged = "not_converged"
)

const (
	solvesName     = "peirce_solves_total"
	iterationsName = "peirce_solver_iterations_total"
	cacheName      = "peirce_cache_lookups_total"
	requestsName   = "peirce_http_requests_total"
)

// Registry holds the process counters on a private prometheus registry.
// The zero value is not usable; use New.
type Registry struct {
	reg        *prometheus.Registry
	solves     *prometheus.CounterVec
	iterations prometheus.Counter
	cache      *prometheus.CounterVec
	requests   *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: solvesName,
			Help: "Solves by outcome.",
		}, []string{"outcome"}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: iterationsName,
			Help: "Fixed-point iterations run by fresh solves.",
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: cacheName,
			Help: "Threshold cache lookups by result.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: requestsName,
			Help: "HTTP requests by path and status code.",
		}, []string{"path", "code"}),
	}
	r.reg.MustRegister(r.solves, r.iterations, r.cache, r.requests)
	return r
}

// ObserveSolve records one fresh solve and the iterations it used.
func (r *Registry) ObserveSolve(outcome string, iterations int) {
	r.solves.WithLabelValues(outcome).Inc()
	if iterations > 0 {
		r.iterations.Add(float64(iterations))
	}
}

// ObserveCache records a cache lookup.
func (r *Registry) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cache.WithLabelValues(result).Inc()
}

// ObserveRequest records a served HTTP request.
func (r *Registry) ObserveRequest(path string, code int) {
	r.requests.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

// Families snapshots the counters as metric families, sorted by name.
// Labelled families appear once they have a child.
func (r *Registry) Families() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}

// Write encodes every family in the Prometheus text format.
func (r *Registry) Write(w io.Writer) error {
	families, err := r.Families()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}

	enc := expfmt.NewEncoder(w, ContentType)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// ContentType is the exposition format written by Write.
var ContentType = expfmt.NewFormat(expfmt.TypeTextPlain)
