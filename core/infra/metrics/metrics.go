// Package metrics exposes Prometheus counters for the promotion lifecycle.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics defines counters for the reconciliation engine and its collaborators.
type Metrics interface {
	IncActivations()
	IncDeactivationTriggers(status string)
	IncCacheCommits(result string)
	IncDenials(op string)
	IncLoopbackRequests(status string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncActivations()                  {}
func (Noop) IncDeactivationTriggers(string)   {}
func (Noop) IncCacheCommits(string)           {}
func (Noop) IncDenials(string)                {}
func (Noop) IncLoopbackRequests(string)       {}

// Prom implements Metrics backed by Prometheus counters.
type Prom struct {
	activations   prometheus.Counter
	deactivations *prometheus.CounterVec
	cacheCommits  *prometheus.CounterVec
	denials       *prometheus.CounterVec
	loopback      *prometheus.CounterVec
	once          sync.Once
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		activations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activations_total",
			Help:      "Activation hooks fired for newly promoted extensions",
		}),
		deactivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deactivation_triggers_total",
			Help:      "Out-of-band deactivation triggers by delivery status",
		}, []string{"status"}),
		cacheCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_commits_total",
			Help:      "Cache store commits by result",
		}, []string{"result"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_denials_total",
			Help:      "Capability denials appended by the permission gate, per operation",
		}, []string{"op"}),
		loopback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loopback_requests_total",
			Help:      "Loopback deactivation endpoint results by status",
		}, []string{"status"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.activations, p.deactivations, p.cacheCommits, p.denials, p.loopback)
	})
}

func (p *Prom) IncActivations() {
	p.activations.Inc()
}

func (p *Prom) IncDeactivationTriggers(status string) {
	p.deactivations.WithLabelValues(status).Inc()
}

func (p *Prom) IncCacheCommits(result string) {
	p.cacheCommits.WithLabelValues(result).Inc()
}

func (p *Prom) IncDenials(op string) {
	p.denials.WithLabelValues(op).Inc()
}

func (p *Prom) IncLoopbackRequests(status string) {
	p.loopback.WithLabelValues(status).Inc()
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
