// Package metrics holds the prometheus collectors inkwell records to.
// Collectors live in the default registry; the watch command exposes
// them on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Commit results.
const (
	ResultCommitted    = "committed"
	ResultPending      = "pending"
	ResultSavedOffline = "saved_offline"
	ResultError        = "error"
)

var (
	draftWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inkwell",
			Subsystem: "drafts",
			Name:      "writes_total",
			Help:      "Draft store writes by source",
		},
		[]string{"source"},
	)

	commitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inkwell",
			Subsystem: "sync",
			Name:      "commits_total",
			Help:      "Commit attempts by operation and result",
		},
		[]string{"operation", "result"},
	)

	commitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inkwell",
			Subsystem: "sync",
			Name:      "commit_duration_seconds",
			Help:      "Duration of remote commit calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	sweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inkwell",
			Subsystem: "sync",
			Name:      "sweeps_total",
			Help:      "Reconciliation sweeps run",
		},
	)

	pendingDrafts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inkwell",
			Subsystem: "drafts",
			Name:      "pending",
			Help:      "Drafts waiting to be committed",
		},
	)

	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inkwell",
			Subsystem: "notifications",
			Name:      "polls_total",
			Help:      "Notification polls by kind and result",
		},
		[]string{"kind", "result"},
	)

	unreadNotifications = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inkwell",
			Subsystem: "notifications",
			Name:      "unread",
			Help:      "Unread notifications known to the client",
		},
	)

	online = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inkwell",
			Subsystem: "connectivity",
			Name:      "online",
			Help:      "1 when the content service is reachable",
		},
	)
)

func init() {
	prometheus.MustRegister(
		draftWritesTotal, commitsTotal, commitDuration, sweepsTotal,
		pendingDrafts, pollsTotal, unreadNotifications, online,
	)
}

// DraftWritten counts a draft store write. source is "autosave" or "save".
func DraftWritten(source string) {
	draftWritesTotal.WithLabelValues(source).Inc()
}

// Commit records one remote commit attempt.
func Commit(operation, result string, took time.Duration) {
	commitsTotal.WithLabelValues(operation, result).Inc()
	if took > 0 {
		commitDuration.WithLabelValues(operation).Observe(took.Seconds())
	}
}

// Sweep counts a reconciliation sweep.
func Sweep() { sweepsTotal.Inc() }

// SetPending sets the number of drafts waiting to be committed.
func SetPending(n int) { pendingDrafts.Set(float64(n)) }

// Poll records a notification poll. kind is "list" or "unread".
func Poll(kind string, err error) {
	result := "ok"
	if err != nil {
		result = ResultError
	}
	pollsTotal.WithLabelValues(kind, result).Inc()
}

// SetUnread sets the unread notification gauge.
func SetUnread(n int) { unreadNotifications.Set(float64(n)) }

// SetOnline sets the connectivity gauge.
func SetOnline(up bool) {
	if up {
		online.Set(1)
		return
	}
	online.Set(0)
}

// Router returns a chi router serving /metrics and /healthz.
func Router(healthy func() bool) http.Handler {
	r := chi.NewRouter()
	Mount(r, healthy)
	return r
}

// Mount adds /metrics and /healthz to r. healthz answers 503 while
// healthy reports false.
func Mount(r chi.Router, healthy func() bool) {
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if healthy != nil && !healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("offline\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
}
