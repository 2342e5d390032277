// Package observability holds the engine's Prometheus metrics.
//
// All metrics live under the "guildhall" namespace and register themselves
// on the default registry; the API server exposes them on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Diplomacy Metrics ──────────────────────────────────────────────────────

var DiplomacyOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "guildhall",
	Subsystem: "diplomacy",
	Name:      "operations_total",
	Help:      "Diplomacy operations by name and outcome.",
}, []string{"operation", "outcome"})

var WarsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "guildhall",
	Subsystem: "diplomacy",
	Name:      "wars_ended_total",
	Help:      "Ended wars by cause (surrender, peace, expiry).",
}, []string{"cause"})

// ─── Party Metrics ──────────────────────────────────────────────────────────

var PartyOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "guildhall",
	Subsystem: "party",
	Name:      "operations_total",
	Help:      "Party operations by name and outcome.",
}, []string{"operation", "outcome"})

// ─── Vault Metrics ──────────────────────────────────────────────────────────

var VaultOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "guildhall",
	Subsystem: "vault",
	Name:      "operations_total",
	Help:      "Vault operations by name and outcome.",
}, []string{"operation", "outcome"})

var VaultFlushes = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "guildhall",
	Subsystem: "vault",
	Name:      "flushes_total",
	Help:      "Explicit durability flushes.",
})

// ─── Engine Metrics ─────────────────────────────────────────────────────────

var LockWait = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "guildhall",
	Subsystem: "engine",
	Name:      "lock_wait_seconds",
	Help:      "Time spent waiting to enter a guild's serialization domain.",
	Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
})

var PermissionDenials = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "guildhall",
	Subsystem: "engine",
	Name:      "permission_denials_total",
	Help:      "Mutations rejected by the permission authority.",
})

var SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "guildhall",
	Subsystem: "engine",
	Name:      "sweep_runs_total",
	Help:      "Expiry sweep executions by kind (wars, parties).",
}, []string{"kind"})

var SweepExpired = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "guildhall",
	Subsystem: "engine",
	Name:      "sweep_expired_total",
	Help:      "Records ended by the expiry sweep, by kind.",
}, []string{"kind"})

// Outcome labels an operation counter by how the call finished.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
