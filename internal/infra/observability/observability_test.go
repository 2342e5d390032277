package observability

import (
	"errors"
	"testing"
)

func TestOutcome(t *testing.T) {
	if got := Outcome(nil); got != "ok" {
		t.Errorf("Outcome(nil) = %q, want ok", got)
	}
	if got := Outcome(errors.New("boom")); got != "error" {
		t.Errorf("Outcome(err) = %q, want error", got)
	}
}

func TestMetricsRegistered(t *testing.T) {
	// promauto panics at init on duplicate registration; reaching here
	// means every metric registered cleanly. Touch the vectors so a label
	// mismatch would fail loudly too.
	DiplomacyOps.WithLabelValues("declareWar", "ok").Inc()
	PartyOps.WithLabelValues("createParty", "error").Inc()
	VaultOps.WithLabelValues("withdraw", "ok").Inc()
	WarsEnded.WithLabelValues("expiry").Inc()
	SweepRuns.WithLabelValues("wars").Inc()
	SweepExpired.WithLabelValues("parties").Add(2)
	LockWait.Observe(0.001)
	PermissionDenials.Inc()
	VaultFlushes.Inc()
}
