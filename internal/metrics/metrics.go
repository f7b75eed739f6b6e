// Package metrics exposes the Prometheus counters for allocation outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistrationsTotal counts allocation outcomes by final status
	// (confirmed, waitlist) and event type.
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kartis_registrations_total",
		Help: "Registration outcomes by status and event type",
	}, []string{"status", "event_type"})

	// SerializationConflictsTotal counts transactions that failed to
	// serialize after bounded retries. High values mean heavy contention,
	// not necessarily bugs.
	SerializationConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kartis_serialization_conflicts_total",
		Help: "Allocation transactions aborted by serialization conflicts",
	})

	// CancellationsTotal counts cancellations by actor.
	CancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kartis_cancellations_total",
		Help: "Cancellations by actor (customer, admin)",
	}, []string{"by"})

	// RepairFixesTotal counts corrections written by the repair job.
	RepairFixesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kartis_repair_fixes_total",
		Help: "Registration statuses corrected by the repair job",
	})
)
