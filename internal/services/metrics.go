// Package services – Prometheus domain metrics.
//
// HTTP-level metrics live in the middleware package; the counters here track
// the business outcomes that matter for the program: send attempts by result,
// batches by terminal state, import tallies, and opt transitions.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// smsAttempts counts individual send attempts by outcome (sent/failed).
	smsAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_send_attempts_total",
			Help: "Total outbound SMS send attempts by outcome.",
		},
		[]string{"status"},
	)

	// dispatchBatches counts dispatch batches by terminal status.
	dispatchBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_dispatch_batches_total",
			Help: "Total dispatch batches by terminal status.",
		},
		[]string{"status"},
	)

	// importRecords counts import records by outcome (imported/invalid_phone/failed).
	importRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customer_import_records_total",
			Help: "Total customer import records by outcome.",
		},
		[]string{"outcome"},
	)

	// optTransitions counts applied opt-status changes (opt_in/opt_out).
	optTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opt_status_transitions_total",
			Help: "Total applied opt-in/opt-out transitions from inbound replies.",
		},
		[]string{"transition"},
	)
)

func init() {
	prometheus.MustRegister(smsAttempts, dispatchBatches, importRecords, optTransitions)
}
