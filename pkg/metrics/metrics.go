package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics for monitoring
var (
	ContractReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_contract_reads_total",
		Help: "The total number of read-only contract calls",
	}, []string{"method", "status"})

	ContractWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_contract_writes_total",
		Help: "The total number of submitted contract transactions",
	}, []string{"method", "status"})

	IntentsSigned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_intents_signed_total",
		Help: "The total number of transfer intents signed by the operator",
	}, []string{"prefix"})

	Approvals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_approvals_total",
		Help: "The total number of token approvals driven by the payer",
	}, []string{"status"})

	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_settlements_total",
		Help: "The total number of settlement transactions submitted by the payer",
	}, []string{"path", "status"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_errors_total",
		Help: "Total number of SDK errors by kind",
	}, []string{"kind"})

	ReceiptWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "commerce_receipt_wait_seconds",
		Help:    "Time spent waiting for transaction receipts",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // Start at 0.5s with 10 buckets doubling in size
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_http_requests_total",
		Help: "The total number of operator service requests",
	}, []string{"route", "code"})
)

// Status maps an error to a status label
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
