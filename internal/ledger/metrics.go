package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultApplied  = "applied"
	resultSkipped  = "skipped"
	resultFailed   = "failed"
	resultRejected = "rejected"
)

var (
	// adjustmentsTotal counts spent adjustments by outcome
	adjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "budgetbook_ledger_adjustments_total",
		Help: "Total budget spent adjustments by result",
	}, []string{"result"})

	// reconciledDriftTotal counts reconciliations that corrected a drift
	reconciledDriftTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "budgetbook_ledger_reconciled_drift_total",
		Help: "Total reconciliations that found spent out of sync with expenses",
	})
)
