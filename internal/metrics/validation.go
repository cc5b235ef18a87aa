package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ValidationChecksTotal counts `valid` checks by rule and boolean result
var ValidationChecksTotal *prometheus.CounterVec

func initValidationMetrics() {
	ValidationChecksTotal = NewCounterVec(
		"myutils_validation_checks_total",
		"Total string validation checks by rule and result.",
		[]string{"rule", "result"},
	)
}

func registerValidationMetrics() {
	prometheus.MustRegister(ValidationChecksTotal)
}

// RecordValidation counts one validator call
func RecordValidation(rule string, ok bool) {
	ValidationChecksTotal.WithLabelValues(rule, strconv.FormatBool(ok)).Inc()
}
