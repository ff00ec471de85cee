package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

func PrometheusMetrics() map[MetricTag]prometheus.Collector {
	metrics := make(map[MetricTag]prometheus.Collector)

	for tag, summaryVec := range SummaryVecMetrics {
		metrics[tag] = summaryVec
	}

	for tag, counter := range CounterMetrics {
		metrics[tag] = counter
	}

	for tag, histogramVec := range HistogramVecMetrics {
		metrics[tag] = histogramVec
	}

	for tag, counterVec := range CounterVecMetrics {
		metrics[tag] = counterVec
	}

	return metrics
}

var SummaryVecMetrics = map[MetricTag]*prometheus.SummaryVec{
	HttpRequestDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "bank", Subsystem: "http", Name: string(HttpRequestDurationTag),
		Help: "HTTP requests durations, sliding window = 10m",
	},
		[]string{"status", "route", "method"},
	),
	SuccessfulQueryDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "bank", Subsystem: "db", Name: string(SuccessfulQueryDurationTag),
		Help: "Successful DB query durations",
	},
		[]string{"query_type"},
	),
	FailureQueryDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "bank", Subsystem: "db", Name: string(FailureQueryDurationTag),
		Help: "Failure DB query durations",
	},
		[]string{"query_type"},
	),
}

var CounterMetrics = map[MetricTag]prometheus.Counter{
	SagaCompensationsCounterTag: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bank", Subsystem: "saga", Name: string(SagaCompensationsCounterTag),
		Help: "A counter of saga executions that ran compensation",
	}),
	OutboxPublishedCounterTag: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bank", Subsystem: "events", Name: string(OutboxPublishedCounterTag),
		Help: "A counter of outbox messages published to the event broker",
	}),
}

var HistogramVecMetrics = map[MetricTag]*prometheus.HistogramVec{
	RuleEvaluationDurationTag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bank", Subsystem: "aml", Name: string(RuleEvaluationDurationTag),
		Help: "A histogram of AML rule evaluation durations",
	},
		[]string{"rule_type"},
	),
}

var CounterVecMetrics = map[MetricTag]*prometheus.CounterVec{
	TransfersCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bank", Subsystem: "business", Name: string(TransfersCounterTag),
		Help: "Transfers counter",
	},
		[]string{"status", "currency"},
	),
	PostingsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bank", Subsystem: "ledger", Name: string(PostingsCounterTag),
		Help: "Ledger postings counter",
	},
		[]string{"direction", "currency"},
	),
	SepaBatchesCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bank", Subsystem: "sepa", Name: string(SepaBatchesCounterTag),
		Help: "SEPA batches counter",
	},
		[]string{"status"},
	),
	SwiftTransfersCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bank", Subsystem: "swift", Name: string(SwiftTransfersCounterTag),
		Help: "SWIFT transfers counter",
	},
		[]string{"status"},
	),
	AmlAlertsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bank", Subsystem: "aml", Name: string(AmlAlertsCounterTag),
		Help: "AML alerts counter",
	},
		[]string{"alert_type", "risk_level"},
	),
}
