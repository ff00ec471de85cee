package monitor

type MetricTag string

const (
	SuccessfulQueryDurationTag MetricTag = "successful_queries_duration"
	FailureQueryDurationTag    MetricTag = "failure_queries_duration"
	HttpRequestDurationTag     MetricTag = "requests_duration_seconds"
	// Ledger:
	PostingsCounterTag MetricTag = "postings_counter"
	// Transfers:
	TransfersCounterTag         MetricTag = "transfers_counter"
	SagaCompensationsCounterTag MetricTag = "saga_compensations_counter"
	// Settlement pipelines:
	SepaBatchesCounterTag    MetricTag = "sepa_batches_counter"
	SwiftTransfersCounterTag MetricTag = "swift_transfers_counter"
	// AML:
	AmlAlertsCounterTag       MetricTag = "aml_alerts_counter"
	RuleEvaluationDurationTag MetricTag = "rule_evaluation_duration_seconds"
	// Events:
	OutboxPublishedCounterTag MetricTag = "outbox_published_counter"
)

func (m MetricTag) ListAll() []MetricTag {
	return []MetricTag{
		SuccessfulQueryDurationTag,
		FailureQueryDurationTag,
		HttpRequestDurationTag,
		PostingsCounterTag,
		TransfersCounterTag,
		SagaCompensationsCounterTag,
		SepaBatchesCounterTag,
		SwiftTransfersCounterTag,
		AmlAlertsCounterTag,
		RuleEvaluationDurationTag,
		OutboxPublishedCounterTag,
	}
}
