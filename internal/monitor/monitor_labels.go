package monitor

type HttpRequestLabels struct {
	Status string
	Route  string
	Method string
}

type DBQueryLabels struct {
	QueryType string
}

type TransferLabels struct {
	Status   string
	Currency string
}

func (t TransferLabels) ToMap() map[string]string {
	return map[string]string{
		"status":   t.Status,
		"currency": t.Currency,
	}
}

type PostingLabels struct {
	Direction string
	Currency  string
}

func (p PostingLabels) ToMap() map[string]string {
	return map[string]string{
		"direction": p.Direction,
		"currency":  p.Currency,
	}
}

type AmlAlertLabels struct {
	AlertType string
	RiskLevel string
}

func (a AmlAlertLabels) ToMap() map[string]string {
	return map[string]string{
		"alert_type": a.AlertType,
		"risk_level": a.RiskLevel,
	}
}
