package httphandler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/serve/httperror"
	"github.com/nordbank/banking-platform-backend/internal/serve/httpresponse"
	"github.com/nordbank/banking-platform-backend/internal/serve/validators"
	"github.com/nordbank/banking-platform-backend/internal/services"
)

// AmlHandler exposes transaction monitoring rules and the alerts they raise.
type AmlHandler struct {
	DetectionService *services.AmlDetectionService
	Models           *data.Models
}

type CreateRuleRequest struct {
	RuleName        string              `json:"rule_name"`
	RuleType        string              `json:"rule_type"`
	ThresholdAmount decimal.NullDecimal `json:"threshold_amount"`
	ThresholdCount  *int                `json:"threshold_count,omitempty"`
	WindowMinutes   *int                `json:"window_minutes,omitempty"`
	RiskPoints      int                 `json:"risk_points"`
}

type SetRuleEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type MonitorTransactionRequest struct {
	AccountNumber   string          `json:"account_number"`
	CustomerID      *string         `json:"customer_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	ReferenceID     string          `json:"reference_id"`
	TransactionDate time.Time       `json:"transaction_date"`
}

func (h AmlHandler) CreateRule(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody CreateRuleRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.RuleName != "", "rule_name", "rule_name is required")
	v.Check(reqBody.RiskPoints > 0, "risk_points", "risk_points must be greater than 0")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	rule, err := h.Models.AmlRules.Insert(ctx, h.Models.DBConnectionPool, data.AmlRuleInsert{
		RuleName:        reqBody.RuleName,
		RuleType:        data.AmlRuleType(strings.ToUpper(reqBody.RuleType)),
		ThresholdAmount: reqBody.ThresholdAmount,
		ThresholdCount:  reqBody.ThresholdCount,
		WindowMinutes:   reqBody.WindowMinutes,
		RiskPoints:      reqBody.RiskPoints,
	})
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, rule)
}

func (h AmlHandler) SetRuleEnabled(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	ruleID := chi.URLParam(req, "id")

	var reqBody SetRuleEnabledRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	if err := h.Models.AmlRules.SetEnabled(ctx, h.Models.DBConnectionPool, ruleID, reqBody.Enabled); err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	rule, err := h.Models.AmlRules.Get(ctx, h.Models.DBConnectionPool, ruleID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, rule)
}

// MonitorTransaction runs a transaction through the enabled rules and returns
// the evaluation, including any alert it raised.
func (h AmlHandler) MonitorTransaction(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody MonitorTransactionRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.AccountNumber != "", "account_number", "account_number is required")
	v.Check(reqBody.Amount.IsPositive(), "amount", "amount must be greater than 0")
	v.Check(reqBody.ReferenceID != "", "reference_id", "reference_id is required")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	result, err := h.DetectionService.MonitorTransaction(ctx, data.MonitoredTransactionInsert{
		AccountNumber:   reqBody.AccountNumber,
		CustomerID:      reqBody.CustomerID,
		Amount:          reqBody.Amount,
		Currency:        reqBody.Currency,
		ReferenceID:     reqBody.ReferenceID,
		TransactionDate: reqBody.TransactionDate,
	})
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, result)
}

func (h AmlHandler) ListAlerts(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	qv := validators.NewQueryValidator()
	queryParams := qv.ParseParametersFromRequest(req)
	if qv.HasErrors() {
		httperror.BadRequest("", nil, qv.Errors).Render(rw)
		return
	}

	accountNumber := req.URL.Query().Get("account_number")
	status := data.AmlAlertStatus(strings.ToUpper(req.URL.Query().Get("status")))
	if accountNumber == "" && status == "" {
		status = data.OpenAmlAlertStatus
	}

	alerts, totalAlerts, err := h.Models.AmlAlerts.List(ctx, h.Models.DBConnectionPool, status, accountNumber, queryParams.Page, queryParams.PageLimit)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	response, err := httpresponse.NewPaginatedResponse(req, alerts, queryParams.Page, queryParams.PageLimit, totalAlerts)
	if err != nil {
		httperror.InternalError(ctx, "Cannot create paginated alerts response", err, nil).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, response)
}

func (h AmlHandler) ReviewAlert(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	alertID := chi.URLParam(req, "id")

	alert, err := h.DetectionService.ReviewAlert(ctx, alertID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, alert)
}

func (h AmlHandler) ClearAlert(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	alertID := chi.URLParam(req, "id")

	alert, err := h.DetectionService.ClearAlert(ctx, alertID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, alert)
}
