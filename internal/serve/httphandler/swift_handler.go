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

// SwiftHandler exposes the cross-border wire transfer pipeline.
type SwiftHandler struct {
	SwiftService *services.SwiftService
}

type SwiftTransferRequest struct {
	SenderBIC          string          `json:"sender_bic"`
	ReceiverBIC        string          `json:"receiver_bic"`
	OrderingCustomer   string          `json:"ordering_customer"`
	Beneficiary        string          `json:"beneficiary"`
	BeneficiaryBankBIC string          `json:"beneficiary_bank_bic"`
	CorrespondentBIC   *string         `json:"correspondent_bic,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	ChargeType         string          `json:"charge_type"`
	RemittanceInfo     *string         `json:"remittance_info,omitempty"`
	ValueDate          time.Time       `json:"value_date"`
}

type SettlementRequest struct {
	Settled       bool    `json:"settled"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

func (h SwiftHandler) Initiate(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody SwiftTransferRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewAccountValidator()
	v.Check(reqBody.SenderBIC != "", "sender_bic", "sender_bic is required")
	v.Check(reqBody.ReceiverBIC != "", "receiver_bic", "receiver_bic is required")
	v.Check(reqBody.Amount.IsPositive(), "amount", "amount must be greater than 0")
	v.ValidateCurrency(reqBody.Currency)
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	transfer, err := h.SwiftService.InitiateWireTransfer(ctx, services.SwiftTransferRequest{
		SenderBIC:          reqBody.SenderBIC,
		ReceiverBIC:        reqBody.ReceiverBIC,
		OrderingCustomer:   reqBody.OrderingCustomer,
		Beneficiary:        reqBody.Beneficiary,
		BeneficiaryBankBIC: reqBody.BeneficiaryBankBIC,
		CorrespondentBIC:   reqBody.CorrespondentBIC,
		Amount:             reqBody.Amount,
		Currency:           reqBody.Currency,
		ChargeType:         data.SwiftChargeType(strings.ToUpper(reqBody.ChargeType)),
		RemittanceInfo:     reqBody.RemittanceInfo,
		ValueDate:          reqBody.ValueDate,
	})
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, transfer)
}

func (h SwiftHandler) Process(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	transactionReference := chi.URLParam(req, "transaction_reference")

	transfer, err := h.SwiftService.ProcessWireTransfer(ctx, transactionReference)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, transfer)
}

func (h SwiftHandler) ConfirmSettlement(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	transactionReference := chi.URLParam(req, "transaction_reference")

	var reqBody SettlementRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	transfer, err := h.SwiftService.ConfirmSettlement(ctx, transactionReference, reqBody.Settled, reqBody.FailureReason)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, transfer)
}

func (h SwiftHandler) Get(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	transactionReference := chi.URLParam(req, "transaction_reference")

	transfer, err := h.SwiftService.GetTransfer(ctx, transactionReference)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, transfer)
}
