package httphandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/serve/httperror"
	"github.com/nordbank/banking-platform-backend/internal/serve/httpresponse"
	"github.com/nordbank/banking-platform-backend/internal/serve/validators"
	"github.com/nordbank/banking-platform-backend/internal/services"
)

// SepaMandateHandler manages SEPA direct debit mandates.
type SepaMandateHandler struct {
	MandateService *services.SepaMandateService
}

type RecordCollectionRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Success bool            `json:"success"`
}

func (h SepaMandateHandler) Create(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody services.MandateRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewIBANValidator()
	v.ValidateIBAN("debtor_iban", reqBody.DebtorIBAN)
	v.ValidateIBAN("creditor_iban", reqBody.CreditorIBAN)
	v.Check(reqBody.UMR != "", "umr", "unique mandate reference is required")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	mandate, err := h.MandateService.CreateMandate(ctx, reqBody)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, mandate)
}

func (h SepaMandateHandler) Get(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	umr := chi.URLParam(req, "umr")

	mandate, err := h.MandateService.GetMandate(ctx, umr)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, mandate)
}

func (h SepaMandateHandler) Activate(rw http.ResponseWriter, req *http.Request) {
	h.transition(rw, req, h.MandateService.ActivateMandate)
}

func (h SepaMandateHandler) Suspend(rw http.ResponseWriter, req *http.Request) {
	h.transition(rw, req, h.MandateService.SuspendMandate)
}

func (h SepaMandateHandler) Resume(rw http.ResponseWriter, req *http.Request) {
	h.transition(rw, req, h.MandateService.ResumeMandate)
}

func (h SepaMandateHandler) Cancel(rw http.ResponseWriter, req *http.Request) {
	h.transition(rw, req, h.MandateService.CancelMandate)
}

func (h SepaMandateHandler) RecordCollection(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	umr := chi.URLParam(req, "umr")

	var reqBody RecordCollectionRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.Amount.IsPositive(), "amount", "amount must be greater than 0")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	mandate, err := h.MandateService.RecordCollection(ctx, umr, reqBody.Amount, reqBody.Success)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, mandate)
}

func (h SepaMandateHandler) transition(rw http.ResponseWriter, req *http.Request, fn func(ctx context.Context, umr string) (*data.SepaMandate, error)) {
	ctx := req.Context()
	umr := chi.URLParam(req, "umr")

	mandate, err := fn(ctx, umr)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, mandate)
}
