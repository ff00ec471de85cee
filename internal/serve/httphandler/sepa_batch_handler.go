package httphandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/serve/httperror"
	"github.com/nordbank/banking-platform-backend/internal/serve/httpresponse"
	"github.com/nordbank/banking-platform-backend/internal/serve/validators"
	"github.com/nordbank/banking-platform-backend/internal/services"
)

// SepaBatchHandler manages SEPA payment batches and the transfers inside them.
type SepaBatchHandler struct {
	BatchService *services.SepaBatchService
}

type CreateBatchRequest struct {
	BatchType string `json:"batch_type"`
}

type TransferResultRequest struct {
	Success       bool    `json:"success"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

func (h SepaBatchHandler) Create(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody CreateBatchRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	batch, err := h.BatchService.CreateBatch(ctx, data.SepaBatchType(strings.ToUpper(reqBody.BatchType)))
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, batch)
}

func (h SepaBatchHandler) AddTransfer(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	messageID := chi.URLParam(req, "message_id")

	var reqBody services.SepaTransferRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewIBANValidator()
	v.ValidateIBAN("debtor_iban", reqBody.DebtorIBAN)
	v.ValidateIBAN("creditor_iban", reqBody.CreditorIBAN)
	v.Check(reqBody.Amount.IsPositive(), "amount", "amount must be greater than 0")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	transfer, err := h.BatchService.AddTransfer(ctx, messageID, reqBody)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, transfer)
}

func (h SepaBatchHandler) Validate(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	messageID := chi.URLParam(req, "message_id")

	batch, err := h.BatchService.ValidateBatch(ctx, messageID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, batch)
}

func (h SepaBatchHandler) Submit(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	messageID := chi.URLParam(req, "message_id")

	batch, err := h.BatchService.SubmitBatch(ctx, messageID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, batch)
}

func (h SepaBatchHandler) Get(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	messageID := chi.URLParam(req, "message_id")

	batch, err := h.BatchService.GetBatch(ctx, messageID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, batch)
}

// RecordTransferResult settles the outcome reported by the clearing house for
// a single transfer inside a submitted batch.
func (h SepaBatchHandler) RecordTransferResult(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	sepaReference := chi.URLParam(req, "sepa_reference")

	var reqBody TransferResultRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	batch, err := h.BatchService.RecordTransferResult(ctx, sepaReference, reqBody.Success, reqBody.FailureReason)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, batch)
}

func (h SepaBatchHandler) GetTransfer(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	sepaReference := chi.URLParam(req, "sepa_reference")

	transfer, err := h.BatchService.GetTransfer(ctx, sepaReference)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, transfer)
}
