package httphandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nordbank/banking-platform-backend/internal/serve/httperror"
	"github.com/nordbank/banking-platform-backend/internal/serve/httpresponse"
	"github.com/nordbank/banking-platform-backend/internal/serve/validators"
	"github.com/nordbank/banking-platform-backend/internal/services"
)

// TransferHandler exposes internal account-to-account transfers.
type TransferHandler struct {
	TransferService *services.TransferService
}

func (h TransferHandler) Initiate(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody services.TransferRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewTransferValidator()
	v.ValidateInitiateRequest(reqBody.FromAccountNumber, reqBody.ToAccountNumber, reqBody.Currency, reqBody.Amount)
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	transfer, err := h.TransferService.InitiateTransfer(ctx, reqBody)
	if err != nil {
		// The aggregate is still persisted in its terminal failed state; the
		// client learns why the transfer did not complete.
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, transfer)
}

func (h TransferHandler) Get(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	transferReference := chi.URLParam(req, "transfer_reference")

	transfer, err := h.TransferService.GetTransfer(ctx, transferReference)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, transfer)
}
