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

// SepaReturnHandler manages R-transactions against settled SEPA transfers.
type SepaReturnHandler struct {
	ReturnService *services.SepaReturnService
}

type InitiateReturnRequest struct {
	OriginalSepaReference string `json:"original_sepa_reference"`
	Reason                string `json:"reason"`
}

func (h SepaReturnHandler) Initiate(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody InitiateReturnRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.OriginalSepaReference != "", "original_sepa_reference", "original_sepa_reference is required")
	v.Check(reqBody.Reason != "", "reason", "reason is required")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	sepaReturn, err := h.ReturnService.InitiateReturn(ctx, reqBody.OriginalSepaReference, data.SepaReturnReason(strings.ToUpper(reqBody.Reason)))
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, sepaReturn)
}

func (h SepaReturnHandler) Process(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	returnReference := chi.URLParam(req, "return_reference")

	sepaReturn, err := h.ReturnService.ProcessReturn(ctx, returnReference)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, sepaReturn)
}

func (h SepaReturnHandler) Get(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	returnReference := chi.URLParam(req, "return_reference")

	sepaReturn, err := h.ReturnService.GetReturn(ctx, returnReference)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, sepaReturn)
}
