package httphandler

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nordbank/banking-platform-backend/internal/serve/httperror"
	"github.com/nordbank/banking-platform-backend/internal/serve/httpresponse"
	"github.com/nordbank/banking-platform-backend/internal/serve/validators"
	"github.com/nordbank/banking-platform-backend/internal/services"
)

// Sanction list files stay small compared to payment files; 8 MiB covers the
// consolidated EU and OFAC lists with room to spare.
const maxSanctionUploadBytes = 8 << 20

// SanctionHandler exposes sanction list management and party screening.
type SanctionHandler struct {
	ScreeningService *services.SanctionScreeningService
}

type ScreenNameRequest struct {
	Name string `json:"name"`
}

func (h SanctionHandler) ScreenName(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody ScreenNameRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(strings.TrimSpace(reqBody.Name) != "", "name", "name is required")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	candidates, err := h.ScreeningService.ScreenName(ctx, reqBody.Name)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, candidates)
}

func (h SanctionHandler) ScreenCustomer(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	customerID := chi.URLParam(req, "id")

	matches, err := h.ScreeningService.ScreenCustomer(ctx, customerID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, matches)
}

func (h SanctionHandler) ConfirmMatch(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	matchID := chi.URLParam(req, "id")

	match, err := h.ScreeningService.ConfirmMatch(ctx, matchID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, match)
}

func (h SanctionHandler) DismissMatch(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	matchID := chi.URLParam(req, "id")

	match, err := h.ScreeningService.DismissMatch(ctx, matchID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, match)
}

// ImportEntries ingests a CSV sanction list, either as a multipart upload
// under the "file" field or as the raw request body.
func (h SanctionHandler) ImportEntries(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reader io.Reader = http.MaxBytesReader(rw, req.Body, maxSanctionUploadBytes)
	if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := req.FormFile("file")
		if err != nil {
			httperror.BadRequest("could not read the uploaded file", err, nil).Render(rw)
			return
		}
		defer file.Close()
		reader = file
	}

	result, err := h.ScreeningService.ImportEntriesCSV(ctx, reader)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, result)
}
