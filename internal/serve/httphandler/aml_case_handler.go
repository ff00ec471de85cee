package httphandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nordbank/banking-platform-backend/internal/auth"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/serve/httperror"
	"github.com/nordbank/banking-platform-backend/internal/serve/httpresponse"
	"github.com/nordbank/banking-platform-backend/internal/serve/validators"
	"github.com/nordbank/banking-platform-backend/internal/services"
)

// AmlCaseHandler drives the investigation workflow for escalated alerts. The
// acting compliance officer is resolved from the session token.
type AmlCaseHandler struct {
	CaseService *services.AmlCaseService
	AuthManager auth.AuthManager
}

type OpenCaseRequest struct {
	AlertID           string `json:"alert_id"`
	Priority          string `json:"priority"`
	RequiresSarFiling bool   `json:"requires_sar_filing"`
}

type AttachAlertRequest struct {
	AlertID string `json:"alert_id"`
}

type CaseResolutionRequest struct {
	Resolution string `json:"resolution"`
}

type CaseReasonRequest struct {
	Reason string `json:"reason"`
}

type CaseNoteRequest struct {
	Note string `json:"note"`
}

func (h AmlCaseHandler) OpenFromAlert(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody OpenCaseRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.AlertID != "", "alert_id", "alert_id is required")
	v.Check(reqBody.Priority != "", "priority", "priority is required")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	amlCase, err := h.CaseService.OpenCaseFromAlert(ctx, reqBody.AlertID, data.AmlCasePriority(strings.ToUpper(reqBody.Priority)), reqBody.RequiresSarFiling)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, amlCase)
}

func (h AmlCaseHandler) AttachAlert(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	caseNumber := chi.URLParam(req, "case_number")

	var reqBody AttachAlertRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	alert, err := h.CaseService.AttachAlert(ctx, caseNumber, reqBody.AlertID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, alert)
}

func (h AmlCaseHandler) StartInvestigation(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	caseNumber := chi.URLParam(req, "case_number")

	actor, err := actorFromContext(ctx, h.AuthManager)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(rw)
		return
	}

	amlCase, err := h.CaseService.StartInvestigation(ctx, caseNumber, actor)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, amlCase)
}

func (h AmlCaseHandler) SubmitForReview(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	caseNumber := chi.URLParam(req, "case_number")

	amlCase, err := h.CaseService.SubmitForReview(ctx, caseNumber)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, amlCase)
}

func (h AmlCaseHandler) Escalate(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	caseNumber := chi.URLParam(req, "case_number")

	actor, err := actorFromContext(ctx, h.AuthManager)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(rw)
		return
	}

	amlCase, err := h.CaseService.Escalate(ctx, caseNumber, actor)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, amlCase)
}

func (h AmlCaseHandler) ApproveClosure(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	caseNumber := chi.URLParam(req, "case_number")

	amlCase, err := h.CaseService.ApproveClosure(ctx, caseNumber)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, amlCase)
}

func (h AmlCaseHandler) Close(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	caseNumber := chi.URLParam(req, "case_number")

	var reqBody CaseResolutionRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	amlCase, err := h.CaseService.CloseCase(ctx, caseNumber, reqBody.Resolution)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, amlCase)
}

func (h AmlCaseHandler) Reopen(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	caseNumber := chi.URLParam(req, "case_number")

	var reqBody CaseReasonRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	amlCase, err := h.CaseService.ReopenCase(ctx, caseNumber, reqBody.Reason)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, amlCase)
}

func (h AmlCaseHandler) AddNote(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	caseNumber := chi.URLParam(req, "case_number")

	actor, err := actorFromContext(ctx, h.AuthManager)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(rw)
		return
	}

	var reqBody CaseNoteRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	note, err := h.CaseService.AddNote(ctx, caseNumber, actor, reqBody.Note)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, note)
}

func (h AmlCaseHandler) Get(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	caseNumber := chi.URLParam(req, "case_number")

	amlCase, err := h.CaseService.GetCase(ctx, caseNumber)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, amlCase)
}
