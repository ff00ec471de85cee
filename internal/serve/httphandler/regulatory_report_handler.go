package httphandler

import (
	"context"
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

// RegulatoryReportHandler drives regulatory filings through the four-eyes
// ladder: draft, review, approval, filing.
type RegulatoryReportHandler struct {
	ReportService *services.RegulatoryReportService
	AuthManager   auth.AuthManager
}

type CreateReportRequest struct {
	ReportType string  `json:"report_type"`
	CaseNumber *string `json:"case_number,omitempty"`
	Narrative  string  `json:"narrative"`
}

type ReviewReportRequest struct {
	Accept          bool    `json:"accept"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
}

type RejectApprovalRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

type NarrativeRequest struct {
	Narrative string `json:"narrative"`
}

func (h RegulatoryReportHandler) Create(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	actor, err := actorFromContext(ctx, h.AuthManager)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(rw)
		return
	}

	var reqBody CreateReportRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.ReportType != "", "report_type", "report_type is required")
	v.Check(reqBody.Narrative != "", "narrative", "narrative is required")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	report, err := h.ReportService.CreateReport(ctx, data.RegulatoryReportType(strings.ToUpper(reqBody.ReportType)), reqBody.CaseNumber, reqBody.Narrative, actor)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, report)
}

func (h RegulatoryReportHandler) SubmitForReview(rw http.ResponseWriter, req *http.Request) {
	h.simpleTransition(rw, req, h.ReportService.SubmitForReview)
}

func (h RegulatoryReportHandler) Review(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	reportNumber := chi.URLParam(req, "report_number")

	actor, err := actorFromContext(ctx, h.AuthManager)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(rw)
		return
	}

	var reqBody ReviewReportRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	report, err := h.ReportService.Review(ctx, reportNumber, actor, reqBody.Accept, reqBody.RejectionReason)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, report)
}

func (h RegulatoryReportHandler) Approve(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	reportNumber := chi.URLParam(req, "report_number")

	actor, err := actorFromContext(ctx, h.AuthManager)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(rw)
		return
	}

	report, err := h.ReportService.Approve(ctx, reportNumber, actor)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, report)
}

func (h RegulatoryReportHandler) RejectApproval(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	reportNumber := chi.URLParam(req, "report_number")

	var reqBody RejectApprovalRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.RejectionReason != "", "rejection_reason", "rejection_reason is required")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	report, err := h.ReportService.RejectApproval(ctx, reportNumber, reqBody.RejectionReason)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, report)
}

func (h RegulatoryReportHandler) ReturnToDraft(rw http.ResponseWriter, req *http.Request) {
	h.simpleTransition(rw, req, h.ReportService.ReturnToDraft)
}

func (h RegulatoryReportHandler) UpdateNarrative(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	reportNumber := chi.URLParam(req, "report_number")

	var reqBody NarrativeRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	report, err := h.ReportService.UpdateNarrative(ctx, reportNumber, reqBody.Narrative)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, report)
}

func (h RegulatoryReportHandler) File(rw http.ResponseWriter, req *http.Request) {
	h.simpleTransition(rw, req, h.ReportService.FileReport)
}

func (h RegulatoryReportHandler) Acknowledge(rw http.ResponseWriter, req *http.Request) {
	h.simpleTransition(rw, req, h.ReportService.Acknowledge)
}

func (h RegulatoryReportHandler) Get(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	reportNumber := chi.URLParam(req, "report_number")

	report, err := h.ReportService.GetReport(ctx, reportNumber)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, report)
}

func (h RegulatoryReportHandler) simpleTransition(rw http.ResponseWriter, req *http.Request, fn func(ctx context.Context, reportNumber string) (*data.RegulatoryReport, error)) {
	ctx := req.Context()
	reportNumber := chi.URLParam(req, "report_number")

	report, err := fn(ctx, reportNumber)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, report)
}
