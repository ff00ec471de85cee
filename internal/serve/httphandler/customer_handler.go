package httphandler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nordbank/banking-platform-backend/internal/auth"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/serve/httperror"
	"github.com/nordbank/banking-platform-backend/internal/serve/httpresponse"
	"github.com/nordbank/banking-platform-backend/internal/serve/validators"
	"github.com/nordbank/banking-platform-backend/internal/services"
)

// CustomerHandler exposes customer onboarding and the KYC lifecycle.
type CustomerHandler struct {
	CustomerService *services.CustomerService
	AuthManager     auth.AuthManager
}

type RegisterCustomerRequest struct {
	FirstName            string  `json:"first_name"`
	LastName             string  `json:"last_name"`
	Email                string  `json:"email"`
	NationalID           *string `json:"national_id,omitempty"`
	Country              *string `json:"country,omitempty"`
	IsPEP                bool    `json:"is_pep"`
	HighRiskJurisdiction bool    `json:"high_risk_jurisdiction"`
	HighRiskBusiness     bool    `json:"high_risk_business"`
}

type UploadDocumentRequest struct {
	DocumentType   string     `json:"document_type"`
	DocumentNumber string     `json:"document_number"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
}

type ReviewDocumentRequest struct {
	Verified bool `json:"verified"`
}

type CustomerReasonRequest struct {
	Reason string `json:"reason"`
}

func (h CustomerHandler) Register(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody RegisterCustomerRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewCustomerValidator()
	v.ValidateRegisterRequest(reqBody.FirstName, reqBody.LastName, reqBody.Email)
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	customer, err := h.CustomerService.RegisterCustomer(ctx, data.CustomerInsert{
		FirstName:            reqBody.FirstName,
		LastName:             reqBody.LastName,
		Email:                reqBody.Email,
		NationalID:           reqBody.NationalID,
		Country:              reqBody.Country,
		IsPEP:                reqBody.IsPEP,
		HighRiskJurisdiction: reqBody.HighRiskJurisdiction,
		HighRiskBusiness:     reqBody.HighRiskBusiness,
	})
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, customer)
}

func (h CustomerHandler) Get(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	customerNumber := chi.URLParam(req, "customer_number")

	customer, err := h.CustomerService.GetCustomer(ctx, customerNumber)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, customer)
}

func (h CustomerHandler) Verify(rw http.ResponseWriter, req *http.Request) {
	h.actorTransition(rw, req, h.CustomerService.VerifyCustomer)
}

func (h CustomerHandler) Approve(rw http.ResponseWriter, req *http.Request) {
	h.actorTransition(rw, req, h.CustomerService.ApproveCustomer)
}

func (h CustomerHandler) Reinstate(rw http.ResponseWriter, req *http.Request) {
	h.actorTransition(rw, req, h.CustomerService.ReinstateCustomer)
}

func (h CustomerHandler) Suspend(rw http.ResponseWriter, req *http.Request) {
	h.reasonedTransition(rw, req, h.CustomerService.SuspendCustomer)
}

func (h CustomerHandler) Close(rw http.ResponseWriter, req *http.Request) {
	h.reasonedTransition(rw, req, h.CustomerService.CloseCustomer)
}

func (h CustomerHandler) UploadDocument(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	customerNumber := chi.URLParam(req, "customer_number")

	var reqBody UploadDocumentRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.DocumentType != "", "document_type", "document_type is required")
	v.Check(reqBody.DocumentNumber != "", "document_number", "document_number is required")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	document, err := h.CustomerService.UploadDocument(ctx, customerNumber, strings.ToUpper(reqBody.DocumentType), reqBody.DocumentNumber, reqBody.ExpiryDate)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, document)
}

func (h CustomerHandler) ReviewDocument(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	documentID := chi.URLParam(req, "document_id")

	var reqBody ReviewDocumentRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	document, err := h.CustomerService.ReviewDocument(ctx, documentID, reqBody.Verified)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, document)
}

func (h CustomerHandler) History(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	customerNumber := chi.URLParam(req, "customer_number")

	history, err := h.CustomerService.GetHistory(ctx, customerNumber)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, history)
}

func (h CustomerHandler) RiskProfile(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	customerNumber := chi.URLParam(req, "customer_number")

	profile, err := h.CustomerService.ComputeRiskProfile(ctx, customerNumber)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, profile)
}

func (h CustomerHandler) actorTransition(rw http.ResponseWriter, req *http.Request, fn func(ctx context.Context, customerNumber, actor string) (*data.Customer, error)) {
	ctx := req.Context()
	customerNumber := chi.URLParam(req, "customer_number")

	actor, err := actorFromContext(ctx, h.AuthManager)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(rw)
		return
	}

	customer, err := fn(ctx, customerNumber, actor)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, customer)
}

func (h CustomerHandler) reasonedTransition(rw http.ResponseWriter, req *http.Request, fn func(ctx context.Context, customerNumber, actor, reason string) (*data.Customer, error)) {
	ctx := req.Context()
	customerNumber := chi.URLParam(req, "customer_number")

	actor, err := actorFromContext(ctx, h.AuthManager)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(rw)
		return
	}

	var reqBody CustomerReasonRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	customer, err := fn(ctx, customerNumber, actor, reqBody.Reason)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, customer)
}
