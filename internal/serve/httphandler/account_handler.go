package httphandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/serve/httperror"
	"github.com/nordbank/banking-platform-backend/internal/serve/httpresponse"
	"github.com/nordbank/banking-platform-backend/internal/serve/validators"
	"github.com/nordbank/banking-platform-backend/internal/services"
)

// AccountHandler exposes the ledger account lifecycle and posting operations.
type AccountHandler struct {
	LedgerService *services.LedgerService
}

type OpenAccountRequest struct {
	CustomerID     string          `json:"customer_id"`
	Currency       string          `json:"currency"`
	AccountType    string          `json:"account_type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type PostingRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID string          `json:"reference_id"`
	Description string          `json:"description"`
}

type BalanceResponse struct {
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
}

func (h AccountHandler) Open(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody OpenAccountRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewAccountValidator()
	v.ValidateOpenRequest(reqBody.CustomerID, reqBody.Currency, reqBody.AccountType, reqBody.InitialBalance)
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	account, err := h.LedgerService.OpenAccount(ctx, reqBody.CustomerID, reqBody.Currency, data.AccountType(reqBody.AccountType), reqBody.InitialBalance)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, account)
}

func (h AccountHandler) Get(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	accountNumber := chi.URLParam(req, "account_number")

	account, err := h.LedgerService.GetAccount(ctx, accountNumber)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, account)
}

func (h AccountHandler) Balance(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	accountNumber := chi.URLParam(req, "account_number")

	balance, err := h.LedgerService.GetBalance(ctx, accountNumber)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, BalanceResponse{
		AccountNumber: accountNumber,
		Balance:       balance,
	})
}

func (h AccountHandler) History(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	accountNumber := chi.URLParam(req, "account_number")

	qv := validators.NewQueryValidator()
	params := qv.ParseParametersFromRequest(req)
	if qv.HasErrors() {
		httperror.BadRequest("", nil, qv.Errors).Render(rw)
		return
	}

	lines, err := h.LedgerService.History(ctx, accountNumber, params.From, params.To)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, lines)
}

func (h AccountHandler) Credit(rw http.ResponseWriter, req *http.Request) {
	h.post(rw, req, data.CreditPostingDirection)
}

func (h AccountHandler) Debit(rw http.ResponseWriter, req *http.Request) {
	h.post(rw, req, data.DebitPostingDirection)
}

func (h AccountHandler) post(rw http.ResponseWriter, req *http.Request, direction data.PostingDirection) {
	ctx := req.Context()
	accountNumber := chi.URLParam(req, "account_number")

	var reqBody PostingRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewAccountValidator()
	v.ValidatePostingRequest(reqBody.Amount, reqBody.ReferenceID)
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	var line *data.PostingLine
	var err error
	if direction == data.CreditPostingDirection {
		line, err = h.LedgerService.Credit(ctx, accountNumber, reqBody.Amount, reqBody.ReferenceID, reqBody.Description)
	} else {
		line, err = h.LedgerService.Debit(ctx, accountNumber, reqBody.Amount, reqBody.ReferenceID, reqBody.Description)
	}
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, line)
}

func (h AccountHandler) Freeze(rw http.ResponseWriter, req *http.Request) {
	h.setStatus(rw, req, data.FrozenAccountStatus)
}

func (h AccountHandler) Activate(rw http.ResponseWriter, req *http.Request) {
	h.setStatus(rw, req, data.ActiveAccountStatus)
}

func (h AccountHandler) setStatus(rw http.ResponseWriter, req *http.Request, target data.AccountStatus) {
	ctx := req.Context()
	accountNumber := chi.URLParam(req, "account_number")

	account, err := h.LedgerService.SetStatus(ctx, accountNumber, target)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, account)
}

func (h AccountHandler) Close(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	accountNumber := chi.URLParam(req, "account_number")

	account, err := h.LedgerService.Close(ctx, accountNumber)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, account)
}
