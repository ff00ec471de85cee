package httperror

import (
	"context"
	"errors"
	"net/http"

	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/services"
)

// FromDomainError maps a fault coming out of the service layer to its edge
// representation. Handlers call it after their own request-level validation;
// anything unmapped is reported and surfaced as a 500.
func FromDomainError(ctx context.Context, err error) *HTTPError {
	switch {
	case errors.Is(err, data.ErrRecordNotFound):
		return NotFound("", err, nil)
	case errors.Is(err, data.ErrRecordAlreadyExists):
		return Conflict("", err, nil)
	case errors.Is(err, data.ErrStaleVersion):
		return NewHTTPError(http.StatusConflict, "The resource was modified concurrently, please retry.", err, nil).
			WithErrorCode(CodeConcurrency)
	case errors.Is(err, services.ErrConcurrencyAborted):
		return NewHTTPError(http.StatusConflict, "The resource was modified concurrently, please retry.", err, nil).
			WithErrorCode(CodeConcurrency)
	case errors.Is(err, services.ErrInsufficientFunds):
		return BadRequest(err.Error(), err, nil).WithErrorCode(CodeInsufficientFunds)
	case errors.Is(err, services.ErrMandateNotCollectable):
		return BadRequest(err.Error(), err, nil).WithErrorCode(CodeLimitExceeded)
	case errors.Is(err, data.ErrMissingInput),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrCurrencyMismatch),
		errors.Is(err, services.ErrAccountInactive),
		errors.Is(err, services.ErrBalanceNotZero),
		errors.Is(err, services.ErrSameAccountTransfer),
		errors.Is(err, services.ErrFutureSignatureDate),
		errors.Is(err, services.ErrBatchNotAmendable),
		errors.Is(err, services.ErrBatchRejected),
		errors.Is(err, services.ErrOriginalNotReturnable),
		errors.Is(err, services.ErrTransferNotPending),
		errors.Is(err, services.ErrTransferNotAwaiting),
		errors.Is(err, services.ErrComplianceBlocked),
		errors.Is(err, services.ErrSarFilingRequired),
		errors.Is(err, services.ErrAlertHasNoSubject):
		return BadRequest(err.Error(), err, nil)
	case isStateTransitionError(err):
		return BadRequest(err.Error(), err, nil).WithErrorCode(CodeInvalidStateTransition)
	default:
		return InternalError(ctx, "", err, nil)
	}
}

func isStateTransitionError(err error) bool {
	var transitionErr *data.TransitionError
	return errors.As(err, &transitionErr)
}
