package httperror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nordbank/banking-platform-backend/internal/logger"
)

// HTTPError is the edge representation of a fault. Render writes it using the
// platform response envelope with success=false.
type HTTPError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	// ErrorCode is a stable machine-readable code from the fault taxonomy.
	ErrorCode string `json:"errorCode,omitempty"`
	// Extras contains extra information about the error, e.g. field-level
	// validation messages.
	Extras map[string]any `json:"extras,omitempty"`
	// Err wraps the original error to pass it forward.
	Err error `json:"-"`
}

// ReportErrorFunc is a function type used to report unexpected errors.
type ReportErrorFunc func(ctx context.Context, err error, msg string)

var defaultReportErrorFunc ReportErrorFunc = func(ctx context.Context, err error, msg string) {
	if msg != "" {
		err = fmt.Errorf("%s: %w", msg, err)
	}
	logger.Ctx(ctx).Errorf("%+v", err)
}

// SetDefaultReportErrorFunc swaps the reporter used for unexpected errors,
// e.g. to forward them to the crash tracker.
func SetDefaultReportErrorFunc(fn ReportErrorFunc) {
	defaultReportErrorFunc = fn
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) WithErrorCode(code string) *HTTPError {
	e.ErrorCode = code
	return e
}

type errorEnvelope struct {
	Success   bool           `json:"success"`
	Data      any            `json:"data"`
	Message   string         `json:"message"`
	ErrorCode string         `json:"errorCode,omitempty"`
	Extras    map[string]any `json:"extras,omitempty"`
}

func (e *HTTPError) Render(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Success:   false,
		Data:      nil,
		Message:   e.Message,
		ErrorCode: e.ErrorCode,
		Extras:    e.Extras,
	})
}

func NewHTTPError(statusCode int, msg string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" && originalErr != nil && len(extras) == 0 {
		var hErr *HTTPError
		if errors.As(originalErr, &hErr) && (hErr.StatusCode == statusCode) {
			return hErr
		}
	}

	return &HTTPError{
		StatusCode: statusCode,
		Message:    msg,
		Extras:     extras,
		Err:        originalErr,
	}
}

func BadRequest(msg string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" {
		msg = "The request was invalid in some way."
	}
	return NewHTTPError(http.StatusBadRequest, msg, originalErr, extras).WithErrorCode(CodeValidation)
}

func NotFound(msg string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" {
		msg = "Resource not found."
	}
	return NewHTTPError(http.StatusNotFound, msg, originalErr, extras).WithErrorCode(CodeNotFound)
}

func Conflict(msg string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" {
		msg = "The resource already exists."
	}
	return NewHTTPError(http.StatusConflict, msg, originalErr, extras).WithErrorCode(CodeDuplicate)
}

func Unauthorized(msg string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" {
		msg = "Not authorized."
	}
	return NewHTTPError(http.StatusUnauthorized, msg, originalErr, extras).WithErrorCode(CodeUnauthenticated)
}

func Forbidden(msg string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" {
		msg = "You don't have permission to perform this action."
	}
	return NewHTTPError(http.StatusForbidden, msg, originalErr, extras).WithErrorCode(CodeUnauthorized)
}

func TooManyRequests(msg string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" {
		msg = "Too many requests, please try again later."
	}
	return NewHTTPError(http.StatusTooManyRequests, msg, originalErr, extras).WithErrorCode(CodeRateLimited)
}

func InternalError(ctx context.Context, msg string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" {
		msg = "An internal error occurred while processing this request."
	}
	defaultReportErrorFunc(ctx, originalErr, msg)
	return NewHTTPError(http.StatusInternalServerError, msg, originalErr, extras).WithErrorCode(CodeInternal)
}
