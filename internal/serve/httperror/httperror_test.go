package httperror

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/services"
)

func Test_HTTPError_Render(t *testing.T) {
	t.Run("renders the error envelope with extras", func(t *testing.T) {
		rr := httptest.NewRecorder()
		BadRequest("", nil, map[string]any{"amount": "amount must be positive"}).Render(rr)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
		wantBody := `{
			"success": false,
			"data": null,
			"message": "The request was invalid in some way.",
			"errorCode": "VALIDATION",
			"extras": {"amount": "amount must be positive"}
		}`
		assert.JSONEq(t, wantBody, rr.Body.String())
	})

	t.Run("omits extras when empty", func(t *testing.T) {
		rr := httptest.NewRecorder()
		NotFound("", nil, nil).Render(rr)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"success": false, "data": null, "message": "Resource not found.", "errorCode": "NOT_FOUND"}`, rr.Body.String())
	})
}

func Test_HTTPError_defaultMessages(t *testing.T) {
	testCases := []struct {
		httpError      *HTTPError
		wantStatusCode int
		wantMessage    string
		wantErrorCode  string
	}{
		{httpError: BadRequest("", nil, nil), wantStatusCode: http.StatusBadRequest, wantMessage: "The request was invalid in some way.", wantErrorCode: CodeValidation},
		{httpError: NotFound("", nil, nil), wantStatusCode: http.StatusNotFound, wantMessage: "Resource not found.", wantErrorCode: CodeNotFound},
		{httpError: Conflict("", nil, nil), wantStatusCode: http.StatusConflict, wantMessage: "The resource already exists.", wantErrorCode: CodeDuplicate},
		{httpError: Unauthorized("", nil, nil), wantStatusCode: http.StatusUnauthorized, wantMessage: "Not authorized.", wantErrorCode: CodeUnauthenticated},
	}

	for _, tc := range testCases {
		t.Run(tc.wantErrorCode, func(t *testing.T) {
			assert.Equal(t, tc.wantStatusCode, tc.httpError.StatusCode)
			assert.Equal(t, tc.wantMessage, tc.httpError.Message)
			assert.Equal(t, tc.wantErrorCode, tc.httpError.ErrorCode)
		})
	}
}

func Test_FromDomainError(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name           string
		err            error
		wantStatusCode int
		wantErrorCode  string
	}{
		{name: "record not found", err: fmt.Errorf("getting account: %w", data.ErrRecordNotFound), wantStatusCode: http.StatusNotFound, wantErrorCode: CodeNotFound},
		{name: "record already exists", err: data.ErrRecordAlreadyExists, wantStatusCode: http.StatusConflict, wantErrorCode: CodeDuplicate},
		{name: "stale version", err: data.ErrStaleVersion, wantStatusCode: http.StatusConflict, wantErrorCode: CodeConcurrency},
		{name: "insufficient funds", err: services.ErrInsufficientFunds, wantStatusCode: http.StatusBadRequest, wantErrorCode: CodeInsufficientFunds},
		{name: "mandate not collectable", err: services.ErrMandateNotCollectable, wantStatusCode: http.StatusBadRequest, wantErrorCode: CodeLimitExceeded},
		{name: "invalid amount", err: services.ErrInvalidAmount, wantStatusCode: http.StatusBadRequest, wantErrorCode: CodeValidation},
		{name: "state transition", err: &data.TransitionError{From: "CLOSED", To: "ACTIVE"}, wantStatusCode: http.StatusBadRequest, wantErrorCode: CodeInvalidStateTransition},
		{name: "unmapped error", err: fmt.Errorf("disk on fire"), wantStatusCode: http.StatusInternalServerError, wantErrorCode: CodeInternal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			httpErr := FromDomainError(ctx, tc.err)
			require.NotNil(t, httpErr)
			assert.Equal(t, tc.wantStatusCode, httpErr.StatusCode)
			assert.Equal(t, tc.wantErrorCode, httpErr.ErrorCode)
		})
	}

	t.Run("wrapped transition error keeps its code", func(t *testing.T) {
		err := fmt.Errorf("closing account: %w", &data.TransitionError{From: "PENDING", To: "FROZEN"})
		httpErr := FromDomainError(ctx, err)
		assert.Equal(t, CodeInvalidStateTransition, httpErr.ErrorCode)
	})
}
