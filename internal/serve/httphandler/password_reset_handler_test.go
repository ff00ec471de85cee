package httphandler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/nordbank/banking-platform-backend/internal/auth"
)

func Test_ForgotPasswordHandler(t *testing.T) {
	authManagerMock := &auth.AuthManagerMock{}
	handler := ForgotPasswordHandler{AuthManager: authManagerMock}

	t.Run("returns 400 when the email is missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/forgot-password", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "email is required")
	})

	t.Run("issues a one-time password", func(t *testing.T) {
		authManagerMock.
			On("ForgotPassword", mock.Anything, "operator@nordbank.example").
			Return("123456", nil).
			Once()

		req := httptest.NewRequest(http.MethodPost, "/auth/forgot-password", strings.NewReader(`{"email": "operator@nordbank.example"}`))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), forgotPasswordMessage)
		assert.NotContains(t, rr.Body.String(), "123456", "the code must not leak into the response")
	})

	t.Run("unknown email gets the same response as success", func(t *testing.T) {
		authManagerMock.
			On("ForgotPassword", mock.Anything, "ghost@nordbank.example").
			Return("", auth.ErrUserNotFound).
			Once()

		req := httptest.NewRequest(http.MethodPost, "/auth/forgot-password", strings.NewReader(`{"email": "ghost@nordbank.example"}`))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), forgotPasswordMessage)
	})

	authManagerMock.AssertExpectations(t)
}

func Test_ResetPasswordHandler(t *testing.T) {
	authManagerMock := &auth.AuthManagerMock{}
	handler := ResetPasswordHandler{AuthManager: authManagerMock}

	t.Run("returns 400 when fields are missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/reset-password", strings.NewReader(`{"email": "operator@nordbank.example"}`))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "otp is required")
		assert.Contains(t, rr.Body.String(), "new_password is required")
	})

	t.Run("returns 401 on an invalid or expired code", func(t *testing.T) {
		authManagerMock.
			On("ResetPassword", mock.Anything, "operator@nordbank.example", "000000", "n3w-Passw0rd").
			Return(auth.ErrInvalidOTP).
			Once()

		req := httptest.NewRequest(http.MethodPost, "/auth/reset-password", strings.NewReader(`{"email": "operator@nordbank.example", "otp": "000000", "new_password": "n3w-Passw0rd"}`))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{
			"success": false,
			"data": null,
			"message": "The one-time password is invalid or has expired.",
			"errorCode": "UNAUTHENTICATED"
		}`, rr.Body.String())
	})

	t.Run("returns 400 when the new password is too short", func(t *testing.T) {
		authManagerMock.
			On("ResetPassword", mock.Anything, "operator@nordbank.example", "123456", "short").
			Return(auth.ErrPasswordTooShort).
			Once()

		req := httptest.NewRequest(http.MethodPost, "/auth/reset-password", strings.NewReader(`{"email": "operator@nordbank.example", "otp": "123456", "new_password": "short"}`))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("updates the password", func(t *testing.T) {
		authManagerMock.
			On("ResetPassword", mock.Anything, "operator@nordbank.example", "123456", "n3w-Passw0rd").
			Return(nil).
			Once()

		req := httptest.NewRequest(http.MethodPost, "/auth/reset-password", strings.NewReader(`{"email": "operator@nordbank.example", "otp": "123456", "new_password": "n3w-Passw0rd"}`))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "password updated successfully")
	})

	authManagerMock.AssertExpectations(t)
}
