package httphandler

import (
	"errors"
	"net/http"

	"github.com/nordbank/banking-platform-backend/internal/auth"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/serve/httperror"
	"github.com/nordbank/banking-platform-backend/internal/serve/httpresponse"
	"github.com/nordbank/banking-platform-backend/internal/serve/validators"
)

const forgotPasswordMessage = "If the email is registered, a one-time password has been issued."

// ForgotPasswordHandler issues a one-time password for the password reset
// flow. There is no messaging channel in the platform, so the code is handed
// to the operational log for out-of-band delivery. The response is the same
// whether or not the email exists.
type ForgotPasswordHandler struct {
	AuthManager auth.AuthManager
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h ForgotPasswordHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody ForgotPasswordRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.Email != "", "email", "email is required")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	otp, err := h.AuthManager.ForgotPassword(ctx, reqBody.Email)
	switch {
	case err == nil:
		logger.Ctx(ctx).WithField("email", reqBody.Email).Infof("one-time password issued: %s", otp)
		httpresponse.RenderWithMessage(ctx, rw, http.StatusOK, nil, forgotPasswordMessage)
	case errors.Is(err, auth.ErrUserNotFound):
		// Same response as success so the endpoint cannot be used to probe
		// for registered emails.
		httpresponse.RenderWithMessage(ctx, rw, http.StatusOK, nil, forgotPasswordMessage)
	default:
		httperror.InternalError(ctx, "Cannot issue one-time password", err, nil).Render(rw)
	}
}

// ResetPasswordHandler consumes a one-time password and sets the new
// password.
type ResetPasswordHandler struct {
	AuthManager auth.AuthManager
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

func (h ResetPasswordHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody ResetPasswordRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.Email != "", "email", "email is required")
	v.Check(reqBody.OTP != "", "otp", "otp is required")
	v.Check(reqBody.NewPassword != "", "new_password", "new_password is required")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	err := h.AuthManager.ResetPassword(ctx, reqBody.Email, reqBody.OTP, reqBody.NewPassword)
	switch {
	case err == nil:
		httpresponse.RenderWithMessage(ctx, rw, http.StatusOK, nil, "password updated successfully")
	case errors.Is(err, auth.ErrInvalidOTP), errors.Is(err, auth.ErrUserNotFound):
		httperror.Unauthorized("The one-time password is invalid or has expired.", err, nil).Render(rw)
	case errors.Is(err, auth.ErrPasswordTooShort):
		httperror.BadRequest(err.Error(), err, nil).Render(rw)
	default:
		httperror.InternalError(ctx, "Cannot reset password", err, nil).Render(rw)
	}
}
