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

// LoginHandler authenticates users and manages their session tokens.
type LoginHandler struct {
	AuthManager auth.AuthManager
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func (h LoginHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody LoginRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.Email != "", "email", "email is required")
	v.Check(reqBody.Password != "", "password", "password is required")
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	token, err := h.AuthManager.Authenticate(ctx, reqBody.Email, reqBody.Password)
	switch {
	case err == nil:
		httpresponse.Render(ctx, rw, http.StatusOK, LoginResponse{Token: token})
	case errors.Is(err, auth.ErrUserAccountLocked):
		httperror.Unauthorized("The account is locked after too many failed sign-in attempts.", err, nil).Render(rw)
	case errors.Is(err, auth.ErrInvalidCredentials):
		httperror.Unauthorized("Not authorized.", err, nil).Render(rw)
	default:
		httperror.InternalError(ctx, "Cannot authenticate user credentials", err, nil).Render(rw)
	}
}

// RefreshTokenHandler issues a fresh token for a still-valid session.
type RefreshTokenHandler struct {
	AuthManager auth.AuthManager
}

func (h RefreshTokenHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	token, ok := tokenFromRequest(rw, req)
	if !ok {
		return
	}

	refreshedToken, err := h.AuthManager.RefreshToken(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrUserNotFound) {
			httperror.Unauthorized("", err, nil).Render(rw)
			return
		}
		httperror.InternalError(ctx, "Cannot refresh the session token", err, nil).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, LoginResponse{Token: refreshedToken})
}

// LogoutHandler revokes the session token so it cannot be replayed.
type LogoutHandler struct {
	AuthManager auth.AuthManager
}

func (h LogoutHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	token, ok := tokenFromRequest(rw, req)
	if !ok {
		return
	}

	if err := h.AuthManager.RevokeToken(ctx, token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			httperror.Unauthorized("", err, nil).Render(rw)
			return
		}
		httperror.InternalError(ctx, "Cannot revoke the session token", err, nil).Render(rw)
		return
	}

	logger.Ctx(ctx).Info("user signed out")
	httpresponse.RenderWithMessage(ctx, rw, http.StatusOK, nil, "user signed out successfully")
}
