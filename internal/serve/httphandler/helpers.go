package httphandler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nordbank/banking-platform-backend/internal/auth"
	"github.com/nordbank/banking-platform-backend/internal/serve/httperror"
	"github.com/nordbank/banking-platform-backend/internal/serve/middleware"
)

// decodeJSONRequest decodes the request body into dst. On failure it renders a
// 400 and returns false, so callers can bail out with a bare return.
func decodeJSONRequest(rw http.ResponseWriter, req *http.Request, dst any) bool {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		httperror.BadRequest("The request was invalid in some way.", err, nil).Render(rw)
		return false
	}
	return true
}

// tokenFromRequest returns the bearer token stored by the authentication
// middleware, rendering a 401 when it is absent.
func tokenFromRequest(rw http.ResponseWriter, req *http.Request) (string, bool) {
	token, ok := middleware.TokenFromContext(req.Context())
	if !ok {
		httperror.Unauthorized("", nil, nil).Render(rw)
	}
	return token, ok
}

// actorFromContext resolves the authenticated user's email for audit fields.
func actorFromContext(ctx context.Context, authManager auth.AuthManager) (string, error) {
	token, ok := middleware.TokenFromContext(ctx)
	if !ok {
		return "", auth.ErrInvalidToken
	}
	user, err := authManager.GetUser(ctx, token)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}
