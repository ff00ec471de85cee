package httphandler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nordbank/banking-platform-backend/internal/auth"
	"github.com/nordbank/banking-platform-backend/internal/serve/httperror"
	"github.com/nordbank/banking-platform-backend/internal/serve/httpresponse"
	"github.com/nordbank/banking-platform-backend/internal/serve/validators"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

// UserHandler manages back-office user accounts. All routes behind it require
// the admin role.
type UserHandler struct {
	AuthManager auth.AuthManager
}

type CreateUserRequest struct {
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     string          `json:"email"`
	Roles     []auth.UserRole `json:"roles"`
}

type UpdateRolesRequest struct {
	Roles []auth.UserRole `json:"roles"`
}

func (h UserHandler) CreateUser(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody CreateUserRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.FirstName != "", "first_name", "first_name is required")
	v.Check(reqBody.LastName != "", "last_name", "last_name is required")
	v.CheckError(utils.ValidateEmail(reqBody.Email), "email", "")
	v.Check(len(reqBody.Roles) > 0, "roles", "at least one role is required")
	for _, role := range reqBody.Roles {
		v.Check(role.IsValid(), "roles", fmt.Sprintf("invalid role %q", role))
	}
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	// Users choose their own password through the forgot-password flow; the
	// initial one is random and never shared.
	initialPassword, err := utils.RandomString(24)
	if err != nil {
		httperror.InternalError(ctx, "Cannot generate the initial password", err, nil).Render(rw)
		return
	}

	user, err := h.AuthManager.CreateUser(ctx, &auth.User{
		FirstName: reqBody.FirstName,
		LastName:  reqBody.LastName,
		Email:     reqBody.Email,
		Roles:     auth.FromUserRoleArrayToStringArray(reqBody.Roles),
	}, initialPassword)
	if err != nil {
		if errors.Is(err, auth.ErrUserEmailAlreadyExists) {
			httperror.Conflict("A user with this email already exists.", err, nil).Render(rw)
			return
		}
		httperror.InternalError(ctx, "Cannot create user", err, nil).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusCreated, user)
}

func (h UserHandler) GetAllUsers(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	token, ok := tokenFromRequest(rw, req)
	if !ok {
		return
	}

	users, err := h.AuthManager.GetAllUsers(ctx, token)
	if err != nil {
		httperror.InternalError(ctx, "Cannot get all users", err, nil).Render(rw)
		return
	}

	httpresponse.Render(ctx, rw, http.StatusOK, users)
}

func (h UserHandler) UpdateUserRoles(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	userID := chi.URLParam(req, "id")

	token, ok := tokenFromRequest(rw, req)
	if !ok {
		return
	}

	var reqBody UpdateRolesRequest
	if !decodeJSONRequest(rw, req, &reqBody) {
		return
	}

	v := validators.NewValidator()
	v.Check(len(reqBody.Roles) > 0, "roles", "at least one role is required")
	for _, role := range reqBody.Roles {
		v.Check(role.IsValid(), "roles", fmt.Sprintf("invalid role %q", role))
	}
	if v.HasErrors() {
		httperror.BadRequest("", nil, v.Errors).Render(rw)
		return
	}

	err := h.AuthManager.UpdateUserRoles(ctx, token, userID, auth.FromUserRoleArrayToStringArray(reqBody.Roles))
	if err != nil {
		h.renderUserError(rw, req, err, "Cannot update user roles")
		return
	}

	httpresponse.RenderWithMessage(ctx, rw, http.StatusOK, nil, "user roles updated successfully")
}

func (h UserHandler) ActivateUser(rw http.ResponseWriter, req *http.Request) {
	h.setActivation(rw, req, true)
}

func (h UserHandler) DeactivateUser(rw http.ResponseWriter, req *http.Request) {
	h.setActivation(rw, req, false)
}

func (h UserHandler) setActivation(rw http.ResponseWriter, req *http.Request, active bool) {
	ctx := req.Context()
	userID := chi.URLParam(req, "id")

	token, ok := tokenFromRequest(rw, req)
	if !ok {
		return
	}

	var err error
	if active {
		err = h.AuthManager.ActivateUser(ctx, token, userID)
	} else {
		err = h.AuthManager.DeactivateUser(ctx, token, userID)
	}
	if err != nil {
		h.renderUserError(rw, req, err, "Cannot update user activation")
		return
	}

	httpresponse.RenderWithMessage(ctx, rw, http.StatusOK, nil, "user activation was updated successfully")
}

// UnlockUser resets the failed sign-in counter of a locked account.
func (h UserHandler) UnlockUser(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	userID := chi.URLParam(req, "id")

	token, ok := tokenFromRequest(rw, req)
	if !ok {
		return
	}

	if err := h.AuthManager.UnlockUser(ctx, token, userID); err != nil {
		h.renderUserError(rw, req, err, "Cannot unlock user")
		return
	}

	httpresponse.RenderWithMessage(ctx, rw, http.StatusOK, nil, "user unlocked successfully")
}

func (h UserHandler) renderUserError(rw http.ResponseWriter, req *http.Request, err error, internalMsg string) {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		httperror.NotFound("Resource not found.", err, nil).Render(rw)
	case errors.Is(err, auth.ErrInvalidToken):
		httperror.Unauthorized("", err, nil).Render(rw)
	default:
		httperror.InternalError(req.Context(), internalMsg, err, nil).Render(rw)
	}
}
