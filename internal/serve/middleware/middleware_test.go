package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nordbank/banking-platform-backend/internal/auth"
)

func Test_RecoverHandler(t *testing.T) {
	handler := RecoverHandler(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		panic(fmt.Errorf("test panic"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{
		"success": false,
		"data": null,
		"message": "An internal error occurred while processing this request.",
		"errorCode": "INTERNAL"
	}`, rr.Body.String())
}

func Test_RecoverHandler_doesNotRecoverFromErrAbortHandler(t *testing.T) {
	handler := RecoverHandler(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(rr, req)
	})
}

func Test_AuthenticateMiddleware(t *testing.T) {
	authManagerMock := &auth.AuthManagerMock{}
	next := http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		token, ok := TokenFromContext(req.Context())
		require.True(t, ok)
		assert.Equal(t, "mytoken", token)
		rw.WriteHeader(http.StatusOK)
	})
	handler := AuthenticateMiddleware(authManagerMock)(next)

	t.Run("returns 401 when the Authorization header is missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("returns 401 when the Authorization header is malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "mytoken")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("returns 401 when the token is invalid", func(t *testing.T) {
		authManagerMock.
			On("GetUserID", mock.Anything, "badtoken").
			Return("", auth.ErrInvalidToken).
			Once()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer badtoken")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("stores the token in the context when it is valid", func(t *testing.T) {
		authManagerMock.
			On("GetUserID", mock.Anything, "mytoken").
			Return("user-id", nil).
			Once()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer mytoken")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	authManagerMock.AssertExpectations(t)
}

func Test_AnyRoleMiddleware(t *testing.T) {
	authManagerMock := &auth.AuthManagerMock{}
	next := http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})

	withToken := func(token string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(context.WithValue(req.Context(), TokenContextKey, token))
	}

	t.Run("returns 401 when no token is present", func(t *testing.T) {
		handler := AnyRoleMiddleware(authManagerMock, auth.AdminUserRole)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("returns 403 when the user lacks all required roles", func(t *testing.T) {
		authManagerMock.
			On("AnyRolesInTokenUser", mock.Anything, "mytoken", []string{"admin"}).
			Return(false, nil).
			Once()

		handler := AnyRoleMiddleware(authManagerMock, auth.AdminUserRole)(next)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, withToken("mytoken"))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("passes through when the user has one of the required roles", func(t *testing.T) {
		authManagerMock.
			On("AnyRolesInTokenUser", mock.Anything, "mytoken", []string{"operator", "admin"}).
			Return(true, nil).
			Once()

		handler := AnyRoleMiddleware(authManagerMock, auth.OperatorUserRole, auth.AdminUserRole)(next)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, withToken("mytoken"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("passes through for any authenticated user when no roles are required", func(t *testing.T) {
		handler := AnyRoleMiddleware(authManagerMock)(next)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, withToken("mytoken"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	authManagerMock.AssertExpectations(t)
}

func Test_AuthRateLimitMiddleware(t *testing.T) {
	handler := AuthRateLimitMiddleware(2)(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.JSONEq(t, `{
		"success": false,
		"data": null,
		"message": "Too many requests, please try again later.",
		"errorCode": "RATE_LIMITED"
	}`, rr.Body.String())

	// A different source IP gets its own bucket.
	req = httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func Test_CorsMiddleware(t *testing.T) {
	handler := CorsMiddleware([]string{"https://ops.nordbank.example"})(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin gets the CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
		req.Header.Set("Origin", "https://ops.nordbank.example")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "https://ops.nordbank.example", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin gets no CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
		req.Header.Set("Origin", "https://evil.example")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight is answered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/accounts", nil)
		req.Header.Set("Origin", "https://ops.nordbank.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, "https://ops.nordbank.example", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})
}
