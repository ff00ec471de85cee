package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/cors"

	"github.com/nordbank/banking-platform-backend/internal/auth"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/monitor"
	"github.com/nordbank/banking-platform-backend/internal/serve/httperror"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

type ContextKey string

const TokenContextKey ContextKey = "auth_token"

// TokenFromContext returns the bearer token placed in the context by
// AuthenticateMiddleware.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenContextKey).(string)
	return token, ok
}

// RecoverHandler is a middleware that recovers from panics and logs the error.
func RecoverHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", r)
			}

			// No need to recover when the client has disconnected:
			if errors.Is(err, http.ErrAbortHandler) {
				panic(err)
			}

			ctx := req.Context()
			logger.Ctx(ctx).Errorf("panic recovered: %v", err)
			httperror.InternalError(ctx, "", err, nil).Render(rw)
		}()

		next.ServeHTTP(rw, req)
	})
}

// MetricsRequestHandler is a middleware that monitors http requests, and export the data
// to the metrics server
func MetricsRequestHandler(monitorService monitor.MonitorServiceInterface) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			mw := middleware.NewWrapResponseWriter(rw, req.ProtoMajor)
			then := time.Now()
			next.ServeHTTP(mw, req)

			duration := time.Since(then)

			labels := monitor.HttpRequestLabels{
				Status: fmt.Sprintf("%d", mw.Status()),
				Route:  utils.GetRoutePattern(req),
				Method: req.Method,
			}

			err := monitorService.MonitorHttpRequestDuration(duration, labels)
			if err != nil {
				logger.Ctx(req.Context()).Errorf("monitoring request duration: %v", err)
			}
		})
	}
}

// LoggingMiddleware attaches request-scoped fields to the context logger and
// logs the request start/end.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		mw := middleware.NewWrapResponseWriter(rw, req.ProtoMajor)
		ctx := logger.Set(req.Context(), logger.Ctx(req.Context()).WithFields(map[string]any{
			"method": req.Method,
			"path":   req.URL.Path,
			"req":    middleware.GetReqID(req.Context()),
		}))
		req = req.WithContext(ctx)

		started := time.Now()
		next.ServeHTTP(mw, req)

		logger.Ctx(ctx).WithFields(map[string]any{
			"status":   mw.Status(),
			"bytes":    mw.BytesWritten(),
			"duration": time.Since(started).String(),
		}).Info("finished request")
	})
}

// AuthenticateMiddleware is a middleware that validates the Authorization header for
// authenticated endpoints.
func AuthenticateMiddleware(authManager auth.AuthManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			authHeader := req.Header.Get("Authorization")
			if authHeader == "" {
				httperror.Unauthorized("", nil, nil).Render(rw)
				return
			}

			authHeaderParts := strings.Split(authHeader, " ")
			if len(authHeaderParts) != 2 || !strings.EqualFold(authHeaderParts[0], "Bearer") {
				httperror.Unauthorized("", nil, nil).Render(rw)
				return
			}

			ctx := req.Context()
			token := authHeaderParts[1]
			userID, err := authManager.GetUserID(ctx, token)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrUserNotFound) {
					logger.Ctx(ctx).Errorf("validating auth token: %v", err)
				}
				httperror.Unauthorized("", nil, nil).Render(rw)
				return
			}

			ctx = context.WithValue(ctx, TokenContextKey, token)
			ctx = logger.Set(ctx, logger.Ctx(ctx).WithField("user_id", userID))

			next.ServeHTTP(rw, req.WithContext(ctx))
		})
	}
}

// AnyRoleMiddleware validates if the user has at least one of the required roles to request
// the current endpoint.
func AnyRoleMiddleware(authManager auth.AuthManager, requiredRoles ...auth.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			ctx := req.Context()

			token, ok := TokenFromContext(ctx)
			if !ok {
				httperror.Unauthorized("", nil, nil).Render(rw)
				return
			}

			// Accessible by all authenticated users
			if len(requiredRoles) == 0 {
				next.ServeHTTP(rw, req)
				return
			}

			isValid, err := authManager.AnyRolesInTokenUser(ctx, token, auth.FromUserRoleArrayToStringArray(requiredRoles))
			if err != nil && !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrUserNotFound) {
				httperror.InternalError(ctx, "", err, nil).Render(rw)
				return
			}

			if !isValid {
				httperror.Forbidden("", nil, nil).Render(rw)
				return
			}

			next.ServeHTTP(rw, req)
		})
	}
}

// CorsMiddleware allows browser clients from the given origins to call the
// API.
func CorsMiddleware(corsAllowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		cors := cors.New(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedHeaders: []string{"*"},
			AllowedMethods: []string{"GET", "PUT", "POST", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		})

		return cors.Handler(next)
	}
}

// RateLimitMiddleware is a token-bucket limiter keyed by source identity and
// endpoint. Business endpoints use this limiter; auth endpoints use
// AuthRateLimitMiddleware with a stricter budget.
func RateLimitMiddleware(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(rateLimitKey, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httperror.TooManyRequests("", nil, nil).Render(w)
		}),
	)
}

// AuthRateLimitMiddleware throttles credential endpoints per source IP to slow
// down online guessing.
func AuthRateLimitMiddleware(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httperror.TooManyRequests("", nil, nil).Render(w)
		}),
	)
}

// rateLimitKey prefers the authenticated identity over the source IP, so a
// NATed office does not share one bucket.
func rateLimitKey(r *http.Request) (string, error) {
	if token, ok := TokenFromContext(r.Context()); ok {
		return token, nil
	}
	return httprate.KeyByIP(r)
}
