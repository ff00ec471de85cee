package httpresponse

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nordbank/banking-platform-backend/internal/logger"
)

// Envelope is the platform response body for every JSON endpoint:
// `{ success, data, message, errorCode? }`.
type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// Render writes data wrapped in a success envelope.
func Render(ctx context.Context, w http.ResponseWriter, statusCode int, data any) {
	RenderWithMessage(ctx, w, statusCode, data, "")
}

// RenderWithMessage writes data wrapped in a success envelope with a
// human-readable message.
func RenderWithMessage(ctx context.Context, w http.ResponseWriter, statusCode int, data any, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(Envelope{
		Success: true,
		Data:    data,
		Message: message,
	})
	if err != nil {
		logger.Ctx(ctx).Errorf("writing response body: %v", err)
	}
}
