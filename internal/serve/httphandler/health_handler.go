package httphandler

import (
	"net/http"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/serve/httpresponse"
)

const (
	StatusPass StatusType = "pass"
	StatusFail StatusType = "fail"
)

type StatusType string

type HealthResponse struct {
	Status   StatusType            `json:"status"`
	Version  string                `json:"version,omitempty"`
	Services map[string]StatusType `json:"services,omitempty"`
}

// HealthHandler implements a health check endpoint reporting the status of the
// database and, when configured, the event broker.
type HealthHandler struct {
	Version          string
	DBConnectionPool db.DBConnectionPool
	Producer         events.Producer
}

func (h HealthHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	overall := StatusPass
	servicesStatus := map[string]StatusType{}

	if err := h.DBConnectionPool.Ping(ctx); err != nil {
		logger.Ctx(ctx).Errorf("health check: pinging database: %v", err)
		servicesStatus["database"] = StatusFail
		overall = StatusFail
	} else {
		servicesStatus["database"] = StatusPass
	}

	if h.Producer != nil {
		if err := h.Producer.Ping(ctx); err != nil {
			logger.Ctx(ctx).Errorf("health check: pinging event broker: %v", err)
			servicesStatus["event_broker"] = StatusFail
			overall = StatusFail
		} else {
			servicesStatus["event_broker"] = StatusPass
		}
	}

	statusCode := http.StatusOK
	if overall == StatusFail {
		statusCode = http.StatusServiceUnavailable
	}

	httpresponse.Render(ctx, rw, statusCode, HealthResponse{
		Status:   overall,
		Version:  h.Version,
		Services: servicesStatus,
	})
}
