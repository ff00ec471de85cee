package serve

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/monitor"
)

type MetricsServeOptions struct {
	Port           int
	Environment    string
	MonitorService monitor.MonitorServiceInterface
}

// MetricsServe exposes the Prometheus scrape endpoint on its own port so it
// never shares a listener with the public API.
func MetricsServe(ctx context.Context, opts MetricsServeOptions) error {
	if opts.MonitorService == nil {
		return fmt.Errorf("monitor service is required")
	}

	metricsHandler, err := opts.MonitorService.GetMetricHttpHandler()
	if err != nil {
		return fmt.Errorf("getting metrics http handler: %w", err)
	}

	mux := chi.NewMux()
	mux.Handle("/metrics", metricsHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Ctx(ctx).Errorf("shutting down metrics server: %v", err)
		}
	}()

	logger.Ctx(ctx).WithField("port", opts.Port).Info("starting metrics server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("running metrics server: %w", err)
	}
	return nil
}
