package serve

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/auth"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/monitor"
	"github.com/nordbank/banking-platform-backend/internal/serve/httphandler"
	"github.com/nordbank/banking-platform-backend/internal/serve/middleware"
	"github.com/nordbank/banking-platform-backend/internal/services"
)

const ServiceName = "banking-platform-backend"

type ServeOptions struct {
	Environment         string
	Port                int
	Version             string
	DBConnectionPool    db.DBConnectionPool
	Models              *data.Models
	AuthManager         auth.AuthManager
	MonitorService      monitor.MonitorServiceInterface
	Producer            events.Producer
	RateLimitDefaultRPM int
	RateLimitAuthRPM    int
	CorsAllowedOrigins  []string

	LedgerService           *services.LedgerService
	TransferService         *services.TransferService
	SepaMandateService      *services.SepaMandateService
	SepaBatchService        *services.SepaBatchService
	SepaReturnService       *services.SepaReturnService
	SwiftService            *services.SwiftService
	AmlDetectionService     *services.AmlDetectionService
	AmlCaseService          *services.AmlCaseService
	RegulatoryReportService *services.RegulatoryReportService
	SanctionService         *services.SanctionScreeningService
	CustomerService         *services.CustomerService
}

func (opts ServeOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	if opts.AuthManager == nil {
		return fmt.Errorf("auth manager is required")
	}
	if opts.MonitorService == nil {
		return fmt.Errorf("monitor service is required")
	}
	return nil
}

// Serve starts the API server and blocks until ctx is cancelled, then shuts
// down gracefully.
func Serve(ctx context.Context, opts ServeOptions) error {
	if err := opts.validate(); err != nil {
		return fmt.Errorf("validating serve options: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           handleHTTP(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Ctx(ctx).Errorf("shutting down API server: %v", err)
		}
	}()

	logger.Ctx(ctx).WithField("port", opts.Port).Infof("starting %s API server", ServiceName)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("running API server: %w", err)
	}
	return nil
}

func handleHTTP(opts ServeOptions) *chi.Mux {
	mux := chi.NewMux()

	mux.Use(chimiddleware.RequestID)
	mux.Use(middleware.CorsMiddleware(opts.CorsAllowedOrigins))
	mux.Use(middleware.RecoverHandler)
	mux.Use(middleware.MetricsRequestHandler(opts.MonitorService))
	mux.Use(middleware.LoggingMiddleware)

	// Role sets per endpoint group. Posting money needs at least the operator
	// role; destructive account actions are admin-only; the compliance desk
	// owns alerts and cases; filings need a manager sign-off.
	operatorRoles := []auth.UserRole{auth.OperatorUserRole, auth.ManagerUserRole, auth.AdminUserRole}
	managerRoles := []auth.UserRole{auth.ManagerUserRole, auth.AdminUserRole}
	complianceRoles := []auth.UserRole{auth.ComplianceUserRole, auth.AdminUserRole}
	adminRoles := []auth.UserRole{auth.AdminUserRole}

	authenticated := middleware.AuthenticateMiddleware(opts.AuthManager)
	rateLimited := middleware.RateLimitMiddleware(opts.RateLimitDefaultRPM)
	authRateLimited := middleware.AuthRateLimitMiddleware(opts.RateLimitAuthRPM)
	requireAny := func(roles ...auth.UserRole) func(http.Handler) http.Handler {
		return middleware.AnyRoleMiddleware(opts.AuthManager, roles...)
	}

	mux.Get("/health", httphandler.HealthHandler{
		Version:          opts.Version,
		DBConnectionPool: opts.DBConnectionPool,
		Producer:         opts.Producer,
	}.ServeHTTP)

	mux.Route("/auth", func(r chi.Router) {
		r.With(authRateLimited).Post("/login", httphandler.LoginHandler{AuthManager: opts.AuthManager}.ServeHTTP)
		r.With(authRateLimited).Post("/forgot-password", httphandler.ForgotPasswordHandler{AuthManager: opts.AuthManager}.ServeHTTP)
		r.With(authRateLimited).Post("/reset-password", httphandler.ResetPasswordHandler{AuthManager: opts.AuthManager}.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.With(authRateLimited).Post("/refresh-token", httphandler.RefreshTokenHandler{AuthManager: opts.AuthManager}.ServeHTTP)
			r.Post("/logout", httphandler.LogoutHandler{AuthManager: opts.AuthManager}.ServeHTTP)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authenticated, requireAny(adminRoles...), rateLimited)
			userHandler := httphandler.UserHandler{AuthManager: opts.AuthManager}
			r.Post("/", userHandler.CreateUser)
			r.Get("/", userHandler.GetAllUsers)
			r.Patch("/{id}/roles", userHandler.UpdateUserRoles)
			r.Patch("/{id}/activate", userHandler.ActivateUser)
			r.Patch("/{id}/deactivate", userHandler.DeactivateUser)
			r.Patch("/{id}/unlock", userHandler.UnlockUser)
		})
	})

	mux.Route("/ledger", func(r chi.Router) {
		r.Use(authenticated, rateLimited)

		accountHandler := httphandler.AccountHandler{LedgerService: opts.LedgerService}
		r.Route("/accounts", func(r chi.Router) {
			r.With(requireAny(operatorRoles...)).Post("/", accountHandler.Open)
			r.Get("/{account_number}", accountHandler.Get)
			r.Get("/{account_number}/balance", accountHandler.Balance)
			r.Get("/{account_number}/history", accountHandler.History)
			r.With(requireAny(operatorRoles...)).Post("/{account_number}/credit", accountHandler.Credit)
			r.With(requireAny(operatorRoles...)).Post("/{account_number}/debit", accountHandler.Debit)
			r.With(requireAny(adminRoles...)).Patch("/{account_number}/freeze", accountHandler.Freeze)
			r.With(requireAny(adminRoles...)).Patch("/{account_number}/activate", accountHandler.Activate)
			r.With(requireAny(adminRoles...)).Patch("/{account_number}/close", accountHandler.Close)
		})

		transferHandler := httphandler.TransferHandler{TransferService: opts.TransferService}
		r.Route("/transfers", func(r chi.Router) {
			r.With(requireAny(operatorRoles...)).Post("/", transferHandler.Initiate)
			r.Get("/{transfer_reference}", transferHandler.Get)
		})
	})

	mux.Route("/sepa", func(r chi.Router) {
		r.Use(authenticated, requireAny(operatorRoles...), rateLimited)

		mandateHandler := httphandler.SepaMandateHandler{MandateService: opts.SepaMandateService}
		r.Route("/mandates", func(r chi.Router) {
			r.Post("/", mandateHandler.Create)
			r.Get("/{umr}", mandateHandler.Get)
			r.Patch("/{umr}/activate", mandateHandler.Activate)
			r.Patch("/{umr}/suspend", mandateHandler.Suspend)
			r.Patch("/{umr}/resume", mandateHandler.Resume)
			r.Patch("/{umr}/cancel", mandateHandler.Cancel)
			r.Post("/{umr}/collections", mandateHandler.RecordCollection)
		})

		batchHandler := httphandler.SepaBatchHandler{BatchService: opts.SepaBatchService}
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", batchHandler.Create)
			r.Get("/{message_id}", batchHandler.Get)
			r.Post("/{message_id}/transfers", batchHandler.AddTransfer)
			r.Patch("/{message_id}/validate", batchHandler.Validate)
			r.Patch("/{message_id}/submit", batchHandler.Submit)
		})
		r.Route("/transfers", func(r chi.Router) {
			r.Get("/{sepa_reference}", batchHandler.GetTransfer)
			r.Post("/{sepa_reference}/result", batchHandler.RecordTransferResult)
		})

		returnHandler := httphandler.SepaReturnHandler{ReturnService: opts.SepaReturnService}
		r.Route("/returns", func(r chi.Router) {
			r.Post("/", returnHandler.Initiate)
			r.Get("/{return_reference}", returnHandler.Get)
			r.Patch("/{return_reference}/process", returnHandler.Process)
		})
	})

	mux.Route("/swift", func(r chi.Router) {
		r.Use(authenticated, requireAny(operatorRoles...), rateLimited)

		swiftHandler := httphandler.SwiftHandler{SwiftService: opts.SwiftService}
		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", swiftHandler.Initiate)
			r.Get("/{transaction_reference}", swiftHandler.Get)
			r.Patch("/{transaction_reference}/process", swiftHandler.Process)
			r.Patch("/{transaction_reference}/settlement", swiftHandler.ConfirmSettlement)
		})
	})

	mux.Route("/aml", func(r chi.Router) {
		r.Use(authenticated, rateLimited)

		amlHandler := httphandler.AmlHandler{DetectionService: opts.AmlDetectionService, Models: opts.Models}
		r.Route("/rules", func(r chi.Router) {
			r.Use(requireAny(complianceRoles...))
			r.Post("/", amlHandler.CreateRule)
			r.Patch("/{id}/enabled", amlHandler.SetRuleEnabled)
		})
		r.With(requireAny(operatorRoles...)).Post("/transactions", amlHandler.MonitorTransaction)
		r.Route("/alerts", func(r chi.Router) {
			r.Use(requireAny(complianceRoles...))
			r.Get("/", amlHandler.ListAlerts)
			r.Patch("/{id}/review", amlHandler.ReviewAlert)
			r.Patch("/{id}/clear", amlHandler.ClearAlert)
		})

		caseHandler := httphandler.AmlCaseHandler{CaseService: opts.AmlCaseService, AuthManager: opts.AuthManager}
		r.Route("/cases", func(r chi.Router) {
			r.Use(requireAny(complianceRoles...))
			r.Post("/", caseHandler.OpenFromAlert)
			r.Get("/{case_number}", caseHandler.Get)
			r.Post("/{case_number}/alerts", caseHandler.AttachAlert)
			r.Patch("/{case_number}/investigate", caseHandler.StartInvestigation)
			r.Patch("/{case_number}/submit-review", caseHandler.SubmitForReview)
			r.Patch("/{case_number}/escalate", caseHandler.Escalate)
			r.With(requireAny(managerRoles...)).Patch("/{case_number}/approve-closure", caseHandler.ApproveClosure)
			r.Patch("/{case_number}/close", caseHandler.Close)
			r.Patch("/{case_number}/reopen", caseHandler.Reopen)
			r.Post("/{case_number}/notes", caseHandler.AddNote)
		})

		reportHandler := httphandler.RegulatoryReportHandler{ReportService: opts.RegulatoryReportService, AuthManager: opts.AuthManager}
		r.Route("/reports", func(r chi.Router) {
			r.Use(requireAny(complianceRoles...))
			r.Post("/", reportHandler.Create)
			r.Get("/{report_number}", reportHandler.Get)
			r.Patch("/{report_number}/submit-review", reportHandler.SubmitForReview)
			r.Patch("/{report_number}/review", reportHandler.Review)
			r.With(requireAny(managerRoles...)).Patch("/{report_number}/approve", reportHandler.Approve)
			r.With(requireAny(managerRoles...)).Patch("/{report_number}/reject", reportHandler.RejectApproval)
			r.Patch("/{report_number}/return-to-draft", reportHandler.ReturnToDraft)
			r.Patch("/{report_number}/narrative", reportHandler.UpdateNarrative)
			r.Patch("/{report_number}/file", reportHandler.File)
			r.Patch("/{report_number}/acknowledge", reportHandler.Acknowledge)
		})

		sanctionHandler := httphandler.SanctionHandler{ScreeningService: opts.SanctionService}
		r.Route("/sanctions", func(r chi.Router) {
			r.Use(requireAny(complianceRoles...))
			r.Post("/screen", sanctionHandler.ScreenName)
			r.Post("/customers/{id}/screen", sanctionHandler.ScreenCustomer)
			r.Patch("/matches/{id}/confirm", sanctionHandler.ConfirmMatch)
			r.Patch("/matches/{id}/dismiss", sanctionHandler.DismissMatch)
			r.Post("/import", sanctionHandler.ImportEntries)
		})
	})

	mux.Route("/customers", func(r chi.Router) {
		r.Use(authenticated, rateLimited)

		customerHandler := httphandler.CustomerHandler{CustomerService: opts.CustomerService, AuthManager: opts.AuthManager}
		r.With(requireAny(operatorRoles...)).Post("/", customerHandler.Register)
		r.Get("/{customer_number}", customerHandler.Get)
		r.Get("/{customer_number}/history", customerHandler.History)
		r.With(requireAny(complianceRoles...)).Get("/{customer_number}/risk-profile", customerHandler.RiskProfile)
		r.With(requireAny(operatorRoles...)).Post("/{customer_number}/documents", customerHandler.UploadDocument)
		r.With(requireAny(complianceRoles...)).Patch("/documents/{document_id}/review", customerHandler.ReviewDocument)
		r.With(requireAny(complianceRoles...)).Patch("/{customer_number}/verify", customerHandler.Verify)
		r.With(requireAny(complianceRoles...)).Patch("/{customer_number}/approve", customerHandler.Approve)
		r.With(requireAny(complianceRoles...)).Patch("/{customer_number}/suspend", customerHandler.Suspend)
		r.With(requireAny(complianceRoles...)).Patch("/{customer_number}/reinstate", customerHandler.Reinstate)
		r.With(requireAny(complianceRoles...)).Patch("/{customer_number}/close", customerHandler.Close)
	})

	return mux
}
