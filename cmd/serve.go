package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/auth"
	"github.com/nordbank/banking-platform-backend/internal/crashtracker"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/events/eventhandlers"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/monitor"
	"github.com/nordbank/banking-platform-backend/internal/saga"
	"github.com/nordbank/banking-platform-backend/internal/scheduler"
	"github.com/nordbank/banking-platform-backend/internal/scheduler/jobs"
	"github.com/nordbank/banking-platform-backend/internal/serve"
	"github.com/nordbank/banking-platform-backend/internal/services"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the banking platform API",
		Run: func(cmd *cobra.Command, args []string) {
			runServe(cmd.Context())
		},
	}

	fl := cmd.Flags()
	fl.Int("port", 8000, "port the API server listens on")
	fl.Int("metrics-port", 8002, "port the Prometheus scrape endpoint listens on")
	fl.String("metrics-type", string(monitor.MetricTypePrometheus), `metric monitor type ("PROMETHEUS")`)
	fl.String("broker-urls", "", "comma-separated Kafka broker addresses; empty disables the event broker")
	fl.String("broker-consumer-group", "banking-platform", "consumer group id used by the event consumers")
	fl.String("ec256-public-key", "", "EC256 public key used to validate access tokens")
	fl.String("ec256-private-key", "", "EC256 private key used to sign access tokens")
	fl.Int("token-expiration-minutes", 15, "access token lifetime in minutes")
	fl.Duration("otp-ttl", 5*time.Minute, "lifetime of one-time passwords issued by the forgot-password flow")
	fl.Int("auth-failed-attempts-lock", 5, "consecutive failed sign-ins after which the account is locked")
	fl.String("cors-allowed-origins", "", "comma-separated origins allowed to call the API from a browser")
	fl.Int("ratelimit-default-rpm", 100, "per-caller requests per minute for business endpoints")
	fl.Int("ratelimit-auth-rpm", 10, "per-IP requests per minute for authentication endpoints")
	fl.Int("aml-flag-threshold", 30, "cumulative risk score at which a monitored transaction raises an alert")
	fl.Int("sanction-match-threshold", services.DefaultMatchThreshold, "minimum fuzzy name score (0-100) recorded as a sanction match")
	fl.String("swift-fixed-fee", "25.00", "fixed component of the outbound wire fee")
	fl.String("swift-percentage-fee", "0.001", "percentage component of the outbound wire fee, as a fraction")
	fl.Int("outbox-pump-interval", 5, "seconds between outbox pump runs")
	fl.Int("outbox-batch-size", 100, "maximum outbox rows published per pump run")
	fl.Duration("saga-step-timeout", 30*time.Second, "upper bound on a single saga step execution")
	fl.Int("saga-recovery-interval", 30, "seconds between saga recovery sweeps")
	fl.Int("saga-stuck-threshold", 600, "seconds a non-terminal saga may sit untouched before recovery picks it up")
	fl.Int("mandate-expiry-interval", 3600, "seconds between stale mandate sweeps")
	fl.Int("aml-case-sla-interval", 3600, "seconds between AML case SLA sweeps")
	fl.Int("sepa-batch-processor-interval", 30, "seconds between submission runs for validated SEPA batches")
	bindCommandFlags(cmd)

	return cmd
}

func runServe(ctx context.Context) {
	log := logger.DefaultLogger

	metricType, err := monitor.ParseMetricType(viper.GetString("metrics-type"))
	if err != nil {
		log.Fatalf("parsing metrics type: %v", err)
	}
	monitorService := &monitor.MonitorService{}
	if startErr := monitorService.Start(monitor.MetricOptions{MetricType: metricType, Environment: globalOpts.Environment}); startErr != nil {
		log.Fatalf("starting monitor service: %v", startErr)
	}

	crashTrackerType, err := crashtracker.ParseCrashTrackerType(globalOpts.CrashTrackerType)
	if err != nil {
		log.Fatalf("parsing crash tracker type: %v", err)
	}
	crashTrackerClient, err := crashtracker.GetClient(ctx, crashtracker.CrashTrackerOptions{
		CrashTrackerType: crashTrackerType,
		Environment:      globalOpts.Environment,
		GitCommit:        globalOpts.GitCommit,
		SentryDSN:        globalOpts.SentryDSN,
	})
	if err != nil {
		log.Fatalf("setting up crash tracker client: %v", err)
	}

	dbConnectionPool, err := db.OpenDBConnectionPool(globalOpts.DatabaseURL)
	if err != nil {
		log.Fatalf("opening db connection pool: %v", err)
	}
	defer dbConnectionPool.Close()

	models, err := data.NewModels(dbConnectionPool)
	if err != nil {
		log.Fatalf("creating models: %v", err)
	}

	brokers := splitCommaList(viper.GetString("broker-urls"))
	producer := buildProducer(ctx, brokers)
	defer producer.Close(ctx)

	authManager := auth.NewAuthManager(
		auth.WithDefaultAuthenticatorOption(dbConnectionPool, auth.NewDefaultPasswordEncrypter()),
		auth.WithDefaultJWTManagerOption(viper.GetString("ec256-public-key"), viper.GetString("ec256-private-key")),
		auth.WithDefaultRoleManagerOption(dbConnectionPool),
		auth.WithExpirationTimeInMinutesOption(viper.GetInt("token-expiration-minutes")),
		auth.WithOTPTTLOption(viper.GetDuration("otp-ttl")),
		auth.WithFailedLoginLockOption(viper.GetInt("auth-failed-attempts-lock")),
	)

	sagaRegistry := saga.NewRegistry()
	orchestrator, err := saga.NewOrchestrator(saga.OrchestratorOptions{
		DBConnectionPool:   dbConnectionPool,
		Models:             models,
		MonitorService:     monitorService,
		CrashTrackerClient: crashTrackerClient,
		StepTimeout:        viper.GetDuration("saga-step-timeout"),
	})
	if err != nil {
		log.Fatalf("creating saga orchestrator: %v", err)
	}

	svcs := buildServices(dbConnectionPool, models, monitorService, producer, orchestrator, sagaRegistry)

	if len(brokers) > 0 {
		amlConsumer, consumerErr := events.NewKafkaConsumer(
			brokers,
			events.AccountEventsTopic,
			viper.GetString("broker-consumer-group"),
			eventhandlers.NewAmlMonitoringEventHandler(svcs.amlDetection),
		)
		if consumerErr != nil {
			log.Fatalf("creating consumer for topic %s: %v", events.AccountEventsTopic, consumerErr)
		}
		go events.NewEventConsumer(amlConsumer, producer, crashTrackerClient.Clone()).Consume(ctx)
	}

	go scheduler.StartScheduler(
		crashTrackerClient.Clone(),
		scheduler.WithOutboxPumpJobOption(svcs.outboxPump, viper.GetInt("outbox-pump-interval")),
		scheduler.WithSagaRecoveryJobOption(jobs.SagaRecoveryJobOptions{
			DBConnectionPool: dbConnectionPool,
			Models:           models,
			Orchestrator:     orchestrator,
			Registry:         sagaRegistry,
			StuckThreshold:   time.Duration(viper.GetInt("saga-stuck-threshold")) * time.Second,
			Interval:         time.Duration(viper.GetInt("saga-recovery-interval")) * time.Second,
			Clock:            utils.RealClock{},
		}),
		scheduler.WithMandateExpiryJobOption(svcs.sepaMandate, viper.GetInt("mandate-expiry-interval")),
		scheduler.WithAmlCaseSlaJobOption(svcs.amlCase, viper.GetInt("aml-case-sla-interval")),
		scheduler.WithSepaBatchProcessorJobOption(dbConnectionPool, models, svcs.sepaBatch, viper.GetInt("sepa-batch-processor-interval")),
	)

	go func() {
		if metricsErr := serve.MetricsServe(ctx, serve.MetricsServeOptions{
			Port:           viper.GetInt("metrics-port"),
			Environment:    globalOpts.Environment,
			MonitorService: monitorService,
		}); metricsErr != nil {
			crashTrackerClient.LogAndReportErrors(ctx, metricsErr, "running metrics server")
		}
	}()

	err = serve.Serve(ctx, serve.ServeOptions{
		Environment:             globalOpts.Environment,
		Port:                    viper.GetInt("port"),
		Version:                 globalOpts.Version,
		DBConnectionPool:        dbConnectionPool,
		Models:                  models,
		AuthManager:             authManager,
		MonitorService:          monitorService,
		Producer:                producer,
		RateLimitDefaultRPM:     viper.GetInt("ratelimit-default-rpm"),
		RateLimitAuthRPM:        viper.GetInt("ratelimit-auth-rpm"),
		CorsAllowedOrigins:      splitCommaList(viper.GetString("cors-allowed-origins")),
		LedgerService:           svcs.ledger,
		TransferService:         svcs.transfer,
		SepaMandateService:      svcs.sepaMandate,
		SepaBatchService:        svcs.sepaBatch,
		SepaReturnService:       svcs.sepaReturn,
		SwiftService:            svcs.swift,
		AmlDetectionService:     svcs.amlDetection,
		AmlCaseService:          svcs.amlCase,
		RegulatoryReportService: svcs.regulatoryReport,
		SanctionService:         svcs.sanction,
		CustomerService:         svcs.customer,
	})
	if err != nil {
		crashTrackerClient.LogAndReportErrors(ctx, err, "running api server")
		log.Fatalf("running api server: %v", err)
	}
}

// platformServices bundles every domain service so the wiring below reads
// top to bottom.
type platformServices struct {
	ledger           *services.LedgerService
	transfer         *services.TransferService
	sepaMandate      *services.SepaMandateService
	sepaBatch        *services.SepaBatchService
	sepaReturn       *services.SepaReturnService
	swift            *services.SwiftService
	amlDetection     *services.AmlDetectionService
	amlCase          *services.AmlCaseService
	regulatoryReport *services.RegulatoryReportService
	sanction         *services.SanctionScreeningService
	customer         *services.CustomerService
	outboxPump       *services.OutboxPumpService
}

func buildServices(
	dbConnectionPool db.DBConnectionPool,
	models *data.Models,
	monitorService monitor.MonitorServiceInterface,
	producer events.Producer,
	orchestrator *saga.Orchestrator,
	sagaRegistry *saga.Registry,
) platformServices {
	log := logger.DefaultLogger

	ledgerService, err := services.NewLedgerService(services.LedgerServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		MonitorService:   monitorService,
	})
	if err != nil {
		log.Fatalf("creating ledger service: %v", err)
	}

	transferService, err := services.NewTransferService(services.TransferServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		LedgerService:    ledgerService,
		Orchestrator:     orchestrator,
		MonitorService:   monitorService,
		SagaRegistry:     sagaRegistry,
	})
	if err != nil {
		log.Fatalf("creating transfer service: %v", err)
	}

	sepaMandateService, err := services.NewSepaMandateService(services.SepaMandateServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
	})
	if err != nil {
		log.Fatalf("creating sepa mandate service: %v", err)
	}

	settlementNetwork := services.NewSimulatedSettlementNetwork()

	sepaBatchService, err := services.NewSepaBatchService(services.SepaBatchServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		Network:          settlementNetwork,
		MonitorService:   monitorService,
	})
	if err != nil {
		log.Fatalf("creating sepa batch service: %v", err)
	}

	sepaReturnService, err := services.NewSepaReturnService(services.SepaReturnServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		LedgerService:    ledgerService,
	})
	if err != nil {
		log.Fatalf("creating sepa return service: %v", err)
	}

	sanctionService, err := services.NewSanctionScreeningService(services.SanctionScreeningServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		MatchThreshold:   viper.GetInt("sanction-match-threshold"),
	})
	if err != nil {
		log.Fatalf("creating sanction screening service: %v", err)
	}

	swiftService, err := services.NewSwiftService(services.SwiftServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		Network:          settlementNetwork,
		ComplianceGate:   sanctionService,
		FeeSchedule: services.SwiftFeeSchedule{
			FixedFee:      mustDecimal("swift-fixed-fee"),
			PercentageFee: mustDecimal("swift-percentage-fee"),
		},
		MonitorService: monitorService,
	})
	if err != nil {
		log.Fatalf("creating swift service: %v", err)
	}

	amlDetectionService, err := services.NewAmlDetectionService(services.AmlDetectionServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		MonitorService:   monitorService,
		FlagThreshold:    viper.GetInt("aml-flag-threshold"),
	})
	if err != nil {
		log.Fatalf("creating aml detection service: %v", err)
	}

	amlCaseService, err := services.NewAmlCaseService(services.AmlCaseServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
	})
	if err != nil {
		log.Fatalf("creating aml case service: %v", err)
	}

	regulatoryReportService, err := services.NewRegulatoryReportService(services.RegulatoryReportServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
	})
	if err != nil {
		log.Fatalf("creating regulatory report service: %v", err)
	}

	customerService, err := services.NewCustomerService(services.CustomerServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
	})
	if err != nil {
		log.Fatalf("creating customer service: %v", err)
	}

	outboxPumpService, err := services.NewOutboxPumpService(services.OutboxPumpServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		Producer:         producer,
		MonitorService:   monitorService,
		BatchSize:        viper.GetInt("outbox-batch-size"),
	})
	if err != nil {
		log.Fatalf("creating outbox pump service: %v", err)
	}

	return platformServices{
		ledger:           ledgerService,
		transfer:         transferService,
		sepaMandate:      sepaMandateService,
		sepaBatch:        sepaBatchService,
		sepaReturn:       sepaReturnService,
		swift:            swiftService,
		amlDetection:     amlDetectionService,
		amlCase:          amlCaseService,
		regulatoryReport: regulatoryReportService,
		sanction:         sanctionService,
		customer:         customerService,
		outboxPump:       outboxPumpService,
	}
}

func splitCommaList(value string) []string {
	parts := strings.Split(value, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}

func buildProducer(ctx context.Context, brokers []string) events.Producer {
	if len(brokers) == 0 {
		logger.Ctx(ctx).Warn("no broker urls configured, domain events will be logged and discarded")
		return events.NoopProducer{}
	}

	producer, err := events.NewKafkaProducer(brokers)
	if err != nil {
		logger.DefaultLogger.Fatalf("creating kafka producer: %v", err)
	}
	return producer
}

func mustDecimal(key string) decimal.Decimal {
	d, err := decimal.NewFromString(viper.GetString(key))
	if err != nil {
		logger.DefaultLogger.Fatalf("parsing %s: %v", key, err)
	}
	return d
}
