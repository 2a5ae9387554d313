package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/auth"
	"github.com/pablotheshekpeking/payroll-system/internal/bank"
	"github.com/pablotheshekpeking/payroll-system/internal/cache"
	"github.com/pablotheshekpeking/payroll-system/internal/config"
	"github.com/pablotheshekpeking/payroll-system/internal/db"
	"github.com/pablotheshekpeking/payroll-system/internal/employee"
	"github.com/pablotheshekpeking/payroll-system/internal/events"
	"github.com/pablotheshekpeking/payroll-system/internal/fee"
	"github.com/pablotheshekpeking/payroll-system/internal/health"
	"github.com/pablotheshekpeking/payroll-system/internal/kafka"
	"github.com/pablotheshekpeking/payroll-system/internal/logger"
	"github.com/pablotheshekpeking/payroll-system/internal/messaging"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"
	"github.com/pablotheshekpeking/payroll-system/internal/middleware"
	"github.com/pablotheshekpeking/payroll-system/internal/notify"
	"github.com/pablotheshekpeking/payroll-system/internal/payment"
	"github.com/pablotheshekpeking/payroll-system/internal/payroll"
	"github.com/pablotheshekpeking/payroll-system/internal/paystack"
	"github.com/pablotheshekpeking/payroll-system/internal/student"
	"github.com/pablotheshekpeking/payroll-system/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const notifyQueue = "payroll-notify"

type consumer interface {
	Start(ctx context.Context) error
	Close() error
}

type App struct {
	config     *config.Config
	router     chi.Router
	server     *http.Server
	grpcServer *grpc.Server
	grpcHealth *grpchealth.Server
	health     *health.Handler
	logger     *slog.Logger

	db        *bun.DB
	redis     *redis.Client
	producer  events.Producer
	consumer  consumer
	telemetry *telemetry.Telemetry

	cancel context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application", "git_commit", GitCommit, "build_time", BuildTime)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	app.telemetry, err = telemetry.Init(ctx, cfg.Telemetry.Enabled, cfg.Telemetry.Endpoint, ServiceName, Version, cfg.Env, slogLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	m := app.telemetry.Metrics

	app.db, err = db.New(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, app.db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	app.redis, err = cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, slogLogger)
	if err != nil {
		slogLogger.Warn("redis unavailable, caching disabled", "error", err)
		app.redis = nil
	}

	app.producer = newProducer(cfg, slogLogger, m)
	app.consumer = newConsumer(cfg, newMailer(cfg, slogLogger), slogLogger, m)

	provider := paystack.NewClient(
		cfg.Paystack.BaseURL,
		cfg.Paystack.SecretKey,
		time.Duration(cfg.Paystack.TimeoutSeconds)*time.Second,
		slogLogger,
	)

	// Repositories
	authRepo := auth.NewRepository(app.db, m)
	studentRepo := student.NewRepository(app.db, m)
	employeeRepo := employee.NewRepository(app.db, m)
	paymentRepo := payment.NewRepository(app.db, m)

	// Services
	tokens := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.AccessTokenMinutes)*time.Minute,
		time.Duration(cfg.Auth.RefreshTokenHours)*time.Hour,
	)
	authService := auth.NewService(authRepo, tokens, studentRepo, slogLogger)
	if cfg.Auth.AdminEmail != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, cfg.Auth.AdminName); err != nil {
			return nil, fmt.Errorf("failed to create admin user: %w", err)
		}
	}

	employeeService := employee.NewService(employeeRepo, provider, cfg.Paystack.Currency, slogLogger)
	paymentService := payment.NewService(paymentRepo, employeeRepo, provider, app.producer, m, payment.Options{
		Currency:      cfg.Paystack.Currency,
		WebhookSecret: cfg.Paystack.WebhookSecret,
	}, slogLogger)
	payrollService := payroll.NewService(payroll.NewRepository(app.db, m), employeeRepo, paymentService, cfg.Payroll.PeriodsPerYear, m, slogLogger)
	feeService := fee.NewService(fee.NewRepository(app.db, m), paymentRepo, provider, fee.Options{
		Currency:    cfg.Paystack.Currency,
		CallbackURL: cfg.Paystack.CallbackURL,
	}, slogLogger)
	studentService := student.NewService(studentRepo, slogLogger)
	bankService := bank.NewService(
		provider,
		cache.NewStore(app.redis, "banks", slogLogger),
		cfg.Paystack.BankCountry,
		time.Duration(cfg.Redis.BankCacheMinutes)*time.Minute,
		slogLogger,
	)

	// Handlers
	authHandler := auth.NewHandler(authService, tokens, slogLogger)
	employeeHandler := employee.NewHandler(employeeService, slogLogger)
	paymentHandler := payment.NewHandler(paymentService, slogLogger)
	payrollHandler := payroll.NewHandler(payrollService, slogLogger)
	feeHandler := fee.NewHandler(feeService, slogLogger)
	studentHandler := student.NewHandler(studentService, slogLogger)
	bankHandler := bank.NewHandler(bankService, slogLogger)
	app.health = health.NewHandler(app.healthChecks(), m, slogLogger)

	if cfg.Telemetry.Enabled {
		meter := otel.Meter(ServiceName)
		if err := m.Health.RegisterDependencies(ctx, meter, app.health.Dependencies()); err != nil {
			slogLogger.Warn("failed to register dependency metrics", "error", err)
		}
	}

	app.router.Use(chimiddleware.RequestID)
	app.router.Use(chimiddleware.Recoverer)
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Public endpoints
	app.health.RegisterRoutes(app.router)
	authHandler.RegisterRoutes(app.router)
	studentHandler.RegisterPublicRoutes(app.router)
	paymentHandler.RegisterWebhookRoutes(app.router)

	mountAPI(app.router, auth.Authenticate(tokens, slogLogger), apiHandlers{
		auth:     authHandler,
		employee: employeeHandler,
		payroll:  payrollHandler,
		payment:  paymentHandler,
		fee:      feeHandler,
		student:  studentHandler,
		bank:     bankHandler,
	})

	app.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	app.grpcHealth = grpchealth.NewServer()
	healthpb.RegisterHealthServer(app.grpcServer, app.grpcHealth)

	slogLogger.Info("application initialized successfully")
	return app, nil
}

type apiHandlers struct {
	auth     *auth.Handler
	employee *employee.Handler
	payroll  *payroll.Handler
	payment  *payment.Handler
	fee      *fee.Handler
	student  *student.Handler
	bank     *bank.Handler
}

// mountAPI mounts the authenticated API. Students reach only self-service
// routes; staff data sits behind the admin role.
func mountAPI(router chi.Router, authenticate func(http.Handler) http.Handler, h apiHandlers) {
	router.Route("/api", func(r chi.Router) {
		r.Use(authenticate)

		h.auth.RegisterAPIRoutes(r)
		h.payment.RegisterRoutes(r)
		h.fee.RegisterRoutes(r)
		h.student.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))

			h.employee.RegisterAdminRoutes(r)
			h.payroll.RegisterAdminRoutes(r)
			h.payment.RegisterAdminRoutes(r)
			h.fee.RegisterAdminRoutes(r)
			h.student.RegisterAdminRoutes(r)
			h.bank.RegisterAdminRoutes(r)
		})
	})
}

func newProducer(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) events.Producer {
	switch cfg.Events.Driver {
	case "kafka":
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger, m)
		if err != nil {
			logger.Warn("failed to initialize Kafka producer, events disabled", "error", err)
			return events.NoopProducer{}
		}
		logger.Info("Kafka producer initialized successfully", "topic", cfg.Kafka.Topic)
		return producer
	case "nats":
		producer, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, logger, m)
		if err != nil {
			logger.Warn("failed to initialize NATS producer, events disabled", "error", err)
			return events.NoopProducer{}
		}
		logger.Info("NATS producer initialized successfully", "subject", cfg.NATS.Subject)
		return producer
	default:
		logger.Info("payment events disabled", "driver", cfg.Events.Driver)
		return events.NoopProducer{}
	}
}

func newMailer(cfg *config.Config, logger *slog.Logger) notify.Mailer {
	if cfg.Mail.Provider == "sendgrid" && cfg.Mail.SendGridAPIKey != "" {
		return notify.NewSendGridMailer(cfg.Mail.SendGridAPIKey, cfg.Mail.FromName, cfg.Mail.FromEmail, logger)
	}
	return notify.NewLogMailer(logger)
}

// newConsumer subscribes the payment notifier on the configured transport;
// nil when events are disabled or the transport is unreachable.
func newConsumer(cfg *config.Config, mailer notify.Mailer, logger *slog.Logger, m *metrics.Metrics) consumer {
	notifier := notify.NewNotifier(mailer, cfg.Paystack.Currency, logger)

	var (
		c   consumer
		err error
	)
	switch cfg.Events.Driver {
	case "kafka":
		c, err = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, notifyQueue, notifier, logger, m)
	case "nats":
		c, err = messaging.NewConsumer(cfg.NATS.URL, cfg.NATS.Subject, notifyQueue, notifier, logger, m)
	default:
		return nil
	}
	if err != nil {
		logger.Warn("failed to initialize notification consumer", "driver", cfg.Events.Driver, "error", err)
		return nil
	}
	return c
}

func (a *App) healthChecks() map[string]health.Check {
	checks := map[string]health.Check{
		"postgres": func(ctx context.Context) error { return a.db.PingContext(ctx) },
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	if p, ok := a.producer.(*messaging.Producer); ok {
		checks["nats"] = func(ctx context.Context) error { return p.HealthCheck() }
	}
	return checks
}

// watchHealth mirrors the readiness checks into the gRPC health service.
func (a *App) watchHealth(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		status := healthpb.HealthCheckResponse_SERVING
		if _, ready := a.health.Check(ctx); !ready {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		a.grpcHealth.SetServingStatus("", status)
		a.grpcHealth.SetServingStatus(ServiceName, status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go a.watchHealth(ctx)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("notification consumer stopped", "error", err)
			}
		}()
	}

	lis, err := net.Listen("tcp", ":"+a.config.Grpc.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	go func() {
		a.logger.Info("gRPC health server starting", "port", a.config.Grpc.Port)
		if err := a.grpcServer.Serve(lis); err != nil {
			a.logger.Error("gRPC server stopped", "error", err)
		}
	}()

	a.server = &http.Server{
		Addr:         ":" + a.config.Server.Port,
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.grpcHealth != nil {
		a.grpcHealth.Shutdown()
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		a.consumer.Close()
	}
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	db.Close(a.db)
	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
