package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	cacheadapter "github.com/orbitacademy/subscription-service/internal/adapters/cache"
	eventadapter "github.com/orbitacademy/subscription-service/internal/adapters/events"
	grpcadapter "github.com/orbitacademy/subscription-service/internal/adapters/grpc"
	httpadapter "github.com/orbitacademy/subscription-service/internal/adapters/http"
	"github.com/orbitacademy/subscription-service/internal/adapters/memory"
	"github.com/orbitacademy/subscription-service/internal/adapters/postgres"
	"github.com/orbitacademy/subscription-service/internal/adapters/security"
	"github.com/orbitacademy/subscription-service/internal/adapters/stripe"
	"github.com/orbitacademy/subscription-service/internal/application"
	"github.com/orbitacademy/subscription-service/internal/domain"
	"github.com/orbitacademy/subscription-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	parking    *eventadapter.ParkedEventWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping subscription service",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"storage_mode", cfg.StorageMode,
	)

	var (
		subscribers ports.SubscriberRepository
		eventLog    ports.EventLogRepository
		intents     ports.IntentStore
		cleanup     = func(context.Context) {}
	)

	if cfg.StorageMode == "memory" {
		repos := memory.NewRepositories()
		subscribers = repos.Subscribers
		eventLog = repos.EventLog
		intents = memory.NewIntentStore()
	} else {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sqlDB, err := pool.DB()
		if err != nil {
			return nil, fmt.Errorf("gorm sql db: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}

		repos := postgres.NewRepositories(pool)
		subscribers = repos.Subscribers
		eventLog = repos.EventLog
		intents = cacheadapter.NewRedisIntentStore(redisClient)
		cleanup = func(context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		}
	}

	tokenSigner, err := security.NewJWTSigner(cfg.JWTSecret)
	if err != nil {
		cleanup(ctx)
		return nil, fmt.Errorf("init jwt signer: %w", err)
	}

	provider := stripe.NewClient(stripe.Config{
		BaseURL:     cfg.ProviderBaseURL,
		SecretKey:   cfg.ProviderSecretKey,
		FrontendURL: cfg.FrontendURL,
	})

	deps := application.Dependencies{
		Config: application.Config{
			PlanCatalog:          cfg.PlanCatalog,
			IntentValidityWindow: cfg.IntentValidityWindow,
			ClockSkewTolerance:   cfg.ClockSkewTolerance,
			ReconcileMaxAttempts: cfg.ReconcileMaxAttempts,
			ReconcileBackoff:     cfg.ReconcileBackoff,
			TokenTTL:             cfg.TokenTTL,
		},
		Subscribers: subscribers,
		EventLog:    eventLog,
		Intents:     intents,
		Provider:    provider,
		Verifier:    security.NewHMACVerifier(cfg.WebhookSigningSecret, cfg.ClockSkewTolerance),
		Hasher:      security.NewBcryptHasher(cfg.BcryptCost),
		TokenSigner: tokenSigner,
		Logger:      logger,
	}
	// The worker re-drives parked events through the service, and the
	// service parks into the worker; the closure breaks the cycle.
	var svc *application.Service
	parking := eventadapter.NewParkedEventWorker(
		logger,
		func(ctx context.Context, ev domain.CanonicalEvent) error {
			_, err := svc.Reconcile(ctx, ev)
			return err
		},
		cfg.ParkPollInterval,
		cfg.ParkRetryBackoff,
		cfg.ParkMaxRetries,
	)
	deps.ParkingLot = parking
	svc = application.NewService(deps)

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	grpcadapter.Register(grpcServer, grpcadapter.NewHealthServer())

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		cleanup(ctx)
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		parking:    parking,
		cleanupFn:  cleanup,
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	go func() {
		r.logger.Info("parked event worker started")
		if err := r.parking.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("parked event worker stopped", "error", err)
		}
	}()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}
