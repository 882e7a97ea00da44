package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ETAnderson/vendorsync/internal/api"
	"github.com/ETAnderson/vendorsync/internal/api/auth"
	"github.com/ETAnderson/vendorsync/internal/config"
	"github.com/ETAnderson/vendorsync/internal/events"
	"github.com/ETAnderson/vendorsync/internal/extract"
	"github.com/ETAnderson/vendorsync/internal/idempotency"
	"github.com/ETAnderson/vendorsync/internal/ingest"
	"github.com/ETAnderson/vendorsync/internal/logging"
	"github.com/ETAnderson/vendorsync/internal/messaging"
	"github.com/ETAnderson/vendorsync/internal/migrate"
	"github.com/ETAnderson/vendorsync/internal/pipeline"
	"github.com/ETAnderson/vendorsync/internal/reconcile"
	"github.com/ETAnderson/vendorsync/internal/state"
	"github.com/ETAnderson/vendorsync/internal/vendor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDev())
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting",
		zap.String("env", cfg.Env),
		zap.String("state_backend", cfg.StateBackend),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.Bool("kafka", len(cfg.Kafka.Brokers) > 0),
	)

	ctx := context.Background()

	storeRes, err := state.NewStore(ctx, state.FactoryConfig{
		Backend:     cfg.StateBackend,
		MySQLDSN:    cfg.MySQLDSN,
		PostgresURL: cfg.PostgresURL,
	})
	if err != nil {
		logger.Fatal("state store init failed", zap.Error(err))
	}
	defer storeRes.Close()

	if storeRes.DB != nil && cfg.RunMigrations {
		if err := migrate.ApplyDir(ctx, storeRes.DB, cfg.MigrationsDir, storeRes.Dialect); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		logger.Info("migrations applied", zap.String("dir", cfg.MigrationsDir))
	}
	if storeRes.Memory != nil && cfg.FixturesPath != "" {
		if err := state.LoadFixtures(cfg.FixturesPath, storeRes.Memory); err != nil {
			logger.Fatal("fixtures load failed", zap.Error(err))
		}
	}
	store := storeRes.Store

	idemStore, dedupe, closeCache := newCaches(ctx, cfg, logger)
	defer closeCache()

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	strategies := []vendor.Strategy{}
	if cfg.JWTPublicKeyPEM != "" {
		pub, err := auth.ParseRSAPublicKeyPEM(cfg.JWTPublicKeyPEM)
		if err != nil {
			logger.Fatal("invalid JWT_PUBLIC_KEY_PEM", zap.Error(err))
		}
		strategies = append(strategies, vendor.SignedTokenStrategy{PublicKey: pub})
	}
	strategies = append(strategies,
		vendor.CredentialStrategy{Store: store, Logger: logger.With(zap.String("component", "resolver"))},
		vendor.StoreMappingStrategy{Store: store},
	)

	msgClient := messaging.NewCloudAPIClient(messaging.Config{
		APIBase:       cfg.Messaging.APIBase,
		PhoneNumberID: cfg.Messaging.PhoneNumberID,
		AccessToken:   cfg.Messaging.AccessToken,
	})

	var extractClient extract.Client
	if cfg.Extract.APIKey != "" {
		extractClient = extract.NewOpenAIClient(extract.OpenAIConfig{
			Endpoint: cfg.Extract.Endpoint,
			APIKey:   cfg.Extract.APIKey,
			Model:    cfg.Extract.Model,
			Timeout:  cfg.Extract.Timeout,
		})
	} else {
		logger.Warn("EXTRACT_API_KEY not set; conversational listings will use the raw message as title")
	}

	orch := &pipeline.Orchestrator{
		Resolver: vendor.NewResolver(strategies...),
		Normalizer: ingest.Normalizer{
			DefaultCategory: cfg.Ingest.DefaultCategory,
			DefaultCurrency: cfg.Ingest.DefaultCurrency,
		},
		Extractor: extract.Adapter{
			Client: extractClient,
			Logger: logger.With(zap.String("component", "extract")),
		},
		Reconciler: reconcile.Reconciler{
			Store:     store,
			Publisher: publisher,
			Logger:    logger.With(zap.String("component", "reconcile")),
		},
		Audit:                store,
		Messenger:            msgClient,
		Media:                msgClient,
		Dedupe:               dedupe,
		VerifyToken:          cfg.Messaging.VerifyToken,
		PlatformWebhookToken: cfg.PlatformWebhookToken,
		Logger:               logger.With(zap.String("component", "pipeline")),
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(api.Deps{
			Orchestrator: orch,
			Idempotency:  idemStore,
			Logger:       logger.With(zap.String("component", "http")),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))

		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	waitForShutdown(logger, server)
}

// newCaches returns the idempotency cache and the message dedupe store.
// Both live in Redis when REDIS_ADDR is set and in process memory otherwise.
func newCaches(ctx context.Context, cfg config.Config, logger *zap.Logger) (idempotency.Store, idempotency.Store, func()) {
	if cfg.Redis.Addr == "" {
		return idempotency.NewMemoryStore(cfg.IdempotencyTTL), idempotency.NewMemoryStore(cfg.Redis.DedupeTTL), func() {}
	}

	idem, err := idempotency.NewRedisStore(ctx, idempotency.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   "vendorsync:idem:",
		TTL:      cfg.IdempotencyTTL,
	})
	if err != nil {
		logger.Fatal("redis init failed", zap.Error(err))
	}
	dedupe := idempotency.NewRedisStoreFromClient(idem.Client(), "vendorsync:msg:", cfg.Redis.DedupeTTL)

	return idem, dedupe, func() { _ = idem.Close() }
}

func newPublisher(cfg config.Config, logger *zap.Logger) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NoopPublisher{}
	}
	p, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		logger.Fatal("kafka init failed", zap.Error(err))
	}
	return p
}

func waitForShutdown(logger *zap.Logger, server *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = server.Shutdown(ctx)
	logger.Info("shutdown complete")
}
