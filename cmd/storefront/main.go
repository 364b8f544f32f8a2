package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/handlers"
	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/platform/config"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/platform/idempotency"
	"github.com/hanko-field/storefront/internal/platform/jobs"
	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/platform/secrets"
	"github.com/hanko-field/storefront/internal/repositories"
	firestoreRepo "github.com/hanko-field/storefront/internal/repositories/firestore"
	"github.com/hanko-field/storefront/internal/repositories/memory"
	"github.com/hanko-field/storefront/internal/services"
)

const serviceName = "storefront-api"

func main() {
	issueFor := flag.String("issue-token", "", "print a signed bearer token for the given user id and exit")
	issueRoles := flag.String("roles", "", "comma separated roles for -issue-token")
	flag.Parse()

	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	resolver := newSecretResolver(logger)
	defer func() {
		if err := resolver.Close(); err != nil {
			logger.Warn("secret resolver close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(resolver))
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	tokens, err := auth.NewHMACTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal("failed to initialise token verifier", zap.Error(err))
	}
	if uid := strings.TrimSpace(*issueFor); uid != "" {
		token, err := tokens.Issue(auth.Identity{UID: uid, Roles: splitRoles(*issueRoles)})
		if err != nil {
			logger.Fatal("failed to issue token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	registry, err := newRegistry(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()

	checks := []handlers.DependencyCheck{{
		Name:    cfg.Repository.Backend,
		Timeout: 1500 * time.Millisecond,
		Check:   registry.Ping,
	}}

	var events services.OrderEventPublisher
	if topicID := strings.TrimSpace(cfg.Events.Topic); topicID != "" {
		client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topic := client.Topic(topicID)
		publisher, err := jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		defer publisher.Stop()
		events = publisher
		checks = append(checks, handlers.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", topicID)
				}
				return nil
			},
		})
	}

	var idemStore idempotency.Store = idempotency.NewMemoryStore()
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
		store, err := idempotency.NewRedisStore(redisClient, cfg.Redis.KeyPrefix)
		if err != nil {
			logger.Fatal("failed to initialise idempotency store", zap.Error(err))
		}
		idemStore = store
		checks = append(checks, handlers.DependencyCheck{
			Name:    "redis",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	} else {
		logger.Warn("redis not configured; idempotency records are kept in process memory")
	}
	idempotencyMiddleware := idempotency.Middleware(
		idemStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	newID := func() string { return ulid.Make().String() }
	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      registry.Orders(),
		Clock:       time.Now,
		IDGenerator: newID,
		Events:      events,
		Logger:      observability.NewEventLogger(logger, "orders"),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}
	addressService, err := services.NewAddressService(services.AddressServiceDeps{
		Addresses:   registry.Addresses(),
		Clock:       time.Now,
		IDGenerator: newID,
		Logger:      observability.NewEventLogger(logger, "addresses"),
	})
	if err != nil {
		logger.Fatal("failed to initialise address service", zap.Error(err))
	}

	authenticator := auth.NewAuthenticator(tokens)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService,
		handlers.WithCreateOrderMiddleware(idempotencyMiddleware))
	addressHandlers := handlers.NewAddressHandlers(addressService)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfoFromEnv(startedAt)),
		handlers.WithHealthChecks(checks...),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(serviceName),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAPIMiddlewares(authenticator.RequireAuth()),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAddressRoutes(addressHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr), zap.String("backend", cfg.Repository.Backend))
	go func() {
		serverLogger.Info("storefront api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretResolver(logger *zap.Logger) *secrets.Resolver {
	project := strings.TrimSpace(os.Getenv("STOREFRONT_SECRET_PROJECT_ID"))
	if project == "" {
		project = strings.TrimSpace(os.Getenv("STOREFRONT_FIRESTORE_PROJECT_ID"))
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
	}
	if path := strings.TrimSpace(os.Getenv("STOREFRONT_SECRET_FALLBACK_FILE")); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	return secrets.NewResolver(opts...)
}

func newRegistry(ctx context.Context, cfg config.Config) (repositories.Registry, error) {
	if cfg.Repository.Backend == config.RepositoryBackendMemory {
		return memory.NewRegistry(), nil
	}
	provider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := provider.Client(ctx); err != nil {
		return nil, err
	}
	return firestoreRepo.NewRegistry(provider)
}

func buildInfoFromEnv(started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(os.Getenv("STOREFRONT_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("STOREFRONT_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(os.Getenv("STOREFRONT_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func splitRoles(raw string) []string {
	var roles []string
	for _, role := range strings.Split(raw, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
