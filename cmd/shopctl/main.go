// Command shopctl is the storefront client. It keeps the cart, wishlist, session and checkout
// state in a local blob store and talks to the storefront API for addresses and orders.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/hanko-field/storefront/internal/orderapi"
	"github.com/hanko-field/storefront/internal/platform/config"
	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/platform/storage"
	"github.com/hanko-field/storefront/internal/storefront"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "shopctl:", describeError(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	logger, err := observability.NewLoggerWithLevel(os.Getenv("SHOPCTL_LOG_LEVEL"), "stderr")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	blobs, closeBlobs, err := openBlobStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeBlobs()

	api, err := orderapi.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, orderapi.WithLoginURL(cfg.LoginURL))
	if err != nil {
		return err
	}

	store, err := storefront.NewStore(ctx, storefront.StoreDeps{
		Blobs:     blobs,
		Addresses: api,
		Orders:    api,
		LoginURL:  cfg.LoginURL,
		Logger:    storefront.Logger(observability.NewEventLogger(logger, "shopctl")),
	})
	if err != nil {
		return err
	}

	return newApp(store, api, os.Stdout).dispatch(ctx, args)
}

func openBlobStore(cfg config.ClientStorageConfig) (storage.Store, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.StorageBackendMemory:
		return storage.NewMemoryStore(), noop, nil
	case config.StorageBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		store, err := storage.NewRedisStore(client, cfg.Namespace)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return store, func() { _ = client.Close() }, nil
	default:
		store, err := storage.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	}
}

func describeError(err error) string {
	var authErr *storefront.AuthRequiredError
	if errors.As(err, &authErr) {
		msg := "not signed in; run `shopctl login`"
		if strings.TrimSpace(authErr.LoginURL) != "" {
			msg += " (obtain a token at " + authErr.LoginURL + ")"
		}
		return msg
	}
	return err.Error()
}
