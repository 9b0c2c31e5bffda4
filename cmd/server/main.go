package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/closetapp/closet-sync/internal/logging"
	"github.com/closetapp/closet-sync/internal/server/blob"
	"github.com/closetapp/closet-sync/internal/server/config"
	"github.com/closetapp/closet-sync/internal/server/httpapi"
	"github.com/closetapp/closet-sync/internal/server/ratelimit"
	"github.com/closetapp/closet-sync/internal/server/service"
	"github.com/closetapp/closet-sync/internal/server/store"
)

func main() {
	log := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	ctx := context.Background()

	cfg := config.MustLoad()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	remote, blobs, closeStores, err := buildBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	var limiter ratelimit.Limiter
	if cfg.Redis.Enabled {
		limiter = ratelimit.NewRedisLimiter(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.RedisAddress(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
		log.Info(ctx, "rate limiting via redis", "addr", cfg.Redis.RedisAddress())
	} else {
		limiter = ratelimit.NewMemoryLimiter()
	}

	syncSvc := service.NewSyncService(remote, cfg.Quota, log)
	imageSvc := service.NewImageService(blobs, cfg.Quota, log)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Handler:   httpapi.NewHandler(syncSvc, imageSvc, cfg.Quota.MaxImageBytes, log),
		Auth:      httpapi.NewAuthMiddleware(cfg.Auth.JWTSecret),
		Limiter:   limiter,
		RateLimit: cfg.RateLimit,
		Log:       log,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Address(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server listening",
			"addr", cfg.HTTP.Address(), "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info(ctx, "shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildBackends(ctx context.Context, cfg *config.Config, log logging.Logger) (store.RemoteStore, blob.BlobStore, func(), error) {
	noop := func() {}

	switch cfg.Store.Backend {
	case "memory":
		log.Warn(ctx, "using in-memory store; data will not survive a restart")
		return store.NewMemoryStore(), blob.NewMemoryBlobStore(), noop, nil

	case "s3":
		client, err := newS3Client(ctx, cfg.Store)
		if err != nil {
			return nil, nil, nil, err
		}
		return store.NewS3Store(client, cfg.Store.S3Bucket),
			blob.NewS3BlobStore(client, cfg.Store.S3Bucket, cfg.Store.PresignTTL),
			noop, nil

	case "postgres":
		pg, err := store.OpenPostgres(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		// records live in postgres, binaries stay in s3
		client, err := newS3Client(ctx, cfg.Store)
		if err != nil {
			pg.Close()
			return nil, nil, nil, err
		}
		return pg,
			blob.NewS3BlobStore(client, cfg.Store.S3Bucket, cfg.Store.PresignTTL),
			func() { pg.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newS3Client(ctx context.Context, cfg config.StoreConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
