package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dcastano/framevault-backend/internal/catalog"
	"github.com/dcastano/framevault-backend/internal/purge"
	"github.com/dcastano/framevault-backend/pkg/config"
	"github.com/dcastano/framevault-backend/pkg/db"
	"github.com/dcastano/framevault-backend/pkg/logger"
	"github.com/dcastano/framevault-backend/pkg/metrics"
	"github.com/dcastano/framevault-backend/pkg/pubsub"
	"github.com/dcastano/framevault-backend/pkg/storage/s3"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "purge-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "purge-worker"

	logg = logger.New(logger.Options{
		ServiceName: "purge-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	s3Client, err := s3.NewClient(context.Background(), cfg.S3, logg)
	requireResource(ctx, logg, "s3", err)

	jobMetrics := metrics.NewConsumerMetrics(prometheus.DefaultRegisterer)
	consumer, err := purge.NewConsumer(
		catalog.NewRepository(dbClient.DB()),
		s3Client,
		pubsubClient.PurgeSubscription(),
		jobMetrics,
		logg,
	)
	requireResource(ctx, logg, "purge consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "purge worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "purge worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
