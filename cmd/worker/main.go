package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/framewise/rife-interpolation-service/internal/infra/config"
	"github.com/framewise/rife-interpolation-service/internal/infra/email"
	"github.com/framewise/rife-interpolation-service/internal/infra/ffmpeg"
	"github.com/framewise/rife-interpolation-service/internal/infra/metrics"
	miniostorage "github.com/framewise/rife-interpolation-service/internal/infra/minio"
	"github.com/framewise/rife-interpolation-service/internal/infra/postgres"
	"github.com/framewise/rife-interpolation-service/internal/infra/rabbitmq"
	"github.com/framewise/rife-interpolation-service/internal/infra/rife"
	"github.com/framewise/rife-interpolation-service/internal/infra/tracing"
	"github.com/framewise/rife-interpolation-service/internal/usecase"
	"github.com/framewise/rife-interpolation-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting rife-interpolation-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
		ResultBucket: cfg.MinIOResultBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub, cfg.RabbitMQStatusQueue)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// GPU runtime and interpolation kernel
	runtime, err := rife.AcquireRuntime(cfg.RIFEBinary, cfg.GPUID, cfg.GPUQueueCount)
	fatalOnErr(err, "acquire rife runtime")
	defer runtime.Release()

	interp, err := rife.NewInterpolator(runtime, rife.Config{
		ModelDir: cfg.RIFEModelDir,
		UHD:      cfg.RIFEUHD,
		TTA:      cfg.RIFETTA,
		TempDir:  cfg.TempDir,
	}, log)
	fatalOnErr(err, "create interpolator")

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	extractor := ffmpeg.NewExtractor(cfg.FrameFormat, log)
	assembler := ffmpeg.NewAssembler(log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use case
	uc := usecase.NewInterpolateVideoUseCase(
		repo, storage, extractor, assembler, interp,
		statusPub, dlqPub, notifier,
		log,
		usecase.InterpolateVideoConfig{
			TempDir:          cfg.TempDir,
			MaxRetries:       cfg.MaxRetries,
			FrameWorkers:     cfg.FrameWorkers,
			Multiplier:       cfg.Multiplier,
			Divisor:          cfg.Divisor,
			Lanes:            cfg.GPULanes,
			SceneChangeSkip:  cfg.SceneChangeSkip,
			SceneThreshold:   cfg.SceneThreshold,
			QualitySkip:      cfg.QualitySkip,
			QualityThreshold: cfg.QualityThreshold,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:             cfg.RabbitMQURL,
		Queue:           cfg.RabbitMQInterpolateQueue,
		Exchange:        cfg.RabbitMQExchange,
		DLQ:             cfg.RabbitMQDLQ,
		StatusQueue:     cfg.RabbitMQStatusQueue,
		RequestRoutekey: cfg.RabbitMQInterpolateQueue,
		StatusRoutekey:  cfg.RabbitMQStatusQueue,
		Prefetch:        cfg.RabbitMQPrefetch,
		WorkerCount:     cfg.WorkerCount,
		BaseDelayMs:     cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("rife-interpolation-service started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("rife-interpolation-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
