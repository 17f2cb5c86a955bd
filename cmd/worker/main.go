package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"academyCards/internal/config"
	"academyCards/internal/database"
	"academyCards/internal/metrics"
	"academyCards/internal/pdf"
	"academyCards/internal/people"
	"academyCards/internal/render"
	"academyCards/internal/repository"
	"academyCards/internal/sheet"
	"academyCards/internal/storage"
	"academyCards/internal/tasks"
	"academyCards/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	renderer := render.NewRenderer(logger, render.Options{
		Locale:   cfg.Render.Locale,
		QRSizePx: cfg.Render.QRSizePx,
		Assets:   storage.NewResolver(storageClient),
	})
	deps := &worker.Deps{
		DB:         db,
		Templates:  repository.NewGormStore(db),
		People:     people.NewStore(db),
		Storage:    storageClient,
		Notifier:   worker.NewRedisNotifier(redisClient),
		Renderer:   renderer,
		Rasterizer: render.NewRasterizer(logger, cfg.Render.FontsDir),
		Composer:   sheet.NewComposer(logger, renderer),
		PDF:        pdf.NewChromium(),
		Logger:     logger,
	}

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeCardExport, worker.NewCardExportHandler(deps))
	mux.Handle(tasks.TypeSheetPrint, worker.NewSheetPrintHandler(deps))
	mux.Handle(tasks.TypeTemplatePreview, worker.NewTemplatePreviewHandler(deps))

	if cfg.Worker.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				logger.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	logger.Info("worker service started", slog.String("redis_addr", redisAddr))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
