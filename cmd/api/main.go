package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"academyCards/internal/api"
	"academyCards/internal/config"
	"academyCards/internal/database"
	"academyCards/internal/people"
	"academyCards/internal/render"
	"academyCards/internal/repository"
	"academyCards/internal/sheet"
	"academyCards/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	log.Printf("api bootstrapped with db host=%s port=%d db=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Printf("database connection ready")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	templates := repository.NewGormStore(db)
	slot := repository.NewRedisSlot(redisClient)
	peopleStore := people.NewStore(db)

	renderer := render.NewRenderer(logger, render.Options{
		Locale:   cfg.Render.Locale,
		QRSizePx: cfg.Render.QRSizePx,
		Assets:   storage.NewResolver(storageClient),
	})
	rasterizer := render.NewRasterizer(logger, cfg.Render.FontsDir)
	composer := sheet.NewComposer(logger, renderer)

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Handlers{
		Templates: api.NewTemplateHandler(templates, slot, asynqClient),
		Cards: api.NewCardHandler(db, templates, peopleStore, renderer, rasterizer, asynqClient, api.NewVerifyLimiter(redisClient, cfg.API.VerifyLimitPerHour), api.CardOptions{
			DesignerPath: cfg.API.DesignerPath,
			DefaultScale: cfg.Render.DefaultScale,
		}),
		Print:  api.NewPrintHandler(db, templates, peopleStore, composer, asynqClient, printSettings(cfg.Print)),
		Assets: api.NewAssetHandler(storageClient, api.ScannerFor(cfg.Clamd.Addr), logger),
		People: api.NewPeopleHandler(peopleStore),
		Ws:     api.NewWsHandler(redisClient, logger, cfg.API.OriginList()),
	}, cfg.API.InternalSecret)

	if cfg.Clamd.Addr == "" {
		logger.Warn("clamd address not configured, uploads are not scanned")
	}

	address := fmt.Sprintf(":%d", cfg.API.Port)
	log.Printf("api listening on %s", address)

	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}

func printSettings(p config.PrintConfig) sheet.Settings {
	s := sheet.DefaultSettings()
	s.SheetWidthMM = p.SheetWidthMM
	s.SheetHeightMM = p.SheetHeightMM
	s.MarginMM = p.MarginMM
	s.SpacingMM = p.SpacingMM
	return s
}
