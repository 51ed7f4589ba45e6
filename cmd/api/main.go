package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"

	"github.com/haulstack/fuellens-api/internal/archive"
	"github.com/haulstack/fuellens-api/internal/config"
	"github.com/haulstack/fuellens-api/internal/fieldmap"
	"github.com/haulstack/fuellens-api/internal/handlers"
	"github.com/haulstack/fuellens-api/internal/logger"
	"github.com/haulstack/fuellens-api/internal/middleware"
	"github.com/haulstack/fuellens-api/internal/runs"
	"github.com/haulstack/fuellens-api/internal/services"
	"github.com/haulstack/fuellens-api/internal/store"
	"github.com/haulstack/fuellens-api/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		l := logger.New("info")
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(cfg.LogLevel)
	ctx := context.Background()

	pool, err := store.Connect(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConnections))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().Msg("connected to database")

	transactions := store.NewTransactions(pool)
	employees := store.NewEmployees(pool)

	// Field mapping: load the persisted form, falling back to defaults.
	fields := fieldmap.LoadFile(cfg.FieldMapPath)
	saveFieldMap := func(m *fieldmap.Map) error {
		return m.SaveFile(cfg.FieldMapPath)
	}

	parser := services.NewRecordParser(log)
	importer := services.NewImporter(transactions, employees, parser, log)
	validator := services.NewFileValidator(cfg.MaxUploadBytes)
	registry := runs.NewRegistry()

	var fileArchive handlers.FileArchive
	if cfg.StagingEnabled() {
		a, err := archive.New(ctx, cfg.S3Bucket, cfg.S3Region, cfg.AWSEndpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize file archive")
		}
		fileArchive = a
		log.Info().Str("bucket", cfg.S3Bucket).Msg("file staging enabled")
	}

	importsHandler := handlers.NewImportsHandler(importer, registry, fields, validator, fileArchive, log)
	fieldMapHandler := handlers.NewFieldMapHandler(fields, saveFieldMap, log)
	transactionsHandler := handlers.NewTransactionsHandler(transactions)

	app := fiber.New(fiber.Config{
		AppName:      "fuellens API v1.0",
		BodyLimit:    int(cfg.MaxUploadBytes) + 1024*1024,
		ErrorHandler: utils.ErrorHandler,
	})

	app.Use(middleware.CORS(cfg.CORSOrigins))

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "fuellens-api",
		})
	})

	v1 := app.Group("/v1")
	if cfg.AuthEnabled() {
		v1 = app.Group("/v1", middleware.ClerkAuth(cfg.ClerkSecretKey))
	} else {
		log.Warn().Msg("CLERK_SECRET_KEY not set, API auth disabled")
	}

	v1.Get("/imports", importsHandler.ListImports)
	v1.Post("/imports", importsHandler.StartImport)
	v1.Get("/imports/presigned-url", importsHandler.GetPresignedURL)
	v1.Get("/imports/:id", importsHandler.GetImport)
	v1.Post("/imports/:id/cancel", importsHandler.CancelImport)

	v1.Get("/fieldmap", fieldMapHandler.GetFieldMap)
	v1.Put("/fieldmap", fieldMapHandler.UpdateFieldMap)
	v1.Post("/fieldmap/reset", fieldMapHandler.ResetFieldMap)

	v1.Get("/transactions", transactionsHandler.GetTransactions)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info().Str("addr", addr).Msg("fuellens API listening")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
