package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tlotliso/sbm-api/internal/application/auth"
	"github.com/tlotliso/sbm-api/internal/application/reporting"
	"github.com/tlotliso/sbm-api/internal/application/usecase"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
	"github.com/tlotliso/sbm-api/internal/infrastructure/memory"
	infrapdf "github.com/tlotliso/sbm-api/internal/infrastructure/pdf"
	"github.com/tlotliso/sbm-api/internal/infrastructure/postgres"
	httpRouter "github.com/tlotliso/sbm-api/internal/interfaces/http"
	"github.com/tlotliso/sbm-api/pkg/config"
	"github.com/tlotliso/sbm-api/pkg/logger"
)

// storage agrupa lo que el backend elegido ofrece a los casos de uso.
type storage interface {
	repository.TxRunner
	repository.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("storage", cfg.Storage).
		Msg("iniciando aplicación")

	ctx := context.Background()
	registry := schema.NewRegistry()

	var store storage
	switch cfg.Storage {
	case config.StorageMemory:
		store = memory.NewStore(registry)
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if cfg.DB.AutoMigrate {
			if err := postgres.Migrate(ctx, pool, registry); err != nil {
				log.Fatal().Err(err).Msg("migración del esquema")
			}
			log.Info().Int("kinds", len(registry.Kinds())).Msg("esquema migrado")
		}
		store = postgres.NewTxRunner(pool, registry)
	}

	entitySvc := usecase.NewEntityService(registry, store, log, usecase.WithHasher(auth.BcryptHasher{}))
	authUC := auth.NewAuthUseCase(entitySvc, store, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	statementUC := reporting.NewStatementUseCase(entitySvc, infrapdf.NewMarotoPDFGenerator())

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
		ErrorHandler: httpRouter.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestIDMiddleware())
	app.Use(httpRouter.RequestLogger(log.Component("http")))

	// Swagger UI: http://localhost:<port>/docs
	if cfg.App.DocsPath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: cfg.App.DocsPath,
			Path:     "docs",
			Title:    "SBM API",
		}))
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		Entities:    entitySvc,
		AuthUC:      authUC,
		StatementUC: statementUC,
		Pinger:      store,
		JWTSecret:   cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
