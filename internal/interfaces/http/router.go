package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/tlotliso/sbm-api/internal/application/auth"
	"github.com/tlotliso/sbm-api/internal/application/reporting"
	"github.com/tlotliso/sbm-api/internal/application/usecase"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
	"github.com/tlotliso/sbm-api/internal/infrastructure/metrics"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Entities    *usecase.EntityService
	AuthUC      *auth.AuthUseCase
	StatementUC *reporting.StatementUseCase
	Pinger      repository.Pinger
	JWTSecret   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	healthHandler := NewHealthHandler(deps.Pinger)
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.Health)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	protected.Get("/users/me", authHandler.Me)

	// Reportes: registrado antes que /:kind/:id
	statementHandler := NewStatementHandler(deps.StatementUC)
	protected.Get("/customers/:id/statement.pdf", statementHandler.DownloadPDF)

	// CRUD genérico por recurso
	entityHandler := NewEntityHandler(deps.Entities)
	protected.Post("/:kind", entityHandler.Create)
	protected.Get("/:kind", entityHandler.List)
	protected.Get("/:kind/:id", entityHandler.GetByID)
	protected.Patch("/:kind/:id", entityHandler.Update)
	protected.Delete("/:kind/:id", entityHandler.Delete)
}
