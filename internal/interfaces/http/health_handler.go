package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tlotliso/sbm-api/internal/application/dto"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
)

// HealthHandler comprobaciones de vida y conectividad.
type HealthHandler struct {
	pinger repository.Pinger
}

// NewHealthHandler construye el handler.
func NewHealthHandler(pinger repository.Pinger) *HealthHandler {
	return &HealthHandler{pinger: pinger}
}

// Root godoc
// @Summary      Prueba de conectividad con el almacenamiento
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.RootResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       / [get]
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	now, err := h.pinger.Now(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.RootResponse{Message: "conexión exitosa", Time: now.Format(time.RFC3339)})
}

// Health godoc
// @Summary      Estado del servicio
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.HealthResponse
// @Failure      503  {object}  dto.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	if _, err := h.pinger.Now(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.HealthResponse{Status: "degraded", Storage: "down"})
	}
	return c.JSON(dto.HealthResponse{Status: "ok", Storage: "up"})
}
