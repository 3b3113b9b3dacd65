package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/tlotliso/sbm-api/internal/application/reporting"
	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

// StatementHandler expone el estado de cuenta de clientes.
type StatementHandler struct {
	uc *reporting.StatementUseCase
}

// NewStatementHandler construye el handler.
func NewStatementHandler(uc *reporting.StatementUseCase) *StatementHandler {
	return &StatementHandler{uc: uc}
}

// DownloadPDF godoc
// @Summary      Estado de cuenta del cliente (PDF)
// @Tags         reports
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id   path  int  true  "ID del cliente"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/customers/{id}/statement.pdf [get]
func (h *StatementHandler) DownloadPDF(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return writeError(c, &domain.NotFoundError{Kind: string(schema.KindCustomer)})
	}
	pdfBytes, filename, err := h.uc.DownloadStatementPDF(c.UserContext(), GetUserID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(pdfBytes)
}
