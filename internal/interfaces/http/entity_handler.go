package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/tlotliso/sbm-api/internal/application/dto"
	"github.com/tlotliso/sbm-api/internal/application/usecase"
	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
	"github.com/tlotliso/sbm-api/internal/infrastructure/metrics"
)

var errInvalidBody = errors.New("el cuerpo debe ser un objeto JSON")

// EntityHandler CRUD genérico sobre /api/:kind para todos los tipos del registro salvo User.
type EntityHandler struct {
	svc *usecase.EntityService
}

// NewEntityHandler construye el handler.
func NewEntityHandler(svc *usecase.EntityService) *EntityHandler {
	return &EntityHandler{svc: svc}
}

// Create godoc
// @Summary      Crear entidad
// @Tags         entities
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path  string  true  "recurso (customers, tasks, financial-records, ...)"
// @Param        body  body  object  true  "campos de la entidad"
// @Success      201   {object}  object
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/{kind} [post]
func (h *EntityHandler) Create(c *fiber.Ctx) error {
	kind, err := h.kind(c)
	if err != nil {
		return writeError(c, err)
	}
	payload, err := decodePayload(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: CodeInvalidBody, Message: err.Error()})
	}
	rec, err := h.svc.Create(c.UserContext(), kind, payload, GetUserID(c))
	observe(kind, "create", err)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// List godoc
// @Summary      Listar entidades
// @Description  Cualquier query param distinto de limit/offset se aplica como filtro de igualdad (valor "null" = IS NULL).
// @Tags         entities
// @Produce      json
// @Security     BearerAuth
// @Param        kind    path   string  true   "recurso"
// @Param        limit   query  int     false  "máximo 100 (default 20)"
// @Param        offset  query  int     false  "desplazamiento"
// @Success      200     {object}  dto.ListResponse
// @Failure      400     {object}  dto.ErrorResponse
// @Router       /api/{kind} [get]
func (h *EntityHandler) List(c *fiber.Ctx) error {
	kind, err := h.kind(c)
	if err != nil {
		return writeError(c, err)
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: CodeValidation, Message: "limit/offset inválidos"})
	}
	page.DefaultPage()
	filter := repository.ListFilter{Equals: map[string]any{}, Limit: page.Limit, Offset: page.Offset}
	for name, raw := range c.Queries() {
		if name == "limit" || name == "offset" {
			continue
		}
		v, err := h.svc.Registry().ParseQueryValue(kind, name, raw)
		if err != nil {
			return writeError(c, err)
		}
		filter.Equals[name] = v
	}
	filter = filter.Normalized()

	items, err := h.svc.List(c.UserContext(), kind, GetUserID(c), filter)
	observe(kind, "list", err)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: filter.Limit, Offset: filter.Offset, Count: len(items)},
	})
}

// GetByID godoc
// @Summary      Obtener entidad por ID
// @Tags         entities
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path  string  true  "recurso"
// @Param        id    path  int     true  "ID"
// @Success      200   {object}  object
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/{kind}/{id} [get]
func (h *EntityHandler) GetByID(c *fiber.Ctx) error {
	kind, id, err := h.kindAndID(c)
	if err != nil {
		return writeError(c, err)
	}
	rec, err := h.svc.Get(c.UserContext(), kind, id, GetUserID(c))
	observe(kind, "get", err)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(rec)
}

// Update godoc
// @Summary      Actualizar entidad (parcial)
// @Tags         entities
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path  string  true  "recurso"
// @Param        id    path  int     true  "ID"
// @Param        body  body  object  true  "campos a modificar"
// @Success      200   {object}  object
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/{kind}/{id} [patch]
func (h *EntityHandler) Update(c *fiber.Ctx) error {
	kind, id, err := h.kindAndID(c)
	if err != nil {
		return writeError(c, err)
	}
	payload, err := decodePayload(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: CodeInvalidBody, Message: err.Error()})
	}
	rec, err := h.svc.Update(c.UserContext(), kind, id, payload, GetUserID(c))
	observe(kind, "update", err)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(rec)
}

// Delete godoc
// @Summary      Eliminar entidad
// @Description  Falla con 409 si alguna referencia obligatoria apunta a la fila; las anulables se ponen a null.
// @Tags         entities
// @Security     BearerAuth
// @Param        kind  path  string  true  "recurso"
// @Param        id    path  int     true  "ID"
// @Success      204
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/{kind}/{id} [delete]
func (h *EntityHandler) Delete(c *fiber.Ctx) error {
	kind, id, err := h.kindAndID(c)
	if err != nil {
		return writeError(c, err)
	}
	err = h.svc.Delete(c.UserContext(), kind, id, GetUserID(c))
	observe(kind, "delete", err)
	if err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// kind resuelve el segmento :kind. Los usuarios solo se gestionan por /api/users/me.
func (h *EntityHandler) kind(c *fiber.Ctx) (schema.Kind, error) {
	resource := c.Params("kind")
	kind, ok := h.svc.Registry().KindForResource(resource)
	if !ok || kind == schema.KindUser {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownKind, resource)
	}
	return kind, nil
}

func (h *EntityHandler) kindAndID(c *fiber.Ctx) (schema.Kind, int64, error) {
	kind, err := h.kind(c)
	if err != nil {
		return "", 0, err
	}
	id, err := parseID(c.Params("id"))
	if err != nil {
		return "", 0, &domain.NotFoundError{Kind: string(kind), ID: 0}
	}
	return kind, id, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id inválido %q", raw)
	}
	return id, nil
}

// decodePayload decodifica un objeto JSON conservando los números como json.Number.
func decodePayload(body []byte) (schema.Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, errInvalidBody
	}
	if dec.More() {
		return nil, errInvalidBody
	}
	return schema.Payload(raw), nil
}

// observe cuenta la operación con su resultado.
func observe(kind schema.Kind, op string, err error) {
	result := "ok"
	if err != nil {
		_, body := mapError(err)
		result = body.Code
	}
	metrics.EntityOperationsTotal.WithLabelValues(string(kind), op, result).Inc()
}
