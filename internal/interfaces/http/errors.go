package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/tlotliso/sbm-api/internal/application/dto"
	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/infrastructure/metrics"
)

// Códigos de error del cuerpo de respuesta.
const (
	CodeInvalidBody          = "INVALID_BODY"
	CodeValidation           = "VALIDATION"
	CodeUnknownField         = "UNKNOWN_FIELD"
	CodeTypeMismatch         = "TYPE_MISMATCH"
	CodeDanglingReference    = "DANGLING_REFERENCE"
	CodeCrossOwnerReference  = "CROSS_OWNER_REFERENCE"
	CodeReferentialIntegrity = "REFERENTIAL_INTEGRITY"
	CodeDuplicate            = "DUPLICATE"
	CodeNotFound             = "NOT_FOUND"
	CodeUnknownResource      = "UNKNOWN_RESOURCE"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeStorage              = "STORAGE_UNAVAILABLE"
	CodeInternal             = "INTERNAL"
)

// mapError traduce un error de dominio a status HTTP y cuerpo de error.
func mapError(err error) (int, dto.ErrorResponse) {
	var (
		validationErr *domain.ValidationError
		unknownField  *domain.UnknownFieldError
		typeMismatch  *domain.TypeMismatchError
		dangling      *domain.DanglingReferenceError
		crossOwner    *domain.CrossOwnerReferenceError
		integrity     *domain.ReferentialIntegrityError
	)
	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: CodeValidation, Message: err.Error(), Violations: validationErr.Violations}
	case errors.As(err, &unknownField):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: CodeUnknownField, Message: err.Error()}
	case errors.As(err, &typeMismatch):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: CodeTypeMismatch, Message: err.Error()}
	case errors.As(err, &dangling):
		return fiber.StatusUnprocessableEntity, dto.ErrorResponse{Code: CodeDanglingReference, Message: err.Error()}
	case errors.As(err, &crossOwner):
		return fiber.StatusUnprocessableEntity, dto.ErrorResponse{Code: CodeCrossOwnerReference, Message: err.Error()}
	case errors.As(err, &integrity):
		return fiber.StatusConflict, dto.ErrorResponse{Code: CodeReferentialIntegrity, Message: err.Error(), Dependents: integrity.Dependents}
	case errors.Is(err, domain.ErrDuplicate):
		return fiber.StatusConflict, dto.ErrorResponse{Code: CodeDuplicate, Message: err.Error()}
	case errors.Is(err, domain.ErrUnknownKind):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: CodeUnknownResource, Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUserNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, dto.ErrorResponse{Code: CodeUnauthorized, Message: "credenciales inválidas"}
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: CodeValidation, Message: err.Error()}
	case domain.IsRetryable(err):
		return fiber.StatusServiceUnavailable, dto.ErrorResponse{Code: CodeStorage, Message: "almacenamiento no disponible, reintente"}
	}
	return fiber.StatusInternalServerError, dto.ErrorResponse{Code: CodeInternal, Message: "error interno"}
}

// writeError responde con el error mapeado.
func writeError(c *fiber.Ctx, err error) error {
	status, body := mapError(err)
	if body.Code == CodeStorage {
		metrics.StorageErrorsTotal.Inc()
	}
	if status >= fiber.StatusInternalServerError {
		c.Locals(LocalError, err)
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler handler de errores de Fiber: rutas inexistentes, panics recuperados y errores no tratados.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := CodeInternal
		switch fe.Code {
		case fiber.StatusNotFound:
			code = CodeUnknownResource
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
			code = CodeInvalidBody
		case fiber.StatusMethodNotAllowed:
			code = "METHOD_NOT_ALLOWED"
		}
		return c.Status(fe.Code).JSON(dto.ErrorResponse{Code: code, Message: fe.Message})
	}
	return writeError(c, err)
}
