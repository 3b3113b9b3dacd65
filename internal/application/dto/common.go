package dto

import (
	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

// PageRequest paginación para listados.
type PageRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// DefaultPage aplica valores por defecto si Limit/Offset son cero.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// ListResponse listado paginado de entidades.
type ListResponse struct {
	Items []schema.Record `json:"items"`
	Page  PageResponse    `json:"page"`
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code       string                  `json:"code"`
	Message    string                  `json:"message"`
	Violations []domain.FieldViolation `json:"violations,omitempty"`
	Dependents []domain.Dependent      `json:"dependents,omitempty"`
}

// RootResponse respuesta de la comprobación de conectividad.
type RootResponse struct {
	Message string `json:"message"`
	Time    string `json:"time"`
}

// HealthResponse estado del servicio.
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}
