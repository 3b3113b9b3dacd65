// Package validation aplica las reglas de negocio por campo (rangos, enumerados, obligatorios)
// sobre records normalizados. Es puro: nunca consulta el almacenamiento.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

// Validator valida records contra las reglas declaradas en el registro.
type Validator struct {
	registry *schema.Registry
	v        *validator.Validate
	cross    map[schema.Kind][]crossRule
}

// crossRule regla que involucra varios campos del mismo record.
type crossRule struct {
	fields []string
	check  func(rec schema.Record) *domain.FieldViolation
}

// New construye el validador sobre el registro inyectado.
func New(registry *schema.Registry) *Validator {
	return &Validator{
		registry: registry,
		v:        validator.New(),
		cross: map[schema.Kind][]crossRule{
			schema.KindBudget:  {datesInOrder("startDate", "endDate")},
			schema.KindProject: {datesInOrder("startDate", "endDate")},
		},
	}
}

// ValidateCreate valida un record completo de alta. Todas las violaciones se reportan juntas.
func (val *Validator) ValidateCreate(kind schema.Kind, rec schema.Record) error {
	s, ok := val.registry.Schema(kind)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	var out []domain.FieldViolation
	for _, f := range s.Fields {
		if !f.ClientWritable() {
			continue
		}
		out = append(out, val.checkField(f, rec)...)
	}
	out = append(out, val.checkCross(kind, rec, nil)...)
	return result(kind, out)
}

// ValidateUpdate valida solo los campos tocados por patch; las reglas cruzadas se evalúan
// sobre current+patch cuando alguno de sus campos fue tocado.
func (val *Validator) ValidateUpdate(kind schema.Kind, patch, current schema.Record) error {
	s, ok := val.registry.Schema(kind)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	var out []domain.FieldViolation
	for _, f := range s.Fields {
		if !patch.Has(f.Name) {
			continue
		}
		out = append(out, val.checkField(f, patch)...)
	}
	out = append(out, val.checkCross(kind, current.Merge(patch), patch)...)
	return result(kind, out)
}

func (val *Validator) checkField(f schema.Field, rec schema.Record) []domain.FieldViolation {
	value := rec[f.Name]
	if value == nil {
		if f.Required {
			return []domain.FieldViolation{{
				Field:      f.Name,
				Kind:       domain.RequiredFieldMissing,
				Constraint: "required",
				Message:    "es obligatorio",
			}}
		}
		return nil
	}

	var out []domain.FieldViolation
	if f.Type == schema.TypeDecimal && f.NonNegative {
		if d, ok := value.(decimal.Decimal); ok && d.IsNegative() {
			out = append(out, domain.FieldViolation{
				Field:      f.Name,
				Kind:       domain.RangeViolation,
				Constraint: "gte=0",
				Message:    "debe ser mayor o igual a 0",
			})
		}
	}
	if f.Rule == "" {
		return out
	}
	err := val.v.Var(value, f.Rule)
	if err == nil {
		return out
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return append(out, domain.FieldViolation{Field: f.Name, Kind: domain.RangeViolation, Constraint: f.Rule, Message: err.Error()})
	}
	for _, fe := range ve {
		out = append(out, toViolation(f, fe))
	}
	return out
}

func (val *Validator) checkCross(kind schema.Kind, merged, touched schema.Record) []domain.FieldViolation {
	var out []domain.FieldViolation
	for _, rule := range val.cross[kind] {
		if touched != nil && !touchesAny(touched, rule.fields) {
			continue
		}
		if v := rule.check(merged); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func touchesAny(rec schema.Record, fields []string) bool {
	for _, f := range fields {
		if rec.Has(f) {
			return true
		}
	}
	return false
}

// datesInOrder exige end >= start cuando ambos están presentes.
func datesInOrder(start, end string) crossRule {
	return crossRule{
		fields: []string{start, end},
		check: func(rec schema.Record) *domain.FieldViolation {
			s, okS := rec.Time(start)
			e, okE := rec.Time(end)
			if !okS || !okE || !e.Before(s) {
				return nil
			}
			return &domain.FieldViolation{
				Field:      end,
				Kind:       domain.RangeViolation,
				Constraint: "gtefield=" + start,
				Message:    fmt.Sprintf("debe ser posterior o igual a %s (%s)", start, s.Format(time.DateOnly)),
			}
		},
	}
}

// toViolation traduce un FieldError de validator al tipo de violación del dominio.
func toViolation(f schema.Field, fe validator.FieldError) domain.FieldViolation {
	constraint := fe.Tag()
	if fe.Param() != "" {
		constraint += "=" + fe.Param()
	}
	v := domain.FieldViolation{Field: f.Name, Constraint: constraint}
	switch fe.Tag() {
	case "required":
		v.Kind = domain.RequiredFieldMissing
		v.Message = "es obligatorio"
	case "oneof":
		v.Kind = domain.EnumViolation
		v.Message = "debe ser uno de: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		v.Kind = domain.RangeViolation
		if f.Type == schema.TypeString {
			v.Message = "debe tener al menos " + fe.Param() + " caracteres"
		} else {
			v.Message = "debe ser mayor o igual a " + fe.Param()
		}
	case "max", "lte":
		v.Kind = domain.RangeViolation
		if f.Type == schema.TypeString {
			v.Message = "debe tener como máximo " + fe.Param() + " caracteres"
		} else {
			v.Message = "debe ser menor o igual a " + fe.Param()
		}
	default:
		v.Kind = domain.RangeViolation
		v.Message = "no cumple la regla " + constraint
	}
	return v
}

func result(kind schema.Kind, violations []domain.FieldViolation) error {
	if len(violations) == 0 {
		return nil
	}
	return &domain.ValidationError{Kind: string(kind), Violations: violations}
}
