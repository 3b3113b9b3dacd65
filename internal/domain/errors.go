package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound         = errors.New("recurso no encontrado")
	ErrUserNotFound     = errors.New("usuario no encontrado")
	ErrUnknownKind      = errors.New("tipo de entidad desconocido")
	ErrInvalidInput     = errors.New("entrada inválida")
	ErrInvalidReference = errors.New("referencia inválida")
	ErrDuplicate        = errors.New("recurso duplicado")
	ErrUnauthorized     = errors.New("no autorizado")
	ErrForbidden        = errors.New("acceso denegado")
	ErrConflict         = errors.New("conflicto con el estado actual")
	ErrStorage          = errors.New("error de almacenamiento")
)

// UnknownFieldError campo no declarado (o no escribible por el cliente) para el tipo de entidad.
type UnknownFieldError struct {
	Kind  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s: campo desconocido %q", e.Kind, e.Field)
}

func (e *UnknownFieldError) Is(target error) bool { return target == ErrInvalidInput }

// TypeMismatchError el valor recibido no corresponde al tipo declarado del campo.
type TypeMismatchError struct {
	Kind     string
	Field    string
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s.%s: se esperaba %s, se recibió %s", e.Kind, e.Field, e.Expected, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrInvalidInput }

// ViolationKind clasifica una violación de regla de campo.
type ViolationKind string

const (
	RangeViolation       ViolationKind = "RANGE_VIOLATION"
	EnumViolation        ViolationKind = "ENUM_VIOLATION"
	RequiredFieldMissing ViolationKind = "REQUIRED_FIELD_MISSING"
)

// FieldViolation violación de una regla sobre un campo concreto.
type FieldViolation struct {
	Field      string        `json:"field"`
	Kind       ViolationKind `json:"kind"`
	Constraint string        `json:"constraint,omitempty"`
	Message    string        `json:"message"`
}

// ValidationError agrupa todas las violaciones detectadas en un payload.
type ValidationError struct {
	Kind       string
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return fmt.Sprintf("%s: validación fallida (%s)", e.Kind, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Has indica si existe una violación del tipo dado sobre el campo.
func (e *ValidationError) Has(field string, kind ViolationKind) bool {
	for _, v := range e.Violations {
		if v.Field == field && v.Kind == kind {
			return true
		}
	}
	return false
}

// DanglingReferenceError la clave foránea apunta a una fila inexistente.
type DanglingReferenceError struct {
	Kind   string
	Field  string
	Target string
	ID     int64
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s.%s: %s %d no existe", e.Kind, e.Field, e.Target, e.ID)
}

func (e *DanglingReferenceError) Is(target error) bool { return target == ErrInvalidReference }

// CrossOwnerReferenceError la clave foránea apunta a una fila de otro usuario.
type CrossOwnerReferenceError struct {
	Kind   string
	Field  string
	Target string
	ID     int64
}

func (e *CrossOwnerReferenceError) Error() string {
	return fmt.Sprintf("%s.%s: %s %d pertenece a otro usuario", e.Kind, e.Field, e.Target, e.ID)
}

func (e *CrossOwnerReferenceError) Is(target error) bool { return target == ErrInvalidReference }

// Dependent filas que bloquean un borrado a través de una referencia obligatoria.
type Dependent struct {
	Kind  string `json:"kind"`
	Field string `json:"field"`
	Count int    `json:"count"`
}

// ReferentialIntegrityError el borrado está bloqueado por referencias obligatorias.
type ReferentialIntegrityError struct {
	Kind       string
	ID         int64
	Dependents []Dependent
}

func (e *ReferentialIntegrityError) Error() string {
	parts := make([]string, 0, len(e.Dependents))
	for _, d := range e.Dependents {
		parts = append(parts, fmt.Sprintf("%d %s.%s", d.Count, d.Kind, d.Field))
	}
	return fmt.Sprintf("%s %d referenciado por %s", e.Kind, e.ID, strings.Join(parts, ", "))
}

func (e *ReferentialIntegrityError) Is(target error) bool { return target == ErrConflict }

// NotFoundError la fila no existe o no pertenece al usuario.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d no encontrado", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// UniqueConstraintError valor duplicado en un campo único (User.username).
type UniqueConstraintError struct {
	Kind  string
	Field string
	Value string
}

func (e *UniqueConstraintError) Error() string {
	return fmt.Sprintf("%s.%s: el valor %q ya existe", e.Kind, e.Field, e.Value)
}

func (e *UniqueConstraintError) Is(target error) bool { return target == ErrDuplicate }

// StorageError fallo del almacenamiento (conexión, abort de transacción). Es el único error reintentable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// IsRetryable indica si el llamador puede reintentar la operación sin corregir la entrada.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}
