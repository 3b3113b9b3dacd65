package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

// Límites de paginación del listado.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListFilter filtros de igualdad por campo persistido (valor canónico; nil = IS NULL)
// más paginación. Los resultados se ordenan por id ascendente.
type ListFilter struct {
	Equals map[string]any
	// In restringe un campo entero a un conjunto de ids (vacío = ninguna fila).
	In     map[string][]int64
	Limit  int
	Offset int
}

// Normalized devuelve el filtro con límite y offset acotados.
func (f ListFilter) Normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches indica si el record cumple todos los filtros de igualdad.
func (f ListFilter) Matches(rec schema.Record) bool {
	for name, want := range f.Equals {
		if !ValuesEqual(rec[name], want) {
			return false
		}
	}
	for name, ids := range f.In {
		v, ok := rec.Int(name)
		if !ok || !containsID(ids, v) {
			return false
		}
	}
	return true
}

// EntityTx puerto de almacenamiento genérico atado a una transacción.
// Las lecturas no aplican el ámbito del dueño; eso lo decide el servicio.
type EntityTx interface {
	// Get devuelve la fila persistida; NotFoundError si no existe.
	Get(ctx context.Context, kind schema.Kind, id int64) (schema.Record, error)
	// GetForUpdate igual que Get pero bloquea la fila hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, kind schema.Kind, id int64) (schema.Record, error)
	List(ctx context.Context, kind schema.Kind, filter ListFilter) ([]schema.Record, error)
	// Insert asigna id y devuelve la fila almacenada.
	Insert(ctx context.Context, kind schema.Kind, rec schema.Record) (schema.Record, error)
	// Update aplica los campos de patch y devuelve la fila resultante.
	Update(ctx context.Context, kind schema.Kind, id int64, patch schema.Record) (schema.Record, error)
	Delete(ctx context.Context, kind schema.Kind, id int64) error
	// FindReferencing ids de kind cuyo campo field apunta a target.
	FindReferencing(ctx context.Context, kind schema.Kind, field string, target int64) ([]int64, error)
	// Sum suma un campo decimal sobre las filas que cumplen where (0 si no hay filas).
	Sum(ctx context.Context, kind schema.Kind, field string, where map[string]any) (decimal.Decimal, error)
	Count(ctx context.Context, kind schema.Kind, where map[string]any) (int64, error)
}

// TxRunner ejecuta fn dentro de una única transacción: Commit si fn devuelve nil, Rollback si no.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx EntityTx) error) error
}

// Pinger comprueba la conectividad del almacenamiento y devuelve su hora actual.
type Pinger interface {
	Now(ctx context.Context) (time.Time, error)
}
