// Package derived recalcula los campos agregados (totales y contadores de Customer)
// a partir del estado almacenado.
package derived

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

// Reader lecturas agregadas necesarias para el recálculo.
type Reader interface {
	GetForUpdate(ctx context.Context, kind schema.Kind, id int64) (schema.Record, error)
	Sum(ctx context.Context, kind schema.Kind, field string, where map[string]any) (decimal.Decimal, error)
	Count(ctx context.Context, kind schema.Kind, where map[string]any) (int64, error)
}

// Change mutación ya persistida. Old es nil en altas; New es nil en bajas.
type Change struct {
	Kind schema.Kind
	Old  schema.Record
	New  schema.Record
}

// FieldUpdate nuevo valor de un campo derivado.
type FieldUpdate struct {
	Kind  schema.Kind
	ID    int64
	Field string
	Value any
}

// Aggregator campo de Target calculado a partir de las filas de Source que lo referencian por Via.
// El valor se recalcula completo en cada cambio de Source: una escritura directa del cliente
// sobre el campo se pierde en el siguiente recálculo.
type Aggregator struct {
	Source schema.Kind
	Via    string
	Target schema.Kind
	Field  string
	// Inputs campos de Source que alteran el agregado además de Via.
	Inputs  []string
	Compute func(ctx context.Context, r Reader, targetID int64) (any, error)
}

// Engine conjunto de agregadores.
type Engine struct {
	aggregators []Aggregator
}

// NewEngine motor con los agregados de Customer. Department.headcount lo fija el cliente.
func NewEngine() *Engine {
	return &Engine{aggregators: []Aggregator{
		{
			Source:  schema.KindFinancialRecord,
			Via:     "customerId",
			Target:  schema.KindCustomer,
			Field:   "totalSales",
			Inputs:  []string{"type", "amount"},
			Compute: sumByType(schema.FinancialPayment),
		},
		{
			Source:  schema.KindFinancialRecord,
			Via:     "customerId",
			Target:  schema.KindCustomer,
			Field:   "totalPurchases",
			Inputs:  []string{"type", "amount"},
			Compute: sumByType(schema.FinancialExpense),
		},
		{
			Source: schema.KindComplaint,
			Via:    "customerId",
			Target: schema.KindCustomer,
			Field:  "complaintCount",
			Compute: func(ctx context.Context, r Reader, id int64) (any, error) {
				return r.Count(ctx, schema.KindComplaint, map[string]any{"customerId": id})
			},
		},
	}}
}

func sumByType(recordType string) func(ctx context.Context, r Reader, id int64) (any, error) {
	return func(ctx context.Context, r Reader, id int64) (any, error) {
		return r.Sum(ctx, schema.KindFinancialRecord, "amount", map[string]any{
			"customerId": id,
			"type":       recordType,
		})
	}
}

// Target fila destino de un recálculo.
type Target struct {
	Kind schema.Kind
	ID   int64
}

// Targets filas cuyo agregado depende del cambio (destino viejo y nuevo cuando la referencia cambia),
// ordenadas para bloquearlas siempre en el mismo orden.
func (e *Engine) Targets(change Change) []Target {
	seen := map[Target]struct{}{}
	for _, agg := range e.aggregators {
		if agg.Source != change.Kind || !agg.affected(change) {
			continue
		}
		for _, rec := range []schema.Record{change.Old, change.New} {
			if rec == nil {
				continue
			}
			if id, ok := rec.Ref(agg.Via); ok {
				seen[Target{Kind: agg.Target, ID: id}] = struct{}{}
			}
		}
	}
	out := make([]Target, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// affected indica si el cambio toca la referencia o algún campo de entrada.
func (a Aggregator) affected(change Change) bool {
	if change.Old == nil || change.New == nil {
		return true
	}
	for _, name := range append([]string{a.Via}, a.Inputs...) {
		if !repository.ValuesEqual(change.Old[name], change.New[name]) {
			return true
		}
	}
	return false
}

// Lock bloquea las filas destino del cambio antes de escribirlo, en el orden de Targets.
// Los destinos inexistentes se ignoran.
func (e *Engine) Lock(ctx context.Context, r Reader, change Change) error {
	for _, t := range e.Targets(change) {
		if _, err := r.GetForUpdate(ctx, t.Kind, t.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Recompute bloquea cada fila destino y recalcula sus agregados desde el estado almacenado.
// Es idempotente: repetirlo sin cambios intermedios produce los mismos valores.
// Los destinos que ya no existen se omiten.
func (e *Engine) Recompute(ctx context.Context, r Reader, change Change) ([]FieldUpdate, error) {
	var out []FieldUpdate
	for _, t := range e.Targets(change) {
		if _, err := r.GetForUpdate(ctx, t.Kind, t.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		for _, agg := range e.aggregators {
			if agg.Source != change.Kind || agg.Target != t.Kind || !agg.affected(change) {
				continue
			}
			v, err := agg.Compute(ctx, r, t.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, FieldUpdate{Kind: t.Kind, ID: t.ID, Field: agg.Field, Value: v})
		}
	}
	return out, nil
}

// Patch campos derivados a persistir sobre una fila.
type Patch struct {
	Target
	Fields schema.Record
}

// Group agrupa las actualizaciones por fila destino conservando el orden de llegada.
func Group(updates []FieldUpdate) []Patch {
	var out []Patch
	index := map[Target]int{}
	for _, u := range updates {
		t := Target{Kind: u.Kind, ID: u.ID}
		i, ok := index[t]
		if !ok {
			i = len(out)
			index[t] = i
			out = append(out, Patch{Target: t, Fields: schema.Record{}})
		}
		out[i].Fields[u.Field] = u.Value
	}
	return out
}
