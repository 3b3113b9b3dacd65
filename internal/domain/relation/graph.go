// Package relation mantiene el grafo de claves foráneas entre entidades y las reglas
// de integridad referencial asociadas a cada arista.
package relation

import (
	"context"
	"errors"
	"fmt"

	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

// Reader lecturas que el grafo necesita del almacenamiento (satisfecho por repository.EntityTx).
type Reader interface {
	Get(ctx context.Context, kind schema.Kind, id int64) (schema.Record, error)
	FindReferencing(ctx context.Context, kind schema.Kind, field string, target int64) ([]int64, error)
}

// Nullification referencias anulables que deben ponerse a NULL antes de borrar el destino.
type Nullification struct {
	Edge schema.Edge
	IDs  []int64
}

// Graph grafo de relaciones derivado del registro.
type Graph struct {
	registry *schema.Registry
}

// NewGraph construye el grafo sobre el registro inyectado.
func NewGraph(registry *schema.Registry) *Graph {
	return &Graph{registry: registry}
}

// Edges aristas del grafo.
func (g *Graph) Edges() []schema.Edge { return g.registry.Edges() }

// OwnerOf userId dueño de una fila. TeamMember hereda el dueño de su equipo;
// un User es dueño de sí mismo.
func (g *Graph) OwnerOf(ctx context.Context, r Reader, kind schema.Kind, rec schema.Record) (int64, error) {
	s, ok := g.registry.Schema(kind)
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	switch {
	case kind == schema.KindUser:
		return rec.ID(), nil
	case s.OwnerField != "":
		owner, ok := rec.Int(s.OwnerField)
		if !ok {
			return 0, fmt.Errorf("%s %d sin dueño", kind, rec.ID())
		}
		return owner, nil
	case s.ScopeField != "":
		edge, ok := g.registry.EdgeFor(kind, s.ScopeField)
		if !ok {
			return 0, fmt.Errorf("%s: campo de ámbito %s sin arista", kind, s.ScopeField)
		}
		scopeID, ok := rec.Ref(s.ScopeField)
		if !ok {
			return 0, fmt.Errorf("%s %d sin %s", kind, rec.ID(), s.ScopeField)
		}
		parent, err := r.Get(ctx, edge.To, scopeID)
		if err != nil {
			return 0, err
		}
		return g.OwnerOf(ctx, r, edge.To, parent)
	}
	return 0, fmt.Errorf("%s: tipo sin ámbito de dueño", kind)
}

// ValidateReference comprueba que value (id o nil) apunte a una fila existente del mismo dueño.
func (g *Graph) ValidateReference(ctx context.Context, r Reader, edge schema.Edge, value any, owner int64) error {
	if value == nil {
		if edge.Nullable {
			return nil
		}
		return &domain.DanglingReferenceError{Kind: string(edge.From), Field: edge.Field, Target: string(edge.To)}
	}
	id, ok := value.(int64)
	if !ok {
		return &domain.TypeMismatchError{Kind: string(edge.From), Field: edge.Field, Expected: schema.TypeRef.String(), Got: fmt.Sprintf("%T", value)}
	}
	target, err := r.Get(ctx, edge.To, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.DanglingReferenceError{Kind: string(edge.From), Field: edge.Field, Target: string(edge.To), ID: id}
		}
		return err
	}
	targetOwner, err := g.OwnerOf(ctx, r, edge.To, target)
	if err != nil {
		return err
	}
	if targetOwner != owner {
		return &domain.CrossOwnerReferenceError{Kind: string(edge.From), Field: edge.Field, Target: string(edge.To), ID: id}
	}
	return nil
}

// ValidateReferences valida las referencias presentes en rec que el cliente puede escribir.
// Para TeamMember el dueño es el del equipo, así que el empleado queda en el mismo ámbito.
func (g *Graph) ValidateReferences(ctx context.Context, r Reader, kind schema.Kind, rec schema.Record, owner int64) error {
	s, ok := g.registry.Schema(kind)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	for _, f := range s.Refs() {
		if !f.ClientWritable() || !rec.Has(f.Name) {
			continue
		}
		edge, _ := g.registry.EdgeFor(kind, f.Name)
		if err := g.ValidateReference(ctx, r, edge, rec[f.Name], owner); err != nil {
			return err
		}
	}
	return nil
}

// CheckDeletable devuelve las anulaciones necesarias para borrar kind/id, o
// ReferentialIntegrityError si alguna referencia obligatoria apunta a la fila.
func (g *Graph) CheckDeletable(ctx context.Context, r Reader, kind schema.Kind, id int64) ([]Nullification, error) {
	var (
		blocked []domain.Dependent
		nulls   []Nullification
	)
	for _, edge := range g.registry.EdgesTo(kind) {
		ids, err := r.FindReferencing(ctx, edge.From, edge.Field, id)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			continue
		}
		if !edge.Nullable {
			blocked = append(blocked, domain.Dependent{Kind: string(edge.From), Field: edge.Field, Count: len(ids)})
			continue
		}
		nulls = append(nulls, Nullification{Edge: edge, IDs: ids})
	}
	if len(blocked) > 0 {
		return nil, &domain.ReferentialIntegrityError{Kind: string(kind), ID: id, Dependents: blocked}
	}
	return nulls, nil
}
