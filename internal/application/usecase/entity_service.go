package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/derived"
	"github.com/tlotliso/sbm-api/internal/domain/relation"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
	"github.com/tlotliso/sbm-api/internal/domain/validation"
	"github.com/tlotliso/sbm-api/pkg/logger"
)

// SecretHasher transforma los campos de solo escritura (password) antes de persistirlos.
type SecretHasher interface {
	Hash(plain string) (string, error)
}

// EntityService casos de uso genéricos create/update/delete/get/list sobre cualquier tipo
// del registro. Cada operación corre en una única transacción: normalización, validación,
// referencias, persistencia, anulación de referencias y recálculo de derivados.
type EntityService struct {
	registry  *schema.Registry
	tx        repository.TxRunner
	validator *validation.Validator
	graph     *relation.Graph
	derived   *derived.Engine
	hasher    SecretHasher
	log       *logger.Logger
	now       func() time.Time
}

// ServiceOption configura el servicio.
type ServiceOption func(*EntityService)

// WithHasher fija el hasher de secretos (bcrypt en producción).
func WithHasher(h SecretHasher) ServiceOption {
	return func(s *EntityService) { s.hasher = h }
}

// WithClock fija la hora usada para defaults y sellos (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *EntityService) { s.now = now }
}

// NewEntityService construye el servicio con el registro y el runner transaccional inyectados.
func NewEntityService(registry *schema.Registry, tx repository.TxRunner, log *logger.Logger, opts ...ServiceOption) *EntityService {
	s := &EntityService{
		registry:  registry,
		tx:        tx,
		validator: validation.New(registry),
		graph:     relation.NewGraph(registry),
		derived:   derived.NewEngine(),
		log:       log.Component("entities"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry registro de esquemas en uso.
func (s *EntityService) Registry() *schema.Registry { return s.registry }

// Create normaliza, valida y persiste una entidad nueva del usuario owner.
// Para KindUser owner se ignora: el usuario es dueño de sí mismo.
func (s *EntityService) Create(ctx context.Context, kind schema.Kind, payload schema.Payload, owner int64) (schema.Record, error) {
	es, err := s.schema(kind)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rec, err := s.registry.Normalize(kind, payload, schema.ModeCreate, now)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateCreate(kind, rec); err != nil {
		return nil, err
	}
	derived.Stamp(kind, rec, nil, payload, now)
	if es.OwnerField != "" {
		rec[es.OwnerField] = owner
	}
	if es.CreatedField != "" {
		rec[es.CreatedField] = now
	}
	if err := s.hashSecrets(es, rec); err != nil {
		return nil, err
	}

	var stored schema.Record
	err = s.tx.Run(ctx, func(ctx context.Context, tx repository.EntityTx) error {
		if kind != schema.KindUser {
			if err := s.graph.ValidateReferences(ctx, tx, kind, rec, owner); err != nil {
				return err
			}
		}
		if err := s.derived.Lock(ctx, tx, derived.Change{Kind: kind, New: rec}); err != nil {
			return err
		}
		inserted, err := tx.Insert(ctx, kind, rec)
		if err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, derived.Change{Kind: kind, New: inserted}); err != nil {
			return err
		}
		stored = inserted
		return nil
	})
	if err != nil {
		s.logFailure(err, "create", kind, 0)
		return nil, err
	}
	s.log.Debug().Str("kind", string(kind)).Int64("id", stored.ID()).Msg("entidad creada")
	return stored.Public(es), nil
}

// Update aplica una actualización parcial. Solo se revalidan los campos enviados.
func (s *EntityService) Update(ctx context.Context, kind schema.Kind, id int64, partial schema.Payload, owner int64) (schema.Record, error) {
	es, err := s.schema(kind)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	patch, err := s.registry.Normalize(kind, partial, schema.ModeUpdate, now)
	if err != nil {
		return nil, err
	}
	var updated schema.Record
	err = s.tx.Run(ctx, func(ctx context.Context, tx repository.EntityTx) error {
		current, err := s.owned(ctx, tx, kind, id, owner, true)
		if err != nil {
			return err
		}
		if err := s.validator.ValidateUpdate(kind, patch, current); err != nil {
			return err
		}
		derived.Stamp(kind, patch, current, partial, now)
		if err := s.hashSecrets(es, patch); err != nil {
			return err
		}
		if len(patch) == 0 {
			updated = current
			return nil
		}
		if err := s.graph.ValidateReferences(ctx, tx, kind, patch, owner); err != nil {
			return err
		}
		if err := s.derived.Lock(ctx, tx, derived.Change{Kind: kind, Old: current, New: current.Merge(patch)}); err != nil {
			return err
		}
		next, err := tx.Update(ctx, kind, id, patch)
		if err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, derived.Change{Kind: kind, Old: current, New: next}); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		s.logFailure(err, "update", kind, id)
		return nil, err
	}
	s.log.Debug().Str("kind", string(kind)).Int64("id", id).Strs("fields", patch.Keys()).Msg("entidad actualizada")
	return updated.Public(es), nil
}

// Delete borra la fila si ninguna referencia obligatoria apunta a ella; las referencias
// anulables se ponen a NULL en la misma transacción.
func (s *EntityService) Delete(ctx context.Context, kind schema.Kind, id int64, owner int64) error {
	if _, err := s.schema(kind); err != nil {
		return err
	}
	err := s.tx.Run(ctx, func(ctx context.Context, tx repository.EntityTx) error {
		current, err := s.owned(ctx, tx, kind, id, owner, true)
		if err != nil {
			return err
		}
		if err := s.derived.Lock(ctx, tx, derived.Change{Kind: kind, Old: current}); err != nil {
			return err
		}
		nulls, err := s.graph.CheckDeletable(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		var changes []derived.Change
		for _, n := range nulls {
			for _, refID := range n.IDs {
				before, err := tx.Get(ctx, n.Edge.From, refID)
				if err != nil {
					return err
				}
				after, err := tx.Update(ctx, n.Edge.From, refID, schema.Record{n.Edge.Field: nil})
				if err != nil {
					return err
				}
				changes = append(changes, derived.Change{Kind: n.Edge.From, Old: before, New: after})
			}
		}
		if err := tx.Delete(ctx, kind, id); err != nil {
			return err
		}
		changes = append(changes, derived.Change{Kind: kind, Old: current})
		for _, c := range changes {
			if err := s.recompute(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logFailure(err, "delete", kind, id)
		return err
	}
	s.log.Debug().Str("kind", string(kind)).Int64("id", id).Msg("entidad eliminada")
	return nil
}

// Get devuelve la fila si pertenece a owner; NotFoundError en otro caso.
func (s *EntityService) Get(ctx context.Context, kind schema.Kind, id int64, owner int64) (schema.Record, error) {
	es, err := s.schema(kind)
	if err != nil {
		return nil, err
	}
	var rec schema.Record
	err = s.tx.Run(ctx, func(ctx context.Context, tx repository.EntityTx) error {
		rec, err = s.owned(ctx, tx, kind, id, owner, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec.Public(es), nil
}

// List filas de owner que cumplen el filtro, ordenadas por id.
func (s *EntityService) List(ctx context.Context, kind schema.Kind, owner int64, filter repository.ListFilter) ([]schema.Record, error) {
	es, err := s.schema(kind)
	if err != nil {
		return nil, err
	}
	equals := make(map[string]any, len(filter.Equals)+1)
	for name, v := range filter.Equals {
		f, ok := es.Field(name)
		if !ok || f.Transient() || f.Access == schema.WriteOnly || f.Type == schema.TypeJSON {
			return nil, &domain.UnknownFieldError{Kind: string(kind), Field: name}
		}
		equals[name] = v
	}
	filter.Equals = equals

	var out []schema.Record
	err = s.tx.Run(ctx, func(ctx context.Context, tx repository.EntityTx) error {
		switch {
		case kind == schema.KindUser:
			filter.Equals[schema.FieldID] = owner
		case es.OwnerField != "":
			filter.Equals[es.OwnerField] = owner
		case es.ScopeField != "":
			edge, _ := s.registry.EdgeFor(kind, es.ScopeField)
			scopes, err := tx.FindReferencing(ctx, edge.To, schema.FieldUserID, owner)
			if err != nil {
				return err
			}
			filter.In = map[string][]int64{es.ScopeField: scopes}
		}
		rows, err := tx.List(ctx, kind, filter.Normalized())
		if err != nil {
			return err
		}
		out = make([]schema.Record, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.Public(es))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *EntityService) schema(kind schema.Kind) (*schema.EntitySchema, error) {
	es, ok := s.registry.Schema(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	return es, nil
}

// owned lee la fila y comprueba que pertenezca a owner. Las filas ajenas se reportan
// como inexistentes para no revelar su existencia.
func (s *EntityService) owned(ctx context.Context, tx repository.EntityTx, kind schema.Kind, id, owner int64, lock bool) (schema.Record, error) {
	var (
		rec schema.Record
		err error
	)
	if lock {
		rec, err = tx.GetForUpdate(ctx, kind, id)
	} else {
		rec, err = tx.Get(ctx, kind, id)
	}
	if err != nil {
		return nil, err
	}
	rowOwner, err := s.graph.OwnerOf(ctx, tx, kind, rec)
	if err != nil {
		return nil, err
	}
	if rowOwner != owner {
		return nil, &domain.NotFoundError{Kind: string(kind), ID: id}
	}
	return rec, nil
}

// recompute recalcula y persiste los derivados afectados por el cambio.
func (s *EntityService) recompute(ctx context.Context, tx repository.EntityTx, change derived.Change) error {
	updates, err := s.derived.Recompute(ctx, tx, change)
	if err != nil {
		return err
	}
	for _, p := range derived.Group(updates) {
		if _, err := tx.Update(ctx, p.Kind, p.ID, p.Fields); err != nil {
			return err
		}
	}
	return nil
}

func (s *EntityService) hashSecrets(es *schema.EntitySchema, rec schema.Record) error {
	for _, f := range es.Fields {
		if f.Access != schema.WriteOnly || rec.IsNull(f.Name) {
			continue
		}
		if s.hasher == nil {
			return fmt.Errorf("%s.%s: sin hasher configurado", es.Kind, f.Name)
		}
		plain, _ := rec.String(f.Name)
		hashed, err := s.hasher.Hash(plain)
		if err != nil {
			return fmt.Errorf("hash %s: %w", f.Name, err)
		}
		rec[f.Name] = hashed
	}
	return nil
}

func (s *EntityService) logFailure(err error, op string, kind schema.Kind, id int64) {
	if !domain.IsRetryable(err) {
		return
	}
	s.log.Error().Err(err).Str("op", op).Str("kind", string(kind)).Int64("id", id).Msg("fallo de almacenamiento")
}
