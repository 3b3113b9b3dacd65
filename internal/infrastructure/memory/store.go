// Package memory implementa el puerto de almacenamiento en memoria con transacciones
// copy-on-write: cada transacción trabaja sobre una copia del estado que se publica
// de forma atómica al confirmar. Lo usan los tests y STORAGE=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

var (
	_ repository.TxRunner = (*Store)(nil)
	_ repository.Pinger   = (*Store)(nil)
	_ repository.EntityTx = (*transaction)(nil)
)

type state struct {
	rows map[schema.Kind]map[int64]schema.Record
	seq  map[schema.Kind]int64
}

func newState() state {
	return state{
		rows: make(map[schema.Kind]map[int64]schema.Record),
		seq:  make(map[schema.Kind]int64),
	}
}

// clone copia los mapas; los records se sustituyen enteros en cada escritura, nunca se mutan.
func (s state) clone() state {
	out := newState()
	for kind, rows := range s.rows {
		cp := make(map[int64]schema.Record, len(rows))
		for id, rec := range rows {
			cp[id] = rec
		}
		out.rows[kind] = cp
	}
	for kind, n := range s.seq {
		out.seq[kind] = n
	}
	return out
}

// Store almacenamiento en memoria. Un único escritor a la vez.
type Store struct {
	mu       sync.Mutex
	registry *schema.Registry
	state    state
	nowFn    func() time.Time
}

// Option configura el Store.
type Option func(*Store)

// WithClock fija la función de hora (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.nowFn = now }
}

// NewStore construye un store vacío sobre el registro.
func NewStore(registry *schema.Registry, opts ...Option) *Store {
	s := &Store{registry: registry, state: newState(), nowFn: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ejecuta fn sobre una copia del estado y la publica solo si fn termina sin error
// y el contexto sigue vivo.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, tx repository.EntityTx) error) error {
	if err := ctx.Err(); err != nil {
		return &domain.StorageError{Op: "begin", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{registry: s.registry, state: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &domain.StorageError{Op: "commit", Err: err}
	}
	s.state = tx.state
	return nil
}

// Now hora actual del store.
func (s *Store) Now(_ context.Context) (time.Time, error) {
	return s.nowFn().UTC(), nil
}

type transaction struct {
	registry *schema.Registry
	state    state
}

func (tx *transaction) schemaFor(kind schema.Kind) (*schema.EntitySchema, error) {
	s, ok := tx.registry.Schema(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	return s, nil
}

func (tx *transaction) table(kind schema.Kind) map[int64]schema.Record {
	rows, ok := tx.state.rows[kind]
	if !ok {
		rows = make(map[int64]schema.Record)
		tx.state.rows[kind] = rows
	}
	return rows
}

func (tx *transaction) Get(_ context.Context, kind schema.Kind, id int64) (schema.Record, error) {
	if _, err := tx.schemaFor(kind); err != nil {
		return nil, err
	}
	rec, ok := tx.table(kind)[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: string(kind), ID: id}
	}
	return rec.Clone(), nil
}

// GetForUpdate el store ya serializa escritores; equivale a Get.
func (tx *transaction) GetForUpdate(ctx context.Context, kind schema.Kind, id int64) (schema.Record, error) {
	return tx.Get(ctx, kind, id)
}

func (tx *transaction) List(_ context.Context, kind schema.Kind, filter repository.ListFilter) ([]schema.Record, error) {
	if _, err := tx.schemaFor(kind); err != nil {
		return nil, err
	}
	filter = filter.Normalized()
	matched := tx.matching(kind, filter)
	if filter.Offset >= len(matched) {
		return []schema.Record{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]schema.Record, 0, end-filter.Offset)
	for _, rec := range matched[filter.Offset:end] {
		out = append(out, rec.Clone())
	}
	return out, nil
}

// matching filas que cumplen el filtro (igualdad e inclusión), ordenadas por id.
func (tx *transaction) matching(kind schema.Kind, f repository.ListFilter) []schema.Record {
	rows := tx.table(kind)
	ids := make([]int64, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]schema.Record, 0, len(ids))
	for _, id := range ids {
		if f.Matches(rows[id]) {
			out = append(out, rows[id])
		}
	}
	return out
}

func (tx *transaction) Insert(_ context.Context, kind schema.Kind, rec schema.Record) (schema.Record, error) {
	s, err := tx.schemaFor(kind)
	if err != nil {
		return nil, err
	}
	row := rec.Persistable(s)
	if err := tx.checkUnique(s, 0, row); err != nil {
		return nil, err
	}
	tx.state.seq[kind]++
	id := tx.state.seq[kind]
	row[schema.FieldID] = id
	tx.table(kind)[id] = row
	return row.Clone(), nil
}

func (tx *transaction) Update(_ context.Context, kind schema.Kind, id int64, patch schema.Record) (schema.Record, error) {
	s, err := tx.schemaFor(kind)
	if err != nil {
		return nil, err
	}
	current, ok := tx.table(kind)[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: string(kind), ID: id}
	}
	changes := patch.Persistable(s)
	delete(changes, schema.FieldID)
	if s.CreatedField != "" {
		delete(changes, s.CreatedField)
	}
	if err := tx.checkUnique(s, id, changes); err != nil {
		return nil, err
	}
	row := current.Merge(changes)
	tx.table(kind)[id] = row
	return row.Clone(), nil
}

func (tx *transaction) Delete(_ context.Context, kind schema.Kind, id int64) error {
	if _, err := tx.schemaFor(kind); err != nil {
		return err
	}
	rows := tx.table(kind)
	if _, ok := rows[id]; !ok {
		return &domain.NotFoundError{Kind: string(kind), ID: id}
	}
	delete(rows, id)
	return nil
}

func (tx *transaction) FindReferencing(_ context.Context, kind schema.Kind, field string, target int64) ([]int64, error) {
	if _, err := tx.schemaFor(kind); err != nil {
		return nil, err
	}
	var ids []int64
	for _, rec := range tx.matching(kind, repository.ListFilter{Equals: map[string]any{field: target}}) {
		ids = append(ids, rec.ID())
	}
	return ids, nil
}

func (tx *transaction) Sum(_ context.Context, kind schema.Kind, field string, where map[string]any) (decimal.Decimal, error) {
	if _, err := tx.schemaFor(kind); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, rec := range tx.matching(kind, repository.ListFilter{Equals: where}) {
		if d, ok := rec.Decimal(field); ok {
			total = total.Add(d)
		}
	}
	return total, nil
}

func (tx *transaction) Count(_ context.Context, kind schema.Kind, where map[string]any) (int64, error) {
	if _, err := tx.schemaFor(kind); err != nil {
		return 0, err
	}
	return int64(len(tx.matching(kind, repository.ListFilter{Equals: where}))), nil
}

// checkUnique rechaza valores repetidos en campos únicos (ignora la propia fila self).
func (tx *transaction) checkUnique(s *schema.EntitySchema, self int64, values schema.Record) error {
	for _, f := range s.Fields {
		if !f.Unique || values.IsNull(f.Name) {
			continue
		}
		for id, rec := range tx.table(s.Kind) {
			if id != self && repository.ValuesEqual(rec[f.Name], values[f.Name]) {
				return &domain.UniqueConstraintError{Kind: string(s.Kind), Field: f.Name, Value: fmt.Sprint(values[f.Name])}
			}
		}
	}
	return nil
}
