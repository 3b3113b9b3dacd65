package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

var _ repository.EntityTx = (*EntityRepo)(nil)

// EntityRepo implementación genérica de EntityTx: el SQL se arma a partir del esquema
// registrado de cada tipo (usable con pool o tx).
type EntityRepo struct {
	q        Querier
	registry *schema.Registry
}

// NewEntityRepository construye el adaptador. Pasar pool o tx (Querier).
func NewEntityRepository(q Querier, registry *schema.Registry) *EntityRepo {
	return &EntityRepo{q: q, registry: registry}
}

func (r *EntityRepo) schemaFor(kind schema.Kind) (*schema.EntitySchema, error) {
	s, ok := r.registry.Schema(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	return s, nil
}

// Get obtiene una fila por ID.
func (r *EntityRepo) Get(ctx context.Context, kind schema.Kind, id int64) (schema.Record, error) {
	return r.get(ctx, kind, id, false)
}

// GetForUpdate obtiene la fila bloqueándola hasta el fin de la tx.
// Usa FOR NO KEY UPDATE: compatible con el FOR KEY SHARE que la FK de una fila hija toma al insertarse.
func (r *EntityRepo) GetForUpdate(ctx context.Context, kind schema.Kind, id int64) (schema.Record, error) {
	return r.get(ctx, kind, id, true)
}

func (r *EntityRepo) get(ctx context.Context, kind schema.Kind, id int64, lock bool) (schema.Record, error) {
	s, err := r.schemaFor(kind)
	if err != nil {
		return nil, err
	}
	rec, err := scanRecord(s, r.q.QueryRow(ctx, getQuery(s, lock), id))
	if err != nil {
		return nil, classify(err, "get", s, id, nil)
	}
	return rec, nil
}

// List lista filas que cumplen el filtro, ordenadas por id.
func (r *EntityRepo) List(ctx context.Context, kind schema.Kind, filter repository.ListFilter) ([]schema.Record, error) {
	s, err := r.schemaFor(kind)
	if err != nil {
		return nil, err
	}
	filter = filter.Normalized()
	where, args, err := buildWhere(s, filter.Equals, filter.In)
	if err != nil {
		return nil, err
	}
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY id LIMIT $%d OFFSET $%d`,
		selectList(s), ident(s.Table), where, len(args)-1, len(args))
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "list", s, 0, nil)
	}
	defer rows.Close()
	list := make([]schema.Record, 0, filter.Limit)
	for rows.Next() {
		rec, err := scanRecord(s, rows)
		if err != nil {
			return nil, classify(err, "scan", s, 0, nil)
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list", s, 0, nil)
	}
	return list, nil
}

// Insert persiste una fila nueva; el id lo asigna BIGSERIAL.
func (r *EntityRepo) Insert(ctx context.Context, kind schema.Kind, rec schema.Record) (schema.Record, error) {
	s, err := r.schemaFor(kind)
	if err != nil {
		return nil, err
	}
	var (
		cols         []string
		placeholders []string
		args         []any
	)
	for _, f := range s.Persisted() {
		if f.Name == schema.FieldID {
			continue
		}
		v, present := rec[f.Name]
		if !present {
			continue
		}
		args = append(args, toArg(v))
		cols = append(cols, ident(f.Column))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		ident(s.Table), strings.Join(cols, ", "), strings.Join(placeholders, ", "), selectList(s))
	stored, err := scanRecord(s, r.q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, classify(err, "insert", s, 0, rec)
	}
	return stored, nil
}

// Update aplica los campos de patch (id y fecha de creación son inmutables).
func (r *EntityRepo) Update(ctx context.Context, kind schema.Kind, id int64, patch schema.Record) (schema.Record, error) {
	s, err := r.schemaFor(kind)
	if err != nil {
		return nil, err
	}
	var (
		sets []string
		args []any
	)
	for _, f := range s.Persisted() {
		if f.Name == schema.FieldID || f.Name == s.CreatedField {
			continue
		}
		v, present := patch[f.Name]
		if !present {
			continue
		}
		args = append(args, toArg(v))
		sets = append(sets, fmt.Sprintf("%s = $%d", ident(f.Column), len(args)))
	}
	if len(sets) == 0 {
		return r.Get(ctx, kind, id)
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d RETURNING %s`,
		ident(s.Table), strings.Join(sets, ", "), len(args), selectList(s))
	stored, err := scanRecord(s, r.q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, classify(err, "update", s, id, patch)
	}
	return stored, nil
}

// Delete elimina una fila por ID.
func (r *EntityRepo) Delete(ctx context.Context, kind schema.Kind, id int64) error {
	s, err := r.schemaFor(kind)
	if err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, ident(s.Table)), id)
	if err != nil {
		return classify(err, "delete", s, id, nil)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Kind: string(kind), ID: id}
	}
	return nil
}

// FindReferencing ids de kind cuyo campo field apunta a target.
func (r *EntityRepo) FindReferencing(ctx context.Context, kind schema.Kind, field string, target int64) ([]int64, error) {
	s, err := r.schemaFor(kind)
	if err != nil {
		return nil, err
	}
	f, ok := s.Field(field)
	if !ok || f.Transient() {
		return nil, &domain.UnknownFieldError{Kind: string(kind), Field: field}
	}
	query := fmt.Sprintf(`SELECT id FROM %s WHERE %s = $1 ORDER BY id`, ident(s.Table), ident(f.Column))
	rows, err := r.q.Query(ctx, query, target)
	if err != nil {
		return nil, classify(err, "find referencing", s, 0, nil)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, classify(err, "find referencing", s, 0, nil)
	}
	return ids, nil
}

// Sum suma un campo decimal (COALESCE a 0).
func (r *EntityRepo) Sum(ctx context.Context, kind schema.Kind, field string, where map[string]any) (decimal.Decimal, error) {
	s, err := r.schemaFor(kind)
	if err != nil {
		return decimal.Zero, err
	}
	f, ok := s.Field(field)
	if !ok || f.Type != schema.TypeDecimal || f.Transient() {
		return decimal.Zero, &domain.UnknownFieldError{Kind: string(kind), Field: field}
	}
	cond, args, err := buildWhere(s, where, nil)
	if err != nil {
		return decimal.Zero, err
	}
	var total decimal.Decimal
	query := fmt.Sprintf(`SELECT COALESCE(SUM(%s), 0) FROM %s%s`, ident(f.Column), ident(s.Table), cond)
	if err := r.q.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, classify(err, "sum", s, 0, nil)
	}
	return total, nil
}

// Count cuenta filas que cumplen where.
func (r *EntityRepo) Count(ctx context.Context, kind schema.Kind, where map[string]any) (int64, error) {
	s, err := r.schemaFor(kind)
	if err != nil {
		return 0, err
	}
	cond, args, err := buildWhere(s, where, nil)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.q.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, ident(s.Table), cond), args...).Scan(&n); err != nil {
		return 0, classify(err, "count", s, 0, nil)
	}
	return n, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func getQuery(s *schema.EntitySchema, lock bool) string {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectList(s), ident(s.Table))
	if lock {
		query += ` FOR NO KEY UPDATE`
	}
	return query
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func selectList(s *schema.EntitySchema) string {
	fields := s.Persisted()
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, ident(f.Column))
	}
	return strings.Join(cols, ", ")
}

// buildWhere arma la cláusula WHERE (con espacio inicial) para filtros de igualdad e inclusión.
// Los nombres se resuelven contra el esquema; nunca se interpolan valores.
func buildWhere(s *schema.EntitySchema, equals map[string]any, in map[string][]int64) (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	for _, name := range sortedKeys(equals) {
		f, ok := s.Field(name)
		if !ok || f.Transient() {
			return "", nil, &domain.UnknownFieldError{Kind: string(s.Kind), Field: name}
		}
		v := equals[name]
		if v == nil {
			conds = append(conds, ident(f.Column)+" IS NULL")
			continue
		}
		args = append(args, toArg(v))
		conds = append(conds, fmt.Sprintf("%s = $%d", ident(f.Column), len(args)))
	}
	for _, name := range sortedKeys(in) {
		f, ok := s.Field(name)
		if !ok || f.Transient() {
			return "", nil, &domain.UnknownFieldError{Kind: string(s.Kind), Field: name}
		}
		ids := in[name]
		if ids == nil {
			ids = []int64{}
		}
		args = append(args, ids)
		conds = append(conds, fmt.Sprintf("%s = ANY($%d)", ident(f.Column), len(args)))
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// toArg adapta un valor canónico al tipo que espera pgx.
func toArg(v any) any {
	switch val := v.(type) {
	case json.RawMessage:
		if val == nil {
			return nil
		}
		return string(val)
	}
	return v
}

// scanRecord lee una fila en el orden de selectList y la convierte a Record canónico.
func scanRecord(s *schema.EntitySchema, row pgx.Row) (schema.Record, error) {
	fields := s.Persisted()
	dest := make([]any, len(fields))
	for i, f := range fields {
		switch f.Type {
		case schema.TypeInt, schema.TypeRef:
			dest[i] = new(*int64)
		case schema.TypeString:
			dest[i] = new(*string)
		case schema.TypeDecimal:
			dest[i] = new(decimal.NullDecimal)
		case schema.TypeBool:
			dest[i] = new(*bool)
		case schema.TypeTime:
			dest[i] = new(*time.Time)
		case schema.TypeJSON:
			dest[i] = new([]byte)
		default:
			return nil, fmt.Errorf("%s.%s: tipo %s no persistible", s.Kind, f.Name, f.Type)
		}
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	rec := make(schema.Record, len(fields))
	for i, f := range fields {
		rec[f.Name] = fromDest(dest[i])
	}
	return rec, nil
}

func fromDest(d any) any {
	switch v := d.(type) {
	case **int64:
		if *v == nil {
			return nil
		}
		return **v
	case **string:
		if *v == nil {
			return nil
		}
		return **v
	case *decimal.NullDecimal:
		if !v.Valid {
			return nil
		}
		return v.Decimal
	case **bool:
		if *v == nil {
			return nil
		}
		return **v
	case **time.Time:
		if *v == nil {
			return nil
		}
		return (**v).UTC()
	case *[]byte:
		if *v == nil {
			return nil
		}
		return json.RawMessage(append([]byte(nil), (*v)...))
	}
	return nil
}
