package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

// Querier abstrae pool y transacción para que los repositorios funcionen con ambos.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "23505")
}

// isForeignKeyViolation verifica si un error es una violación de clave foránea (23503).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// classify traduce errores de pgx a la taxonomía del dominio.
// Lo no reconocido se envuelve como StorageError (reintentable).
func classify(err error, op string, s *schema.EntitySchema, id int64, values schema.Record) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return &domain.NotFoundError{Kind: string(s.Kind), ID: id}
	case isUniqueViolation(err):
		for _, f := range s.Fields {
			if f.Unique {
				return &domain.UniqueConstraintError{Kind: string(s.Kind), Field: f.Name, Value: fmt.Sprint(values[f.Name])}
			}
		}
		return &domain.UniqueConstraintError{Kind: string(s.Kind)}
	case isForeignKeyViolation(err):
		var pgErr *pgconn.PgError
		errors.As(err, &pgErr)
		return &domain.ReferentialIntegrityError{
			Kind:       string(s.Kind),
			ID:         id,
			Dependents: []domain.Dependent{{Kind: pgErr.TableName, Field: pgErr.ConstraintName, Count: 1}},
		}
	}
	return &domain.StorageError{Op: op + " " + s.Table, Err: err}
}
