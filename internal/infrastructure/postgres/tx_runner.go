package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

var (
	_ repository.TxRunner = (*TxRunner)(nil)
	_ repository.Pinger   = (*TxRunner)(nil)
)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL (READ COMMITTED).
type TxRunner struct {
	pool     *pgxpool.Pool
	registry *schema.Registry
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool, registry *schema.Registry) *TxRunner {
	return &TxRunner{pool: pool, registry: registry}
}

// Run inicia una transacción, ejecuta fn con el repositorio atado a la tx y hace Commit o Rollback.
// Si el contexto se cancela antes del Commit, nada queda escrito.
func (r *TxRunner) Run(ctx context.Context, fn func(ctx context.Context, tx repository.EntityTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return &domain.StorageError{Op: "begin transaction", Err: err}
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx, NewEntityRepository(tx, r.registry)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &domain.StorageError{Op: "commit transaction", Err: err}
	}
	return nil
}

// Now ejecuta SELECT NOW() como prueba de conectividad.
func (r *TxRunner) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := r.pool.QueryRow(ctx, `SELECT NOW()`).Scan(&now); err != nil {
		return time.Time{}, &domain.StorageError{Op: "select now", Err: err}
	}
	return now.UTC(), nil
}
