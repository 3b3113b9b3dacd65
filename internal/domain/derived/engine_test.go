package derived_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlotliso/sbm-api/internal/domain/derived"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
	"github.com/tlotliso/sbm-api/internal/infrastructure/memory"
)

func record(customerID int64, recordType, amount string) schema.Record {
	return schema.Record{
		"userId":     int64(1),
		"customerId": customerID,
		"type":       recordType,
		"amount":     decimal.RequireFromString(amount),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Targets
// ──────────────────────────────────────────────────────────────────────────────

func TestTargets_AltaYBaja(t *testing.T) {
	e := derived.NewEngine()

	targets := e.Targets(derived.Change{Kind: schema.KindFinancialRecord, New: record(3, "payment", "10")})
	assert.Equal(t, []derived.Target{{Kind: schema.KindCustomer, ID: 3}}, targets)

	targets = e.Targets(derived.Change{Kind: schema.KindComplaint, Old: schema.Record{"customerId": int64(8)}})
	assert.Equal(t, []derived.Target{{Kind: schema.KindCustomer, ID: 8}}, targets)
}

func TestTargets_CambioDeCliente(t *testing.T) {
	e := derived.NewEngine()

	old := record(7, "payment", "10")
	next := record(2, "payment", "10")
	targets := e.Targets(derived.Change{Kind: schema.KindFinancialRecord, Old: old, New: next})

	assert.Equal(t, []derived.Target{
		{Kind: schema.KindCustomer, ID: 2},
		{Kind: schema.KindCustomer, ID: 7},
	}, targets, "el destino viejo y el nuevo, ordenados por id")
}

func TestTargets_CambioIrrelevante(t *testing.T) {
	e := derived.NewEngine()

	old := record(7, "payment", "10")
	next := old.Merge(schema.Record{"description": "nota"})
	assert.Empty(t, e.Targets(derived.Change{Kind: schema.KindFinancialRecord, Old: old, New: next}))

	assert.Empty(t, e.Targets(derived.Change{Kind: schema.KindTask, New: schema.Record{"projectId": int64(1)}}))

	// sin cliente no hay agregado que recalcular
	orphan := schema.Record{"type": "payment", "amount": decimal.NewFromInt(5), "customerId": nil}
	assert.Empty(t, e.Targets(derived.Change{Kind: schema.KindFinancialRecord, New: orphan}))
}

// ──────────────────────────────────────────────────────────────────────────────
// Recompute
// ──────────────────────────────────────────────────────────────────────────────

func TestRecompute_SumaPorTipo(t *testing.T) {
	reg := schema.NewRegistry()
	store := memory.NewStore(reg)
	e := derived.NewEngine()

	err := store.Run(context.Background(), func(ctx context.Context, tx repository.EntityTx) error {
		customer, err := tx.Insert(ctx, schema.KindCustomer, schema.Record{"userId": int64(1), "name": "Acme"})
		require.NoError(t, err)
		id := customer.ID()

		for _, r := range []schema.Record{
			record(id, "payment", "500"),
			record(id, "payment", "20.50"),
			record(id, "expense", "75"),
			record(id, "invoice", "999"),
		} {
			_, err := tx.Insert(ctx, schema.KindFinancialRecord, r)
			require.NoError(t, err)
		}

		updates, err := e.Recompute(ctx, tx, derived.Change{Kind: schema.KindFinancialRecord, New: record(id, "payment", "20.50")})
		require.NoError(t, err)

		patches := derived.Group(updates)
		require.Len(t, patches, 1)
		assert.Equal(t, derived.Target{Kind: schema.KindCustomer, ID: id}, patches[0].Target)
		assert.True(t, decimal.RequireFromString("520.50").Equal(patches[0].Fields["totalSales"].(decimal.Decimal)))
		assert.True(t, decimal.NewFromInt(75).Equal(patches[0].Fields["totalPurchases"].(decimal.Decimal)))

		// idempotente
		again, err := e.Recompute(ctx, tx, derived.Change{Kind: schema.KindFinancialRecord, New: record(id, "payment", "20.50")})
		require.NoError(t, err)
		assert.Equal(t, updates, again)
		return nil
	})
	require.NoError(t, err)
}

func TestRecompute_ConteoDeQuejas(t *testing.T) {
	reg := schema.NewRegistry()
	store := memory.NewStore(reg)
	e := derived.NewEngine()

	err := store.Run(context.Background(), func(ctx context.Context, tx repository.EntityTx) error {
		customer, err := tx.Insert(ctx, schema.KindCustomer, schema.Record{"userId": int64(1), "name": "Acme"})
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := tx.Insert(ctx, schema.KindComplaint, schema.Record{"userId": int64(1), "title": "q", "customerId": customer.ID()})
			require.NoError(t, err)
		}

		updates, err := e.Recompute(ctx, tx, derived.Change{Kind: schema.KindComplaint, New: schema.Record{"customerId": customer.ID()}})
		require.NoError(t, err)
		require.Len(t, updates, 1)
		assert.Equal(t, "complaintCount", updates[0].Field)
		assert.Equal(t, int64(3), updates[0].Value)
		return nil
	})
	require.NoError(t, err)
}

func TestRecompute_DestinoBorradoSeOmite(t *testing.T) {
	reg := schema.NewRegistry()
	store := memory.NewStore(reg)
	e := derived.NewEngine()

	err := store.Run(context.Background(), func(ctx context.Context, tx repository.EntityTx) error {
		updates, err := e.Recompute(ctx, tx, derived.Change{Kind: schema.KindFinancialRecord, Old: record(404, "payment", "1")})
		require.NoError(t, err)
		assert.Empty(t, updates)
		return nil
	})
	require.NoError(t, err)
}

// lockReader registra los bloqueos pedidos.
type lockReader struct {
	derived.Reader
	locked []derived.Target
}

func (r *lockReader) GetForUpdate(ctx context.Context, kind schema.Kind, id int64) (schema.Record, error) {
	r.locked = append(r.locked, derived.Target{Kind: kind, ID: id})
	return r.Reader.GetForUpdate(ctx, kind, id)
}

func TestLock_DestinosEnOrden(t *testing.T) {
	reg := schema.NewRegistry()
	store := memory.NewStore(reg)
	e := derived.NewEngine()

	err := store.Run(context.Background(), func(ctx context.Context, tx repository.EntityTx) error {
		a, err := tx.Insert(ctx, schema.KindCustomer, schema.Record{"userId": int64(1), "name": "A"})
		require.NoError(t, err)
		b, err := tx.Insert(ctx, schema.KindCustomer, schema.Record{"userId": int64(1), "name": "B"})
		require.NoError(t, err)

		r := &lockReader{Reader: tx}
		change := derived.Change{Kind: schema.KindFinancialRecord, Old: record(b.ID(), "payment", "1"), New: record(a.ID(), "payment", "1")}
		require.NoError(t, e.Lock(ctx, r, change))
		assert.Equal(t, []derived.Target{
			{Kind: schema.KindCustomer, ID: a.ID()},
			{Kind: schema.KindCustomer, ID: b.ID()},
		}, r.locked)

		// un destino inexistente no es un error
		r.locked = nil
		assert.NoError(t, e.Lock(ctx, r, derived.Change{Kind: schema.KindFinancialRecord, New: record(404, "payment", "1")}))
		assert.Len(t, r.locked, 1)
		return nil
	})
	require.NoError(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Stamp
// ──────────────────────────────────────────────────────────────────────────────

var stampNow = time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)

func TestStamp_QuejaResuelta(t *testing.T) {
	current := schema.Record{"status": "open", "resolvedAt": nil}
	patch := schema.Record{"status": "resolved"}

	derived.Stamp(schema.KindComplaint, patch, current, schema.Payload{"status": "resolved"}, stampNow)
	assert.Equal(t, stampNow, patch["resolvedAt"])
}

func TestStamp_QuejaResueltaConFechaExplicita(t *testing.T) {
	explicit := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	patch := schema.Record{"status": "resolved", "resolvedAt": explicit}

	derived.Stamp(schema.KindComplaint, patch, schema.Record{"status": "open"}, schema.Payload{"status": "resolved", "resolvedAt": "2024-01-01"}, stampNow)
	assert.Equal(t, explicit, patch["resolvedAt"], "no se pisa un valor enviado por el cliente")
}

func TestStamp_QuejaYaResuelta(t *testing.T) {
	patch := schema.Record{"status": "resolved"}
	derived.Stamp(schema.KindComplaint, patch, schema.Record{"status": "resolved"}, schema.Payload{"status": "resolved"}, stampNow)
	assert.False(t, patch.Has("resolvedAt"), "sin transición no hay sello")
}

func TestStamp_TareaCompletada(t *testing.T) {
	rec := schema.Record{"title": "x", "status": "completed", "progress": int64(0), "completedDate": nil}
	derived.Stamp(schema.KindTask, rec, nil, schema.Payload{"title": "x", "status": "completed"}, stampNow)

	assert.Equal(t, stampNow, rec["completedDate"])
	assert.Equal(t, int64(100), rec["progress"])

	rec = schema.Record{"status": "completed", "progress": int64(90)}
	derived.Stamp(schema.KindTask, rec, schema.Record{"status": "in-progress"}, schema.Payload{"status": "completed", "progress": 90}, stampNow)
	assert.Equal(t, int64(90), rec["progress"], "el progreso enviado se respeta")
}
