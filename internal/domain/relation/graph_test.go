package relation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/relation"
	"github.com/tlotliso/sbm-api/internal/domain/repository"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
	"github.com/tlotliso/sbm-api/internal/infrastructure/memory"
)

const (
	ownerA int64 = 1
	ownerB int64 = 2
)

// withTx ejecuta fn dentro de una transacción del store en memoria.
func withTx(t *testing.T, store *memory.Store, fn func(ctx context.Context, tx repository.EntityTx)) {
	t.Helper()
	err := store.Run(context.Background(), func(ctx context.Context, tx repository.EntityTx) error {
		fn(ctx, tx)
		return nil
	})
	require.NoError(t, err)
}

func insert(t *testing.T, ctx context.Context, tx repository.EntityTx, kind schema.Kind, rec schema.Record) int64 {
	t.Helper()
	row, err := tx.Insert(ctx, kind, rec)
	require.NoError(t, err)
	return row.ID()
}

func TestOwnerOf(t *testing.T) {
	reg := schema.NewRegistry()
	g := relation.NewGraph(reg)
	store := memory.NewStore(reg)

	withTx(t, store, func(ctx context.Context, tx repository.EntityTx) {
		user := schema.Record{"id": int64(9), "username": "ana"}
		owner, err := g.OwnerOf(ctx, tx, schema.KindUser, user)
		require.NoError(t, err)
		assert.Equal(t, int64(9), owner, "un usuario es dueño de sí mismo")

		teamID := insert(t, ctx, tx, schema.KindTeam, schema.Record{"userId": ownerB, "name": "Core"})
		owner, err = g.OwnerOf(ctx, tx, schema.KindTeam, schema.Record{"id": teamID, "userId": ownerB})
		require.NoError(t, err)
		assert.Equal(t, ownerB, owner)

		member := schema.Record{"id": int64(1), "teamId": teamID, "employeeId": int64(4)}
		owner, err = g.OwnerOf(ctx, tx, schema.KindTeamMember, member)
		require.NoError(t, err)
		assert.Equal(t, ownerB, owner, "TeamMember hereda el dueño del equipo")
	})
}

func TestValidateReference(t *testing.T) {
	reg := schema.NewRegistry()
	g := relation.NewGraph(reg)
	store := memory.NewStore(reg)

	withTx(t, store, func(ctx context.Context, tx repository.EntityTx) {
		mine := insert(t, ctx, tx, schema.KindCustomer, schema.Record{"userId": ownerA, "name": "Mío"})
		theirs := insert(t, ctx, tx, schema.KindCustomer, schema.Record{"userId": ownerB, "name": "Ajeno"})

		complaintCustomer, _ := reg.EdgeFor(schema.KindComplaint, "customerId")
		assert.NoError(t, g.ValidateReference(ctx, tx, complaintCustomer, nil, ownerA), "null en referencia anulable")
		assert.NoError(t, g.ValidateReference(ctx, tx, complaintCustomer, mine, ownerA))

		err := g.ValidateReference(ctx, tx, complaintCustomer, int64(999), ownerA)
		var dangling *domain.DanglingReferenceError
		require.True(t, errors.As(err, &dangling))
		assert.Equal(t, int64(999), dangling.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidReference)

		err = g.ValidateReference(ctx, tx, complaintCustomer, theirs, ownerA)
		var cross *domain.CrossOwnerReferenceError
		require.True(t, errors.As(err, &cross))
		assert.Equal(t, theirs, cross.ID)

		memberTeam, _ := reg.EdgeFor(schema.KindTeamMember, "teamId")
		err = g.ValidateReference(ctx, tx, memberTeam, nil, ownerA)
		assert.True(t, errors.As(err, &dangling), "null en referencia obligatoria")
	})
}

func TestValidateReferences_SoloCamposPresentes(t *testing.T) {
	reg := schema.NewRegistry()
	g := relation.NewGraph(reg)
	store := memory.NewStore(reg)

	withTx(t, store, func(ctx context.Context, tx repository.EntityTx) {
		projectID := insert(t, ctx, tx, schema.KindProject, schema.Record{"userId": ownerA, "name": "P"})

		// userId no es escribible por el cliente y no se valida aquí
		rec := schema.Record{"userId": int64(777), "projectId": projectID}
		assert.NoError(t, g.ValidateReferences(ctx, tx, schema.KindTask, rec, ownerA))

		rec = schema.Record{"projectId": projectID, "teamId": int64(55)}
		var dangling *domain.DanglingReferenceError
		err := g.ValidateReferences(ctx, tx, schema.KindTask, rec, ownerA)
		require.True(t, errors.As(err, &dangling))
		assert.Equal(t, "teamId", dangling.Field)
	})
}

func TestCheckDeletable(t *testing.T) {
	reg := schema.NewRegistry()
	g := relation.NewGraph(reg)
	store := memory.NewStore(reg)

	withTx(t, store, func(ctx context.Context, tx repository.EntityTx) {
		leader := insert(t, ctx, tx, schema.KindEmployee, schema.Record{"userId": ownerA, "name": "Líder"})
		member := insert(t, ctx, tx, schema.KindEmployee, schema.Record{"userId": ownerA, "name": "Miembro"})
		teamID := insert(t, ctx, tx, schema.KindTeam, schema.Record{"userId": ownerA, "name": "Core", "leaderId": leader})
		insert(t, ctx, tx, schema.KindTeamMember, schema.Record{"teamId": teamID, "employeeId": member})

		nulls, err := g.CheckDeletable(ctx, tx, schema.KindEmployee, leader)
		require.NoError(t, err)
		require.Len(t, nulls, 1)
		assert.Equal(t, schema.KindTeam, nulls[0].Edge.From)
		assert.Equal(t, "leaderId", nulls[0].Edge.Field)
		assert.Equal(t, []int64{teamID}, nulls[0].IDs)

		_, err = g.CheckDeletable(ctx, tx, schema.KindEmployee, member)
		var integrity *domain.ReferentialIntegrityError
		require.True(t, errors.As(err, &integrity))
		require.Len(t, integrity.Dependents, 1)
		assert.Equal(t, domain.Dependent{Kind: "team_member", Field: "employeeId", Count: 1}, integrity.Dependents[0])
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestCheckDeletable_UsuarioConFilas(t *testing.T) {
	reg := schema.NewRegistry()
	g := relation.NewGraph(reg)
	store := memory.NewStore(reg)

	withTx(t, store, func(ctx context.Context, tx repository.EntityTx) {
		userID := insert(t, ctx, tx, schema.KindUser, schema.Record{"username": "ana", "password": "x", "companyName": "A"})
		insert(t, ctx, tx, schema.KindCustomer, schema.Record{"userId": userID, "name": "C1"})
		insert(t, ctx, tx, schema.KindCustomer, schema.Record{"userId": userID, "name": "C2"})

		_, err := g.CheckDeletable(ctx, tx, schema.KindUser, userID)
		var integrity *domain.ReferentialIntegrityError
		require.True(t, errors.As(err, &integrity))
		assert.Contains(t, integrity.Dependents, domain.Dependent{Kind: "customer", Field: "userId", Count: 2})
	})
}
