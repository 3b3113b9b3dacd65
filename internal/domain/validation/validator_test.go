package validation_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlotliso/sbm-api/internal/domain"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
	"github.com/tlotliso/sbm-api/internal/domain/validation"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func normalize(t *testing.T, reg *schema.Registry, kind schema.Kind, payload schema.Payload) schema.Record {
	t.Helper()
	rec, err := reg.Normalize(kind, payload, schema.ModeCreate, testNow)
	require.NoError(t, err)
	return rec
}

func validationErr(t *testing.T, err error) *domain.ValidationError {
	t.Helper()
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "se esperaba ValidationError, got %v", err)
	return ve
}

func TestValidateCreate_RangoSatisfaccion(t *testing.T) {
	reg := schema.NewRegistry()
	v := validation.New(reg)

	for _, ok := range []string{"0", "100", "55"} {
		rec := normalize(t, reg, schema.KindCustomer, schema.Payload{"name": "Acme", "customerSatisfaction": json.Number(ok)})
		assert.NoError(t, v.ValidateCreate(schema.KindCustomer, rec), "%s debe aceptarse", ok)
	}
	for _, bad := range []string{"-1", "101"} {
		rec := normalize(t, reg, schema.KindCustomer, schema.Payload{"name": "Acme", "customerSatisfaction": json.Number(bad)})
		ve := validationErr(t, v.ValidateCreate(schema.KindCustomer, rec))
		assert.True(t, ve.Has("customerSatisfaction", domain.RangeViolation), "%s debe rechazarse", bad)
	}
}

func TestValidateCreate_Porcentajes(t *testing.T) {
	reg := schema.NewRegistry()
	v := validation.New(reg)

	rec := normalize(t, reg, schema.KindEmployee, schema.Payload{"name": "Luis", "performance": json.Number("101")})
	ve := validationErr(t, v.ValidateCreate(schema.KindEmployee, rec))
	assert.True(t, ve.Has("performance", domain.RangeViolation))

	rec = normalize(t, reg, schema.KindTask, schema.Payload{"title": "x", "progress": json.Number("-1")})
	ve = validationErr(t, v.ValidateCreate(schema.KindTask, rec))
	assert.True(t, ve.Has("progress", domain.RangeViolation))

	rec = normalize(t, reg, schema.KindComplaint, schema.Payload{"title": "x", "satisfactionRating": json.Number("6")})
	ve = validationErr(t, v.ValidateCreate(schema.KindComplaint, rec))
	assert.True(t, ve.Has("satisfactionRating", domain.RangeViolation))
}

func TestValidateCreate_Enumerados(t *testing.T) {
	reg := schema.NewRegistry()
	v := validation.New(reg)

	rec := normalize(t, reg, schema.KindCustomer, schema.Payload{"name": "Acme", "type": "vip"})
	ve := validationErr(t, v.ValidateCreate(schema.KindCustomer, rec))
	require.Len(t, ve.Violations, 1)
	assert.Equal(t, domain.EnumViolation, ve.Violations[0].Kind)
	assert.Equal(t, "oneof=customer supplier", ve.Violations[0].Constraint)

	rec = normalize(t, reg, schema.KindFinancialRecord, schema.Payload{"type": "refund", "amount": json.Number("1")})
	ve = validationErr(t, v.ValidateCreate(schema.KindFinancialRecord, rec))
	assert.True(t, ve.Has("type", domain.EnumViolation))
}

func TestValidateCreate_ObligatoriosReportadosJuntos(t *testing.T) {
	reg := schema.NewRegistry()
	v := validation.New(reg)

	rec := normalize(t, reg, schema.KindFinancialRecord, schema.Payload{"status": "late"})
	ve := validationErr(t, v.ValidateCreate(schema.KindFinancialRecord, rec))

	assert.True(t, ve.Has("type", domain.RequiredFieldMissing))
	assert.True(t, ve.Has("amount", domain.RequiredFieldMissing))
	assert.True(t, ve.Has("status", domain.EnumViolation))
	assert.ErrorIs(t, ve, domain.ErrInvalidInput)
}

func TestValidateCreate_TextoVacioEsObligatorio(t *testing.T) {
	reg := schema.NewRegistry()
	v := validation.New(reg)

	rec := normalize(t, reg, schema.KindCustomer, schema.Payload{"name": ""})
	ve := validationErr(t, v.ValidateCreate(schema.KindCustomer, rec))
	assert.True(t, ve.Has("name", domain.RequiredFieldMissing))
}

func TestValidateCreate_ImporteNegativo(t *testing.T) {
	reg := schema.NewRegistry()
	v := validation.New(reg)

	rec := normalize(t, reg, schema.KindFinancialRecord, schema.Payload{"type": "payment", "amount": json.Number("-0.01")})
	ve := validationErr(t, v.ValidateCreate(schema.KindFinancialRecord, rec))
	assert.True(t, ve.Has("amount", domain.RangeViolation))

	rec = normalize(t, reg, schema.KindFinancialRecord, schema.Payload{"type": "payment", "amount": json.Number("0")})
	assert.NoError(t, v.ValidateCreate(schema.KindFinancialRecord, rec))
}

func TestValidateCreate_FechasEnOrden(t *testing.T) {
	reg := schema.NewRegistry()
	v := validation.New(reg)

	rec := normalize(t, reg, schema.KindBudget, schema.Payload{
		"name":      "Q2",
		"amount":    json.Number("1000"),
		"startDate": "2024-06-30",
		"endDate":   "2024-04-01",
	})
	ve := validationErr(t, v.ValidateCreate(schema.KindBudget, rec))
	assert.True(t, ve.Has("endDate", domain.RangeViolation))

	rec = normalize(t, reg, schema.KindBudget, schema.Payload{
		"name":      "Q2",
		"amount":    json.Number("1000"),
		"startDate": "2024-04-01",
		"endDate":   "2024-04-01",
	})
	assert.NoError(t, v.ValidateCreate(schema.KindBudget, rec), "el mismo día es válido")
}

func TestValidateCreate_ListaDeAsistentes(t *testing.T) {
	reg := schema.NewRegistry()
	v := validation.New(reg)

	rec := normalize(t, reg, schema.KindMeeting, schema.Payload{
		"title":     "Sync",
		"date":      "2024-05-01T10:00:00Z",
		"attendees": []any{json.Number("3"), json.Number("0")},
	})
	ve := validationErr(t, v.ValidateCreate(schema.KindMeeting, rec))
	assert.True(t, ve.Has("attendees", domain.RangeViolation))
}

func TestValidateUpdate_SoloCamposTocados(t *testing.T) {
	reg := schema.NewRegistry()
	v := validation.New(reg)

	// el record almacenado tiene un valor fuera de rango que no se vuelve a comprobar
	current := schema.Record{"id": int64(1), "title": "x", "status": "pending", "progress": int64(120)}
	assert.NoError(t, v.ValidateUpdate(schema.KindTask, schema.Record{"status": "in-progress"}, current))

	ve := validationErr(t, v.ValidateUpdate(schema.KindTask, schema.Record{"progress": int64(101)}, current))
	assert.True(t, ve.Has("progress", domain.RangeViolation))

	ve = validationErr(t, v.ValidateUpdate(schema.KindTask, schema.Record{"title": nil}, current))
	assert.True(t, ve.Has("title", domain.RequiredFieldMissing))
}

func TestValidateUpdate_FechasContraElEstadoActual(t *testing.T) {
	reg := schema.NewRegistry()
	v := validation.New(reg)

	current := schema.Record{
		"id":        int64(1),
		"name":      "Web",
		"startDate": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"endDate":   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	patch := schema.Record{"startDate": time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	ve := validationErr(t, v.ValidateUpdate(schema.KindProject, patch, current))
	assert.True(t, ve.Has("endDate", domain.RangeViolation))

	assert.NoError(t, v.ValidateUpdate(schema.KindProject, schema.Record{"name": "Web 2"}, current))
}
