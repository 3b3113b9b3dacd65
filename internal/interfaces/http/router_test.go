package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tlotliso/sbm-api/internal/application/auth"
	"github.com/tlotliso/sbm-api/internal/application/reporting"
	"github.com/tlotliso/sbm-api/internal/application/usecase"
	"github.com/tlotliso/sbm-api/internal/domain/schema"
	"github.com/tlotliso/sbm-api/internal/infrastructure/memory"
	"github.com/tlotliso/sbm-api/internal/infrastructure/pdf"
	apphttp "github.com/tlotliso/sbm-api/internal/interfaces/http"
	"github.com/tlotliso/sbm-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// App completa sobre el store en memoria
// ──────────────────────────────────────────────────────────────────────────────

type response struct {
	status int
	header http.Header
	raw    []byte
}

func (r response) json(t *testing.T) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(r.raw, &body), "cuerpo: %s", r.raw)
	return body
}

func newRouterApp(t *testing.T) *fiber.App {
	t.Helper()
	reg := schema.NewRegistry()
	store := memory.NewStore(reg)
	log := logger.Nop()
	entities := usecase.NewEntityService(reg, store, log, usecase.WithHasher(auth.BcryptHasher{Cost: bcrypt.MinCost}))

	app := fiber.New(fiber.Config{ErrorHandler: apphttp.ErrorHandler})
	app.Use(apphttp.RequestIDMiddleware())
	app.Use(apphttp.RequestLogger(log))
	apphttp.Router(app, apphttp.RouterDeps{
		Entities:    entities,
		AuthUC:      auth.NewAuthUseCase(entities, store, auth.JWTConfig{Secret: testJWTSecret, ExpMinutes: testExpMin, Issuer: testIssuer}),
		StatementUC: reporting.NewStatementUseCase(entities, pdf.NewMarotoPDFGenerator()),
		Pinger:      store,
		JWTSecret:   testJWTSecret,
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path, token, body string) response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, raw: raw}
}

// signup registra y autentica un usuario; devuelve su token.
func signup(t *testing.T, app *fiber.App, username string) string {
	t.Helper()
	res := call(t, app, http.MethodPost, "/api/auth/register", "",
		`{"username":"`+username+`","password":"secreto123","companyName":"Empresa `+username+`"}`)
	require.Equal(t, fiber.StatusCreated, res.status, string(res.raw))

	res = call(t, app, http.MethodPost, "/api/auth/login", "", `{"username":"`+username+`","password":"secreto123"}`)
	require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
	token, _ := res.json(t)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

// ──────────────────────────────────────────────────────────────────────────────
// Auth
// ──────────────────────────────────────────────────────────────────────────────

func TestRouter_RegistroLoginYPerfil(t *testing.T) {
	app := newRouterApp(t)
	token := signup(t, app, "ana")

	res := call(t, app, http.MethodGet, "/api/users/me", token, "")
	require.Equal(t, fiber.StatusOK, res.status)
	me := res.json(t)
	assert.Equal(t, "ana", me["username"])
	assert.NotContains(t, me, "password")

	res = call(t, app, http.MethodPost, "/api/auth/register", "", `{"username":"ana","password":"secreto123","companyName":"X"}`)
	assert.Equal(t, fiber.StatusConflict, res.status)
	assert.Equal(t, "DUPLICATE", res.json(t)["code"])

	res = call(t, app, http.MethodPost, "/api/auth/register", "", `{"username":"bo","companyName":"X"}`)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "VALIDATION", res.json(t)["code"])

	res = call(t, app, http.MethodPost, "/api/auth/login", "", `{"username":"ana","password":"incorrecta"}`)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)

	res = call(t, app, http.MethodPost, "/api/auth/login", "", `{"username":"nadie","password":"secreto123"}`)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
}

func TestRouter_RutasProtegidasSinToken(t *testing.T) {
	app := newRouterApp(t)

	res := call(t, app, http.MethodGet, "/api/customers", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
}

// ──────────────────────────────────────────────────────────────────────────────
// CRUD genérico
// ──────────────────────────────────────────────────────────────────────────────

func TestRouter_CRUDCliente(t *testing.T) {
	app := newRouterApp(t)
	token := signup(t, app, "ana")

	res := call(t, app, http.MethodPost, "/api/customers", token, `{"name":"Acme","email":"pagos@acme.test"}`)
	require.Equal(t, fiber.StatusCreated, res.status, string(res.raw))
	customer := res.json(t)
	assert.Equal(t, float64(1), customer["id"])
	assert.Equal(t, "customer", customer["type"])
	assert.Equal(t, "0", customer["totalSales"])

	res = call(t, app, http.MethodPost, "/api/financial-records", token, `{"type":"payment","amount":500,"customerId":1}`)
	require.Equal(t, fiber.StatusCreated, res.status, string(res.raw))

	res = call(t, app, http.MethodGet, "/api/customers/1", token, "")
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, "500", res.json(t)["totalSales"])

	res = call(t, app, http.MethodPatch, "/api/customers/1", token, `{"notes":"cliente fiel"}`)
	require.Equal(t, fiber.StatusOK, res.status)
	updated := res.json(t)
	assert.Equal(t, "cliente fiel", updated["notes"])
	assert.Equal(t, "Acme", updated["name"])

	res = call(t, app, http.MethodDelete, "/api/customers/1", token, "")
	assert.Equal(t, fiber.StatusNoContent, res.status)

	res = call(t, app, http.MethodGet, "/api/customers/1", token, "")
	assert.Equal(t, fiber.StatusNotFound, res.status)

	res = call(t, app, http.MethodGet, "/api/financial-records/1", token, "")
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Nil(t, res.json(t)["customerId"], "la referencia anulable queda en null")
}

func TestRouter_ErroresDeEntrada(t *testing.T) {
	app := newRouterApp(t)
	token := signup(t, app, "ana")

	cases := []struct {
		name, method, path, body string
		status                   int
		code                     string
	}{
		{"recurso desconocido", http.MethodGet, "/api/widgets", "", fiber.StatusNotFound, "UNKNOWN_RESOURCE"},
		{"usuarios fuera del CRUD", http.MethodGet, "/api/users", "", fiber.StatusNotFound, "UNKNOWN_RESOURCE"},
		{"cuerpo no objeto", http.MethodPost, "/api/customers", `[1,2]`, fiber.StatusBadRequest, "INVALID_BODY"},
		{"campo desconocido", http.MethodPost, "/api/customers", `{"name":"A","nombre":"B"}`, fiber.StatusBadRequest, "UNKNOWN_FIELD"},
		{"tipo incorrecto", http.MethodPost, "/api/customers", `{"name":123}`, fiber.StatusBadRequest, "TYPE_MISMATCH"},
		{"fuera de rango", http.MethodPost, "/api/customers", `{"name":"A","customerSatisfaction":150}`, fiber.StatusBadRequest, "VALIDATION"},
		{"referencia colgante", http.MethodPost, "/api/complaints", `{"title":"x","customerId":999}`, fiber.StatusUnprocessableEntity, "DANGLING_REFERENCE"},
		{"id inválido", http.MethodGet, "/api/customers/abc", "", fiber.StatusNotFound, "NOT_FOUND"},
		{"filtro desconocido", http.MethodGet, "/api/customers?color=rojo", "", fiber.StatusBadRequest, "UNKNOWN_FIELD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := call(t, app, tc.method, tc.path, token, tc.body)
			assert.Equal(t, tc.status, res.status, string(res.raw))
			assert.Equal(t, tc.code, res.json(t)["code"])
		})
	}

	res := call(t, app, http.MethodGet, "/no-existe", "", "")
	assert.Equal(t, fiber.StatusNotFound, res.status)
	assert.Equal(t, "UNKNOWN_RESOURCE", res.json(t)["code"])
}

func TestRouter_BorradoBloqueadoPorReferencias(t *testing.T) {
	app := newRouterApp(t)
	token := signup(t, app, "ana")

	require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/api/employees", token, `{"name":"Luis"}`).status)
	require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/api/teams", token, `{"name":"Core"}`).status)
	res := call(t, app, http.MethodPost, "/api/team-members", token, `{"teamId":1,"employeeId":1}`)
	require.Equal(t, fiber.StatusCreated, res.status, string(res.raw))

	res = call(t, app, http.MethodDelete, "/api/employees/1", token, "")
	assert.Equal(t, fiber.StatusConflict, res.status)
	body := res.json(t)
	assert.Equal(t, "REFERENTIAL_INTEGRITY", body["code"])
	assert.NotEmpty(t, body["dependents"])
}

func TestRouter_ListadoConFiltrosYPaginas(t *testing.T) {
	app := newRouterApp(t)
	token := signup(t, app, "ana")

	for _, body := range []string{
		`{"name":"A"}`,
		`{"name":"B","type":"supplier"}`,
		`{"name":"C"}`,
	} {
		require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/api/customers", token, body).status)
	}

	res := call(t, app, http.MethodGet, "/api/customers?type=customer", token, "")
	require.Equal(t, fiber.StatusOK, res.status)
	body := res.json(t)
	assert.Len(t, body["items"], 2)

	res = call(t, app, http.MethodGet, "/api/customers?limit=1&offset=1", token, "")
	require.Equal(t, fiber.StatusOK, res.status)
	body = res.json(t)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].(map[string]any)["name"])
	assert.Equal(t, map[string]any{"limit": float64(1), "offset": float64(1), "count": float64(1)}, body["page"])
}

func TestRouter_AislamientoEntreUsuarios(t *testing.T) {
	app := newRouterApp(t)
	ana := signup(t, app, "ana")
	beto := signup(t, app, "beto")

	require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/api/customers", ana, `{"name":"De Ana"}`).status)

	assert.Equal(t, fiber.StatusNotFound, call(t, app, http.MethodGet, "/api/customers/1", beto, "").status)
	assert.Equal(t, fiber.StatusNotFound, call(t, app, http.MethodDelete, "/api/customers/1", beto, "").status)

	res := call(t, app, http.MethodGet, "/api/customers", beto, "")
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Empty(t, res.json(t)["items"])

	res = call(t, app, http.MethodPost, "/api/complaints", beto, `{"title":"x","customerId":1}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, res.status)
	assert.Equal(t, "CROSS_OWNER_REFERENCE", res.json(t)["code"])
}

func TestRouter_MiembrosDeEquipoSoloDelDueño(t *testing.T) {
	app := newRouterApp(t)
	ana := signup(t, app, "ana")
	beto := signup(t, app, "beto")

	require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/api/employees", ana, `{"name":"Luis"}`).status)
	require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/api/teams", ana, `{"name":"Core"}`).status)
	require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/api/team-members", ana, `{"teamId":1,"employeeId":1}`).status)

	res := call(t, app, http.MethodGet, "/api/team-members", ana, "")
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Len(t, res.json(t)["items"], 1)

	res = call(t, app, http.MethodGet, "/api/team-members", beto, "")
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Empty(t, res.json(t)["items"], "beto no tiene equipos")

	require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/api/teams", beto, `{"name":"Otro"}`).status)
	res = call(t, app, http.MethodGet, "/api/team-members", beto, "")
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Empty(t, res.json(t)["items"], "un equipo propio vacío no expone miembros ajenos")
}

// ──────────────────────────────────────────────────────────────────────────────
// Estado de cuenta, salud y métricas
// ──────────────────────────────────────────────────────────────────────────────

func TestRouter_EstadoDeCuentaPDF(t *testing.T) {
	app := newRouterApp(t)
	token := signup(t, app, "ana")
	require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/api/customers", token, `{"name":"Acme"}`).status)
	require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/api/financial-records", token, `{"type":"invoice","amount":"1250.50","customerId":1}`).status)

	res := call(t, app, http.MethodGet, "/api/customers/1/statement.pdf", token, "")
	require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
	assert.Equal(t, "application/pdf", res.header.Get("Content-Type"))
	assert.Contains(t, res.header.Get("Content-Disposition"), `attachment; filename="estado_cuenta_1_`)
	assert.True(t, strings.HasPrefix(string(res.raw), "%PDF"))

	res = call(t, app, http.MethodGet, "/api/customers/9/statement.pdf", token, "")
	assert.Equal(t, fiber.StatusNotFound, res.status)
}

func TestRouter_SaludYRaiz(t *testing.T) {
	app := newRouterApp(t)

	res := call(t, app, http.MethodGet, "/health", "", "")
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, map[string]any{"status": "ok", "storage": "up"}, res.json(t))

	res = call(t, app, http.MethodGet, "/", "", "")
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, "conexión exitosa", res.json(t)["message"])

	res = call(t, app, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, fiber.StatusOK, res.status)
}

func TestRouter_MetricasTrasPeticionesConDistintosMetodos(t *testing.T) {
	app := newRouterApp(t)
	token := signup(t, app, "ana")

	for i := 0; i < 3; i++ {
		require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/api/customers", token, `{"name":"Acme"}`).status)
		call(t, app, http.MethodGet, "/api/customers", token, "")
		call(t, app, http.MethodPatch, "/api/customers/1", token, `{"notes":"x"}`)
		call(t, app, http.MethodGet, "/health", "", "")
		call(t, app, http.MethodDelete, "/api/customers/2", token, "")
	}

	for i := 0; i < 2; i++ {
		res := call(t, app, http.MethodGet, "/metrics", "", "")
		require.Equal(t, fiber.StatusOK, res.status, string(res.raw))
		body := string(res.raw)
		assert.Contains(t, body, `sbm_http_requests_total{method="POST",route="/api/:kind",status="201"}`)
		assert.Contains(t, body, `method="PATCH"`)
		assert.Contains(t, body, `method="DELETE"`)
		assert.NotContains(t, body, `method="GETT"`)
	}
}

func TestRouter_RequestID(t *testing.T) {
	app := newRouterApp(t)

	res := call(t, app, http.MethodGet, "/health", "", "")
	assert.NotEmpty(t, res.header.Get(apphttp.HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(apphttp.HeaderRequestID, "req-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get(apphttp.HeaderRequestID))
}
