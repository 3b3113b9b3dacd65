// Package metrics define y registra las métricas Prometheus del servicio.
// Todas se registran en el registro por defecto al importar el paquete y se
// exponen en GET /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sbm"

// ── HTTP ──────────────────────────────────────────────────────────────────────

// HTTPRequestsTotal peticiones atendidas.
// Labels: method, route (patrón registrado, no la URL cruda), status.
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration latencia por ruta.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// ── Entidades ─────────────────────────────────────────────────────────────────

// EntityOperationsTotal operaciones del servicio de entidades.
// Labels:
//   - kind: tipo de entidad (customer, task, ...)
//   - op: create, update, delete, get, list
//   - result: ok o el código de error devuelto (VALIDATION, NOT_FOUND, ...)
var EntityOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entity_operations_total",
		Help:      "Total number of entity operations by kind, operation and result.",
	},
	[]string{"kind", "op", "result"},
)

// StorageErrorsTotal fallos de almacenamiento (errores reintentables).
var StorageErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_errors_total",
		Help:      "Total number of storage failures surfaced to clients.",
	},
)

// AuthAttemptsTotal intentos de login por resultado (success, invalid_credentials, error).
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of login attempts by result.",
	},
	[]string{"result"},
)

// Handler expone el registro por defecto en formato Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}
