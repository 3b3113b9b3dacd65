package derived

import (
	"time"

	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

// Stamp completa los campos de ciclo de vida de la propia fila cuando el estado cambia:
// Complaint -> resolved fija resolvedAt; Task -> completed fija completedDate y progress=100.
// Solo se rellenan los campos que el cliente no envió (supplied). current es nil en altas.
// Devuelve rec modificado en sitio.
func Stamp(kind schema.Kind, rec, current schema.Record, supplied schema.Payload, now time.Time) schema.Record {
	switch kind {
	case schema.KindComplaint:
		if transitioned(rec, current, "status", schema.ComplaintResolved) {
			fill(rec, current, supplied, "resolvedAt", now.UTC())
		}
	case schema.KindTask:
		if transitioned(rec, current, "status", schema.TaskCompleted) {
			fill(rec, current, supplied, "completedDate", now.UTC())
			if _, ok := supplied["progress"]; !ok {
				rec["progress"] = int64(100)
			}
		}
	}
	return rec
}

// transitioned indica si rec lleva field a value desde otro valor.
func transitioned(rec, current schema.Record, field, value string) bool {
	next, ok := rec.String(field)
	if !ok || next != value {
		return false
	}
	if current == nil {
		return true
	}
	prev, _ := current.String(field)
	return prev != value
}

func fill(rec, current schema.Record, supplied schema.Payload, field string, value any) {
	if _, ok := supplied[field]; ok {
		return
	}
	if current != nil && !current.IsNull(field) {
		return
	}
	rec[field] = value
}
