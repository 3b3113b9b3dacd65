package schema

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Record representación canónica de una fila: nombre JSON -> valor tipado
// (int64, string, decimal.Decimal, bool, time.Time, json.RawMessage, []int64 o nil).
type Record map[string]any

// ID clave primaria (0 si aún no se ha persistido).
func (r Record) ID() int64 {
	v, _ := r.Int(FieldID)
	return v
}

// Has indica si el campo está presente (aunque sea nil).
func (r Record) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// IsNull indica si el campo está ausente o es nil.
func (r Record) IsNull(name string) bool {
	return r[name] == nil
}

// Int valor entero; false si es nil o de otro tipo.
func (r Record) Int(name string) (int64, bool) {
	v, ok := r[name].(int64)
	return v, ok
}

// Ref valor de una clave foránea; false si es nula.
func (r Record) Ref(name string) (int64, bool) {
	return r.Int(name)
}

// String valor de texto.
func (r Record) String(name string) (string, bool) {
	v, ok := r[name].(string)
	return v, ok
}

// Decimal valor decimal.
func (r Record) Decimal(name string) (decimal.Decimal, bool) {
	v, ok := r[name].(decimal.Decimal)
	return v, ok
}

// Bool valor booleano.
func (r Record) Bool(name string) (bool, bool) {
	v, ok := r[name].(bool)
	return v, ok
}

// Time valor temporal.
func (r Record) Time(name string) (time.Time, bool) {
	v, ok := r[name].(time.Time)
	return v, ok
}

// JSON valor JSON crudo.
func (r Record) JSON(name string) (json.RawMessage, bool) {
	v, ok := r[name].(json.RawMessage)
	return v, ok
}

// Clone copia superficial; los valores canónicos no se mutan en sitio.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge devuelve una copia de r con los campos de patch aplicados.
func (r Record) Merge(patch Record) Record {
	out := r.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Keys nombres presentes en el record.
func (r Record) Keys() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	return out
}

// Persistable subconjunto con columna en el esquema (descarta transitorios).
func (r Record) Persistable(s *EntitySchema) Record {
	out := make(Record, len(r))
	for k, v := range r {
		if f, ok := s.Field(k); ok && !f.Transient() {
			out[k] = v
		}
	}
	return out
}

// Public vista para el cliente: descarta campos de solo escritura y transitorios.
func (r Record) Public(s *EntitySchema) Record {
	out := make(Record, len(r))
	for k, v := range r {
		f, ok := s.Field(k)
		if !ok || f.Access == WriteOnly || f.Transient() {
			continue
		}
		out[k] = v
	}
	return out
}

// Payload datos crudos recibidos del cliente (JSON decodificado con UseNumber o valores Go).
type Payload map[string]any
