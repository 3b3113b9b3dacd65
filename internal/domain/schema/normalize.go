package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tlotliso/sbm-api/internal/domain"
)

// Mode distingue la normalización de un alta de la de una actualización parcial.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

const dateLayout = "2006-01-02"

// Normalize convierte un payload crudo en un Record canónico.
// En ModeCreate aplica los defaults documentados a los campos opcionales omitidos;
// en ModeUpdate devuelve solo los campos tocados.
// Campos desconocidos o gestionados por el servidor -> UnknownFieldError;
// tipos incompatibles -> TypeMismatchError.
func (r *Registry) Normalize(kind Kind, raw Payload, mode Mode, now time.Time) (Record, error) {
	s, ok := r.Schema(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	rec := make(Record, len(s.Fields))
	for _, name := range names {
		f, ok := s.Field(name)
		if !ok || !f.ClientWritable() {
			return nil, &domain.UnknownFieldError{Kind: string(kind), Field: name}
		}
		v, err := convert(f, raw[name])
		if err != nil {
			return nil, &domain.TypeMismatchError{
				Kind:     string(kind),
				Field:    name,
				Expected: f.Type.String(),
				Got:      describe(raw[name]),
			}
		}
		if v == nil && !f.Nullable && !f.Required {
			// null explícito sobre un campo no nulo con default
			return nil, &domain.TypeMismatchError{Kind: string(kind), Field: name, Expected: f.Type.String(), Got: "null"}
		}
		rec[name] = v
	}

	if mode == ModeUpdate {
		return rec, nil
	}

	for _, f := range s.Fields {
		if _, present := rec[f.Name]; present || !f.ClientWritable() || f.Required {
			continue
		}
		switch {
		case f.DefaultNow:
			rec[f.Name] = now.UTC()
		case f.Default != nil:
			rec[f.Name] = f.Default
		case f.Transient():
			// los transitorios omitidos no aparecen en el record
		default:
			rec[f.Name] = nil
		}
	}
	// derivados y contadores de servidor arrancan en su default
	for _, f := range s.Fields {
		if f.Access == ReadOnly && f.Default != nil {
			rec[f.Name] = f.Default
		}
	}
	return rec, nil
}

// ParseQueryValue convierte un valor de query string al tipo canónico del campo
// (para filtros de listado).
func (r *Registry) ParseQueryValue(kind Kind, name, value string) (any, error) {
	s, ok := r.Schema(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	f, ok := s.Field(name)
	if !ok || f.Transient() || f.Access == WriteOnly || f.Type == TypeJSON {
		return nil, &domain.UnknownFieldError{Kind: string(kind), Field: name}
	}
	if value == "null" && f.Nullable {
		return nil, nil
	}
	var in any = value
	switch f.Type {
	case TypeInt, TypeRef:
		in = json.Number(value)
	case TypeBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, &domain.TypeMismatchError{Kind: string(kind), Field: name, Expected: f.Type.String(), Got: strconv.Quote(value)}
		}
		in = b
	}
	v, err := convert(f, in)
	if err != nil {
		return nil, &domain.TypeMismatchError{Kind: string(kind), Field: name, Expected: f.Type.String(), Got: strconv.Quote(value)}
	}
	return v, nil
}

// convert lleva un valor crudo al tipo canónico del campo.
func convert(f Field, in any) (any, error) {
	if in == nil {
		return nil, nil
	}
	switch f.Type {
	case TypeInt, TypeRef:
		return toInt(in)
	case TypeString:
		s, ok := in.(string)
		if !ok {
			return nil, errMismatch
		}
		return s, nil
	case TypeDecimal:
		return toDecimal(in)
	case TypeBool:
		b, ok := in.(bool)
		if !ok {
			return nil, errMismatch
		}
		return b, nil
	case TypeTime:
		return toTime(in)
	case TypeJSON:
		switch v := in.(type) {
		case json.RawMessage:
			return v, nil
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, errMismatch
			}
			return json.RawMessage(b), nil
		}
	case TypeIntList:
		return toIntList(in)
	}
	return nil, errMismatch
}

var errMismatch = fmt.Errorf("type mismatch")

func toInt(in any) (int64, error) {
	switch v := in.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, errMismatch
		}
		return floatToInt(f)
	case float64:
		return floatToInt(v)
	}
	return 0, errMismatch
}

// floatToInt acepta solo enteros representables en int64. float64(MaxInt64) redondea a 2^63,
// por eso el límite superior es exclusivo.
func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, errMismatch
	}
	return int64(f), nil
}

func toDecimal(in any) (decimal.Decimal, error) {
	switch v := in.(type) {
	case decimal.Decimal:
		return v, nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, errMismatch
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	}
	return decimal.Zero, errMismatch
}

func toTime(in any) (time.Time, error) {
	switch v := in.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse(dateLayout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errMismatch
}

func toIntList(in any) ([]int64, error) {
	switch v := in.(type) {
	case []int64:
		return append([]int64(nil), v...), nil
	case []int:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, nil
	case []any:
		out := make([]int64, 0, len(v))
		for _, item := range v {
			n, err := toInt(item)
			if err != nil {
				return nil, errMismatch
			}
			out = append(out, n)
		}
		return out, nil
	}
	return nil, errMismatch
}

// describe nombre legible del tipo JSON recibido.
func describe(in any) string {
	switch in.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64, int32:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", in)
}
