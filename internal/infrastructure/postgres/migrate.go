package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/tlotliso/sbm-api/internal/domain/schema"
)

// DDL sentencias idempotentes que crean las tablas del registro. Primero las tablas,
// después las claves foráneas (hay ciclos: departments.manager_id <-> employees.department_id).
// Referencias obligatorias: ON DELETE RESTRICT; anulables: ON DELETE SET NULL.
func DDL(registry *schema.Registry) []string {
	var stmts []string
	for _, kind := range registry.Kinds() {
		s, _ := registry.Schema(kind)
		stmts = append(stmts, createTable(s))
	}
	for _, e := range registry.Edges() {
		from, _ := registry.Schema(e.From)
		to, _ := registry.Schema(e.To)
		stmts = append(stmts, addForeignKey(from, to, e), createIndex(from, e))
	}
	return stmts
}

// Migrate aplica DDL sobre q (pool o tx).
func Migrate(ctx context.Context, q Querier, registry *schema.Registry) error {
	for _, stmt := range DDL(registry) {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func createTable(s *schema.EntitySchema) string {
	fields := s.Persisted()
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, "\t"+columnDef(f))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", ident(s.Table), strings.Join(cols, ",\n"))
}

func columnDef(f schema.Field) string {
	if f.Name == schema.FieldID {
		return ident(f.Column) + " BIGSERIAL PRIMARY KEY"
	}
	def := ident(f.Column) + " " + sqlType(f.Type)
	if !f.Nullable {
		def += " NOT NULL"
	}
	if f.Unique {
		def += " UNIQUE"
	}
	return def
}

func sqlType(t schema.FieldType) string {
	switch t {
	case schema.TypeInt, schema.TypeRef:
		return "BIGINT"
	case schema.TypeDecimal:
		// sin precisión ni escala: se guarda el valor exacto recibido
		return "NUMERIC"
	case schema.TypeBool:
		return "BOOLEAN"
	case schema.TypeTime:
		return "TIMESTAMPTZ"
	case schema.TypeJSON:
		return "JSONB"
	}
	return "TEXT"
}

func addForeignKey(from, to *schema.EntitySchema, e schema.Edge) string {
	name := fmt.Sprintf("fk_%s_%s", from.Table, e.Column)
	onDelete := "RESTRICT"
	if e.Nullable {
		onDelete = "SET NULL"
	}
	return fmt.Sprintf(`DO $$ BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
		ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (id) ON DELETE %s;
	END IF;
END $$`, name, ident(from.Table), ident(name), ident(e.Column), ident(to.Table), onDelete)
}

func createIndex(from *schema.EntitySchema, e schema.Edge) string {
	name := fmt.Sprintf("idx_%s_%s", from.Table, e.Column)
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", ident(name), ident(from.Table), ident(e.Column))
}
