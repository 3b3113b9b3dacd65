// Package schema define las entidades del modelo (campos, tipos, defaults, nulabilidad)
// y el registro explícito que el resto de componentes recibe al arrancar.
package schema

import "fmt"

// Kind identifica un tipo de entidad.
type Kind string

const (
	KindUser            Kind = "user"
	KindCustomer        Kind = "customer"
	KindComplaint       Kind = "complaint"
	KindDepartment      Kind = "department"
	KindEmployee        Kind = "employee"
	KindTeam            Kind = "team"
	KindTeamMember      Kind = "team_member"
	KindProduct         Kind = "product"
	KindFinancialRecord Kind = "financial_record"
	KindBudget          Kind = "budget"
	KindProject         Kind = "project"
	KindMeeting         Kind = "meeting"
	KindTask            Kind = "task"
)

// Nombres de campos de sistema compartidos.
const (
	FieldID        = "id"
	FieldUserID    = "userId"
	FieldCreatedAt = "createdAt"
)

// FieldType tipo canónico del valor en un Record.
type FieldType int

const (
	TypeInt     FieldType = iota // int64
	TypeString                   // string
	TypeDecimal                  // decimal.Decimal
	TypeBool                     // bool
	TypeTime                     // time.Time (UTC)
	TypeJSON                     // json.RawMessage
	TypeRef                      // int64, clave foránea
	TypeIntList                  // []int64 (solo campos transitorios)
)

func (t FieldType) String() string {
	switch t {
	case TypeInt:
		return "integer"
	case TypeString:
		return "string"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "boolean"
	case TypeTime:
		return "timestamp"
	case TypeJSON:
		return "json"
	case TypeRef:
		return "reference"
	case TypeIntList:
		return "integer list"
	}
	return "unknown"
}

// Access quién puede escribir un campo.
type Access int

const (
	Writable  Access = iota // creatable y actualizable por el cliente
	ReadOnly                // gestionado por el servidor (id, userId, createdAt, derivados)
	WriteOnly               // aceptado en escritura, nunca devuelto (password)
)

// Field declaración de un campo de la entidad.
type Field struct {
	Name        string // nombre JSON (camelCase)
	Column      string // columna SQL; vacío si es transitorio
	Type        FieldType
	Nullable    bool
	Required    bool   // obligatorio y no vacío al crear
	Default     any    // valor canónico aplicado al crear si se omite
	DefaultNow  bool   // default = instante de creación
	Rule        string // reglas go-playground/validator para valores no nulos
	Access      Access
	Ref         Kind // destino cuando Type == TypeRef
	Derived     bool // recalculado desde filas relacionadas
	Unique      bool
	NonNegative bool // solo decimales: rechaza valores < 0
}

// Transient indica si el campo se valida pero no se persiste.
func (f Field) Transient() bool { return f.Column == "" }

// ClientWritable indica si el cliente puede enviarlo en create/update.
func (f Field) ClientWritable() bool { return f.Access != ReadOnly }

// Edge arista de la relación: from.Field -> To.
type Edge struct {
	From     Kind
	Field    string
	Column   string
	To       Kind
	Nullable bool
}

func (e Edge) String() string {
	mode := "required"
	if e.Nullable {
		mode = "nullable"
	}
	return fmt.Sprintf("%s.%s -> %s (%s)", e.From, e.Field, e.To, mode)
}

// EntitySchema definición plana de una entidad (sin cadenas base+extensión).
type EntitySchema struct {
	Kind     Kind
	Table    string
	Resource string // segmento de URL, p. ej. "financial-records"
	Fields   []Field
	// OwnerField campo con el userId dueño de la fila; vacío en User y TeamMember.
	OwnerField string
	// ScopeField referencia por la que se hereda el dueño (TeamMember.teamId).
	ScopeField string
	// CreatedField campo con el instante de creación, inmutable.
	CreatedField string

	index map[string]int
}

func (s *EntitySchema) build() {
	s.index = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		s.index[f.Name] = i
	}
}

// Field busca un campo por nombre JSON.
func (s *EntitySchema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Persisted campos con columna, en orden de declaración.
func (s *EntitySchema) Persisted() []Field {
	out := make([]Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		if !f.Transient() {
			out = append(out, f)
		}
	}
	return out
}

// Creatable lista explícita de campos que el cliente puede enviar.
func (s *EntitySchema) Creatable() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.ClientWritable() {
			out = append(out, f.Name)
		}
	}
	return out
}

// Refs campos de tipo referencia (incluye userId).
func (s *EntitySchema) Refs() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Type == TypeRef {
			out = append(out, f)
		}
	}
	return out
}

// Registry registro explícito de esquemas, construido una vez al arrancar.
type Registry struct {
	schemas    map[Kind]*EntitySchema
	order      []Kind
	byResource map[string]Kind
	edges      []Edge
}

// NewRegistry construye el registro con todas las entidades del modelo.
func NewRegistry() *Registry {
	return newRegistry(
		userSchema(),
		customerSchema(),
		complaintSchema(),
		departmentSchema(),
		employeeSchema(),
		teamSchema(),
		teamMemberSchema(),
		productSchema(),
		financialRecordSchema(),
		budgetSchema(),
		projectSchema(),
		meetingSchema(),
		taskSchema(),
	)
}

func newRegistry(schemas ...*EntitySchema) *Registry {
	r := &Registry{
		schemas:    make(map[Kind]*EntitySchema, len(schemas)),
		byResource: make(map[string]Kind, len(schemas)),
	}
	for _, s := range schemas {
		s.build()
		r.schemas[s.Kind] = s
		r.order = append(r.order, s.Kind)
		r.byResource[s.Resource] = s.Kind
	}
	for _, k := range r.order {
		for _, f := range r.schemas[k].Refs() {
			r.edges = append(r.edges, Edge{
				From:     k,
				Field:    f.Name,
				Column:   f.Column,
				To:       f.Ref,
				Nullable: f.Nullable,
			})
		}
	}
	return r
}

// Schema devuelve el esquema de un tipo.
func (r *Registry) Schema(kind Kind) (*EntitySchema, bool) {
	s, ok := r.schemas[kind]
	return s, ok
}

// Kinds tipos registrados en orden de declaración.
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.order...)
}

// KindForResource resuelve el segmento de URL a un tipo.
func (r *Registry) KindForResource(resource string) (Kind, bool) {
	k, ok := r.byResource[resource]
	return k, ok
}

// Edges todas las aristas del grafo de relaciones.
func (r *Registry) Edges() []Edge {
	return append([]Edge(nil), r.edges...)
}

// EdgesTo aristas cuyo destino es kind.
func (r *Registry) EdgesTo(kind Kind) []Edge {
	var out []Edge
	for _, e := range r.edges {
		if e.To == kind {
			out = append(out, e)
		}
	}
	return out
}

// EdgeFor arista declarada por kind.field.
func (r *Registry) EdgeFor(kind Kind, field string) (Edge, bool) {
	for _, e := range r.edges {
		if e.From == kind && e.Field == field {
			return e, true
		}
	}
	return Edge{}, false
}
