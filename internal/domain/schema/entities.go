package schema

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Valores enumerados usados fuera de las reglas de validación.
const (
	CustomerTypeCustomer = "customer"
	CustomerTypeSupplier = "supplier"

	FinancialInvoice = "invoice"
	FinancialExpense = "expense"
	FinancialPayment = "payment"

	ComplaintOpen     = "open"
	ComplaintResolved = "resolved"

	TaskPending   = "pending"
	TaskCompleted = "completed"
)

var emptyObject = json.RawMessage(`{}`)

func idField() Field {
	return Field{Name: FieldID, Column: "id", Type: TypeInt, Access: ReadOnly}
}

func ownerField() Field {
	return Field{Name: FieldUserID, Column: "user_id", Type: TypeRef, Ref: KindUser, Access: ReadOnly}
}

func createdField(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeTime, Access: ReadOnly}
}

func text(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeString, Nullable: true}
}

func requiredText(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeString, Required: true, Rule: "required,max=255"}
}

func ref(name, column string, to Kind) Field {
	return Field{Name: name, Column: column, Type: TypeRef, Ref: to, Nullable: true}
}

func money(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeDecimal, Nullable: true, NonNegative: true}
}

func moneyDefaultZero(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeDecimal, Default: decimal.Zero, NonNegative: true}
}

func timestamp(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeTime, Nullable: true}
}

func enum(name, column, def, values string) Field {
	return Field{Name: name, Column: column, Type: TypeString, Default: def, Rule: "oneof=" + values}
}

func counter(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeInt, Default: int64(0), Rule: "gte=0"}
}

func percent(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeInt, Default: int64(0), Rule: "min=0,max=100"}
}

func jsonField(name, column string) Field {
	return Field{Name: name, Column: column, Type: TypeJSON, Nullable: true}
}

func transient(name string, t FieldType, rule string) Field {
	return Field{Name: name, Type: t, Nullable: true, Rule: rule}
}

func userSchema() *EntitySchema {
	return &EntitySchema{
		Kind:         KindUser,
		Table:        "users",
		Resource:     "users",
		CreatedField: FieldCreatedAt,
		Fields: []Field{
			idField(),
			{Name: "username", Column: "username", Type: TypeString, Required: true, Unique: true, Rule: "required,min=3,max=64"},
			{Name: "password", Column: "password", Type: TypeString, Required: true, Access: WriteOnly, Rule: "required,min=8,max=72"},
			requiredText("companyName", "company_name"),
			text("businessType", "business_type"),
			text("webLink", "web_link"),
			text("logo", "logo"),
			createdField(FieldCreatedAt, "created_at"),
			text("about", "about"),
			text("contactInfo", "contact_info"),
			text("location", "location"),
		},
	}
}

func customerSchema() *EntitySchema {
	return &EntitySchema{
		Kind:         KindCustomer,
		Table:        "customers",
		Resource:     "customers",
		OwnerField:   FieldUserID,
		CreatedField: FieldCreatedAt,
		Fields: []Field{
			idField(),
			ownerField(),
			requiredText("name", "name"),
			text("email", "email"),
			text("phone", "phone"),
			text("address", "address"),
			createdField(FieldCreatedAt, "created_at"),
			text("notes", "notes"),
			enum("type", "type", CustomerTypeCustomer, "customer supplier"),
			moneyDefaultZero("totalSales", "total_sales"),
			moneyDefaultZero("totalPurchases", "total_purchases"),
			{Name: "complaintCount", Column: "complaint_count", Type: TypeInt, Default: int64(0), Access: ReadOnly, Derived: true},
			percent("customerSatisfaction", "customer_satisfaction"),
		},
	}
}

func complaintSchema() *EntitySchema {
	return &EntitySchema{
		Kind:         KindComplaint,
		Table:        "complaints",
		Resource:     "complaints",
		OwnerField:   FieldUserID,
		CreatedField: FieldCreatedAt,
		Fields: []Field{
			idField(),
			ownerField(),
			ref("customerId", "customer_id", KindCustomer),
			requiredText("title", "title"),
			text("description", "description"),
			enum("status", "status", ComplaintOpen, "open in-progress resolved"),
			enum("priority", "priority", "medium", "low medium high urgent"),
			ref("assignedTo", "assigned_to", KindEmployee),
			createdField(FieldCreatedAt, "created_at"),
			timestamp("resolvedAt", "resolved_at"),
			{Name: "satisfactionRating", Column: "satisfaction_rating", Type: TypeInt, Nullable: true, Rule: "min=0,max=5"},
			text("resolution", "resolution"),
		},
	}
}

func departmentSchema() *EntitySchema {
	return &EntitySchema{
		Kind:         KindDepartment,
		Table:        "departments",
		Resource:     "departments",
		OwnerField:   FieldUserID,
		CreatedField: FieldCreatedAt,
		Fields: []Field{
			idField(),
			ownerField(),
			requiredText("name", "name"),
			text("description", "description"),
			ref("managerId", "manager_id", KindEmployee),
			createdField(FieldCreatedAt, "created_at"),
			money("budget", "budget"),
			jsonField("goals", "goals"),
			// headcount lo fija el cliente; no se deriva de Employee.
			{Name: "headcount", Column: "headcount", Type: TypeInt, Nullable: true, Rule: "gte=0"},
		},
	}
}

func employeeSchema() *EntitySchema {
	return &EntitySchema{
		Kind:       KindEmployee,
		Table:      "employees",
		Resource:   "employees",
		OwnerField: FieldUserID,
		Fields: []Field{
			idField(),
			ownerField(),
			requiredText("name", "name"),
			text("email", "email"),
			text("phone", "phone"),
			text("position", "position"),
			timestamp("startDate", "start_date"),
			enum("status", "status", "active", "active inactive on-leave terminated"),
			ref("departmentId", "department_id", KindDepartment),
			{Name: "permissions", Column: "permissions", Type: TypeJSON, Default: emptyObject},
			percent("performance", "performance"),
			money("salary", "salary"),
			counter("tasksCompleted", "tasks_completed"),
			counter("tasksAssigned", "tasks_assigned"),
		},
	}
}

func teamSchema() *EntitySchema {
	return &EntitySchema{
		Kind:         KindTeam,
		Table:        "teams",
		Resource:     "teams",
		OwnerField:   FieldUserID,
		CreatedField: FieldCreatedAt,
		Fields: []Field{
			idField(),
			ownerField(),
			requiredText("name", "name"),
			text("description", "description"),
			ref("departmentId", "department_id", KindDepartment),
			ref("leaderId", "leader_id", KindEmployee),
			createdField(FieldCreatedAt, "created_at"),
			jsonField("goals", "goals"),
			enum("status", "status", "active", "active inactive archived"),
		},
	}
}

func teamMemberSchema() *EntitySchema {
	return &EntitySchema{
		Kind:         KindTeamMember,
		Table:        "team_members",
		Resource:     "team-members",
		ScopeField:   "teamId",
		CreatedField: "joinedAt",
		Fields: []Field{
			idField(),
			{Name: "teamId", Column: "team_id", Type: TypeRef, Ref: KindTeam, Required: true},
			{Name: "employeeId", Column: "employee_id", Type: TypeRef, Ref: KindEmployee, Required: true},
			text("role", "role"),
			createdField("joinedAt", "joined_at"),
			{Name: "isActive", Column: "is_active", Type: TypeBool, Default: true},
			jsonField("permissions", "permissions"),
		},
	}
}

func productSchema() *EntitySchema {
	return &EntitySchema{
		Kind:       KindProduct,
		Table:      "products",
		Resource:   "products",
		OwnerField: FieldUserID,
		Fields: []Field{
			idField(),
			ownerField(),
			requiredText("name", "name"),
			text("description", "description"),
			money("price", "price"),
			text("category", "category"),
			counter("inventory", "inventory"),
			text("image", "image"),
			{Name: "isPublished", Column: "is_published", Type: TypeBool, Default: false},
			counter("sales", "sales"),
			moneyDefaultZero("revenue", "revenue"),
			money("cost", "cost"),
			money("discount", "discount"),
			text("promoCode", "promo_code"),
			{Name: "socialMediaLinks", Column: "social_media_links", Type: TypeJSON, Default: emptyObject},
			transient("popularity", TypeInt, "gte=0"),
		},
	}
}

func financialRecordSchema() *EntitySchema {
	return &EntitySchema{
		Kind:       KindFinancialRecord,
		Table:      "financial_records",
		Resource:   "financial-records",
		OwnerField: FieldUserID,
		Fields: []Field{
			idField(),
			ownerField(),
			{Name: "type", Column: "type", Type: TypeString, Required: true, Rule: "required,oneof=invoice expense payment"},
			{Name: "amount", Column: "amount", Type: TypeDecimal, Required: true, NonNegative: true},
			text("description", "description"),
			{Name: "date", Column: "date", Type: TypeTime, DefaultNow: true},
			text("category", "category"),
			ref("customerId", "customer_id", KindCustomer),
			enum("status", "status", "pending", "pending paid overdue"),
			timestamp("dueDate", "due_date"),
			text("reference", "reference"),
			transient("relatedEntityId", TypeInt, "min=1"),
			transient("relatedEntityType", TypeString, "max=64"),
			transient("taxDeductible", TypeBool, ""),
		},
	}
}

func budgetSchema() *EntitySchema {
	return &EntitySchema{
		Kind:       KindBudget,
		Table:      "budgets",
		Resource:   "budgets",
		OwnerField: FieldUserID,
		Fields: []Field{
			idField(),
			ownerField(),
			requiredText("name", "name"),
			{Name: "amount", Column: "amount", Type: TypeDecimal, Required: true, NonNegative: true},
			{Name: "startDate", Column: "start_date", Type: TypeTime, Required: true},
			{Name: "endDate", Column: "end_date", Type: TypeTime, Required: true},
			text("category", "category"),
			ref("departmentId", "department_id", KindDepartment),
			ref("projectId", "project_id", KindProject),
			moneyDefaultZero("actualSpend", "actual_spend"),
			transient("period", TypeString, "max=64"),
			transient("description", TypeString, ""),
			transient("status", TypeString, "max=64"),
		},
	}
}

func projectSchema() *EntitySchema {
	return &EntitySchema{
		Kind:       KindProject,
		Table:      "projects",
		Resource:   "projects",
		OwnerField: FieldUserID,
		Fields: []Field{
			idField(),
			ownerField(),
			requiredText("name", "name"),
			text("description", "description"),
			timestamp("startDate", "start_date"),
			timestamp("endDate", "end_date"),
			enum("status", "status", "planning", "planning in-progress completed"),
			money("budget", "budget"),
			ref("teamId", "team_id", KindTeam),
			percent("progress", "progress"),
			transient("priority", TypeString, "oneof=low medium high urgent"),
			transient("completedAt", TypeTime, ""),
		},
	}
}

func meetingSchema() *EntitySchema {
	return &EntitySchema{
		Kind:       KindMeeting,
		Table:      "meetings",
		Resource:   "meetings",
		OwnerField: FieldUserID,
		Fields: []Field{
			idField(),
			ownerField(),
			requiredText("title", "title"),
			text("description", "description"),
			{Name: "date", Column: "date", Type: TypeTime, Required: true},
			{Name: "duration", Column: "duration", Type: TypeInt, Nullable: true, Rule: "gte=0"},
			ref("teamId", "team_id", KindTeam),
			ref("projectId", "project_id", KindProject),
			enum("status", "status", "scheduled", "scheduled completed cancelled"),
			text("notes", "notes"),
			transient("startTime", TypeString, "max=32"),
			transient("endTime", TypeString, "max=32"),
			transient("location", TypeString, "max=255"),
			transient("agenda", TypeString, ""),
			transient("attendees", TypeIntList, "dive,min=1"),
		},
	}
}

func taskSchema() *EntitySchema {
	return &EntitySchema{
		Kind:       KindTask,
		Table:      "tasks",
		Resource:   "tasks",
		OwnerField: FieldUserID,
		Fields: []Field{
			idField(),
			ownerField(),
			requiredText("title", "title"),
			text("description", "description"),
			timestamp("dueDate", "due_date"),
			enum("status", "status", TaskPending, "pending in-progress completed"),
			enum("priority", "priority", "medium", "low medium high urgent"),
			ref("assignedTo", "assigned_to", KindEmployee),
			text("category", "category"),
			ref("projectId", "project_id", KindProject),
			ref("teamId", "team_id", KindTeam),
			money("cost", "cost"),
			percent("progress", "progress"),
			timestamp("startDate", "start_date"),
			timestamp("completedDate", "completed_date"),
		},
	}
}
