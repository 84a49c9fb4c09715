package models

// Role represents a caller identity class drawn from a fixed enumeration.
type Role string

const (
	RoleAnalyst Role = "analyst"
	RoleAdmin   Role = "admin"
	RoleAuditor Role = "auditor"
)

// KnownRoles lists every role the gateway recognizes.
// Roles outside this set resolve to deny everywhere.
var KnownRoles = []Role{RoleAnalyst, RoleAdmin, RoleAuditor}

// IsKnown reports whether the role belongs to the fixed enumeration.
func (r Role) IsKnown() bool {
	switch r {
	case RoleAnalyst, RoleAdmin, RoleAuditor:
		return true
	}
	return false
}

// Identity is the request-scoped principal. No session or account store;
// every authorization call is self-contained.
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// OperationClass categorizes an operation as read or write.
// The class is fixed at registration and never inferred from arguments.
type OperationClass string

const (
	ClassRead  OperationClass = "read"
	ClassWrite OperationClass = "write"
)

// Operation describes a named tool action registered with the gateway.
type Operation struct {
	Name        string         `json:"name"`
	Class       OperationClass `json:"class"`
	Description string         `json:"description"`
	Params      []string       `json:"params"`
}

// Args is the structured argument mapping for an operation instance.
// Keys are unique by construction.
type Args map[string]interface{}
