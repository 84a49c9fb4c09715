package policy

import (
	"fmt"
	"sort"

	"github.com/civinigrani/civigate/models"
)

// Registry holds the fixed operation catalog and the (role, class) decision
// table. Immutable after construction; safe for unsynchronized concurrent
// reads.
type Registry struct {
	operations map[string]models.Operation
	rules      map[models.Role]map[models.OperationClass]bool
}

// RuleSet maps each known role to its per-class allow decisions. NewRegistry
// rejects a rule set that does not cover the full cross-product of known
// roles and operation classes: no pair may be left undecided.
type RuleSet map[models.Role]map[models.OperationClass]bool

// DefaultRules is the deployed decision table: everyone reads, only admins
// write, auditors are read-only like analysts.
func DefaultRules() RuleSet {
	return RuleSet{
		models.RoleAnalyst: {models.ClassRead: true, models.ClassWrite: false},
		models.RoleAdmin:   {models.ClassRead: true, models.ClassWrite: true},
		models.RoleAuditor: {models.ClassRead: true, models.ClassWrite: false},
	}
}

// NewRegistry builds a registry from an operation catalog and a rule set.
// Operation names must be unique and each operation carries exactly one
// class, fixed here at registration time.
func NewRegistry(operations []models.Operation, rules RuleSet) (*Registry, error) {
	ops := make(map[string]models.Operation, len(operations))
	for _, op := range operations {
		if op.Name == "" {
			return nil, fmt.Errorf("operation with empty name")
		}
		if op.Class != models.ClassRead && op.Class != models.ClassWrite {
			return nil, fmt.Errorf("operation %q has invalid class %q", op.Name, op.Class)
		}
		if _, dup := ops[op.Name]; dup {
			return nil, fmt.Errorf("duplicate operation %q", op.Name)
		}
		ops[op.Name] = op
	}

	table := make(map[models.Role]map[models.OperationClass]bool, len(models.KnownRoles))
	for _, role := range models.KnownRoles {
		classDecisions, ok := rules[role]
		if !ok {
			return nil, fmt.Errorf("rule set missing role %q", role)
		}
		for _, class := range []models.OperationClass{models.ClassRead, models.ClassWrite} {
			if _, ok := classDecisions[class]; !ok {
				return nil, fmt.Errorf("rule set missing decision for (%s, %s)", role, class)
			}
		}
		table[role] = map[models.OperationClass]bool{
			models.ClassRead:  classDecisions[models.ClassRead],
			models.ClassWrite: classDecisions[models.ClassWrite],
		}
	}

	return &Registry{operations: ops, rules: table}, nil
}

// Lookup returns the registered operation, if any.
func (r *Registry) Lookup(name string) (models.Operation, bool) {
	op, ok := r.operations[name]
	return op, ok
}

// Operations returns the catalog sorted by name.
func (r *Registry) Operations() []models.Operation {
	out := make([]models.Operation, 0, len(r.operations))
	for _, op := range r.operations {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Decide resolves the (role, class) pair. Unknown roles resolve to deny.
func (r *Registry) Decide(role models.Role, class models.OperationClass) bool {
	classDecisions, ok := r.rules[role]
	if !ok {
		return false
	}
	return classDecisions[class]
}
