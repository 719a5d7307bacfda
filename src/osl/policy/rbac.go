package policy

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Role binds a set of operation kinds to an expr-lang condition evaluated
// against the request's security attributes. A role whose OperationKinds
// contains the request's kind and whose Condition (if any) evaluates truthy
// Allows the request.
type Role struct {
	Name            string
	OperationKinds  map[string]bool
	Condition       string
	program         *vm.Program
}

func NewRole(name string, condition string, kinds ...string) (*Role, error) {
	r := &Role{Name: name, OperationKinds: map[string]bool{}}
	for _, k := range kinds {
		r.OperationKinds[k] = true
	}
	if condition != "" {
		prog, err := expr.Compile(condition, expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compiling RBAC condition for role %s: %w", name, err)
		}
		r.program = prog
		r.Condition = condition
	}
	return r, nil
}

// RBAC grants access to operations based on principal->roles assignment.
type RBAC struct {
	roles       map[string]*Role
	assignments map[string][]string // principal -> role names
}

func NewRBAC() *RBAC {
	return &RBAC{roles: map[string]*Role{}, assignments: map[string][]string{}}
}

func (r *RBAC) AddRole(role *Role) *RBAC {
	r.roles[role.Name] = role
	return r
}

func (r *RBAC) Assign(principal string, roleNames ...string) *RBAC {
	r.assignments[principal] = append(r.assignments[principal], roleNames...)
	return r
}

func (r *RBAC) Name() string { return "rbac" }

func (r *RBAC) Evaluate(req Request) (Decision, string, error) {
	kind := string(req.Op.Kind())

	for _, roleName := range r.assignments[req.Security.Principal] {
		role, ok := r.roles[roleName]
		if !ok || !role.OperationKinds[kind] {
			continue
		}
		if role.program == nil {
			return Allow, fmt.Sprintf("role %s permits %s", roleName, kind), nil
		}
		env := map[string]any{
			"attributes": req.Security.Attributes,
			"resource":   req.Resource,
			"principal":  req.Security.Principal,
		}
		out, err := vm.Run(role.program, env)
		if err != nil {
			return Deny, "", fmt.Errorf("evaluating role %s condition: %w", roleName, err)
		}
		if ok, _ := out.(bool); ok {
			return Allow, fmt.Sprintf("role %s condition satisfied for %s", roleName, kind), nil
		}
	}

	return Deny, "no role grants this operation", nil
}
