package policy

import (
	"fmt"

	"github.com/diegoholiveira/jsonlogic"
)

// JSONLogicPolicy expresses ACL rules as JSON-logic documents evaluated
// against the request's attributes/resource/operation-kind, an ergonomic
// alternative to hand-written Go conditions for operators who configure
// policy data rather than code.
type JSONLogicPolicy struct {
	name  string
	rules map[string]any // principal -> decoded jsonlogic rule document
}

func NewJSONLogicPolicy(name string) *JSONLogicPolicy {
	return &JSONLogicPolicy{name: name, rules: map[string]any{}}
}

// SetRule attaches a JSON-logic rule document (already decoded into Go
// maps/slices) for principal. The rule is evaluated with a data document of
// shape {"principal", "resource", "kind", "attributes"}; a truthy result
// Allows.
func (p *JSONLogicPolicy) SetRule(principal string, rule any) *JSONLogicPolicy {
	p.rules[principal] = rule
	return p
}

func (p *JSONLogicPolicy) Name() string { return p.name }

func (p *JSONLogicPolicy) Evaluate(req Request) (Decision, string, error) {
	rule, ok := p.rules[req.Security.Principal]
	if !ok {
		return Deny, "no jsonlogic rule for principal", nil
	}

	data := map[string]any{
		"principal":  req.Security.Principal,
		"resource":   req.Resource,
		"kind":       string(req.Op.Kind()),
		"attributes": req.Security.Attributes,
	}

	result, err := jsonlogic.ApplyInterface(rule, data)
	if err != nil {
		return Deny, "", fmt.Errorf("evaluating jsonlogic rule for %s: %w", req.Security.Principal, err)
	}

	if truthy(result) {
		return Allow, fmt.Sprintf("jsonlogic rule matched for %s", req.Security.Principal), nil
	}
	return Deny, "jsonlogic rule did not match", nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
