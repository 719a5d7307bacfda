// Package policy implements the ACL ∪ RBAC composed policy evaluated by the
// security middleware (spec §4.2). Default decision is Deny; any policy
// returning Allow grants the operation unless another policy returns
// ExplicitDeny, which wins over Allow.
package policy

import (
	"github.com/airssys-go/platform/src/osl/execctx"
	"github.com/airssys-go/platform/src/osl/operations"
)

// Decision is the outcome of a single policy's evaluation.
type Decision int

const (
	Deny Decision = iota
	Allow
	ExplicitDeny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "Allow"
	case ExplicitDeny:
		return "ExplicitDeny"
	default:
		return "Deny"
	}
}

// Request is the input to a Policy.Evaluate call.
type Request struct {
	Security execctx.SecurityContext
	Op       operations.Operation
	Resource string
}

// Policy evaluates a single rule set against a request.
type Policy interface {
	Name() string
	Evaluate(req Request) (Decision, string, error)
}

// Composed evaluates an ordered set of policies and folds their decisions
// per the ACL ∪ RBAC rule: start from Deny, any Allow grants unless an
// ExplicitDeny is seen (which always wins, even before or after an Allow).
type Composed struct {
	policies []Policy
}

func NewComposed(policies ...Policy) *Composed {
	return &Composed{policies: policies}
}

// EvaluationTrace records one policy's contribution, used to build audit
// records with full provenance.
type EvaluationTrace struct {
	PolicyName string
	Decision   Decision
	Reason     string
}

func (c *Composed) Evaluate(req Request) (Decision, []EvaluationTrace, error) {
	final := Deny
	reason := "no policy granted access"
	traces := make([]EvaluationTrace, 0, len(c.policies))

	for _, p := range c.policies {
		d, r, err := p.Evaluate(req)
		if err != nil {
			return Deny, traces, err
		}
		traces = append(traces, EvaluationTrace{PolicyName: p.Name(), Decision: d, Reason: r})

		switch d {
		case ExplicitDeny:
			return ExplicitDeny, traces, nil
		case Allow:
			final = Allow
			reason = r
		case Deny:
			if final == Deny && r != "" {
				reason = r
			}
		}
	}

	if final == Deny {
		traces = append(traces, EvaluationTrace{PolicyName: "default", Decision: Deny, Reason: reason})
	}
	return final, traces, nil
}
