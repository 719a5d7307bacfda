package middleware

import (
	"context"

	"github.com/airssys-go/platform/src/osl/audit"
	"github.com/airssys-go/platform/src/osl/execctx"
	"github.com/airssys-go/platform/src/osl/operations"
	"github.com/airssys-go/platform/src/osl/oserr"
	"github.com/airssys-go/platform/src/osl/policy"
)

// EnforcementLevel controls whether a Deny actually blocks the operation.
type EnforcementLevel int

const (
	// Enforce blocks denied operations (the default, production posture).
	Enforce EnforcementLevel = iota
	// LogOnly records the decision but never blocks.
	LogOnly
)

// ResourceResolver turns an operation into the resource string a Policy
// evaluates against (e.g. a filesystem path, "pid:123", "tcp:host:port").
type ResourceResolver func(op operations.Operation) string

// SecurityMiddleware evaluates the composed ACL ∪ RBAC policy and submits
// every decision — allow or deny — to the audit logger (spec §4.2).
// It always runs first: Priority returns middleware.SecurityPriority.
type SecurityMiddleware struct {
	composed *policy.Composed
	sink     audit.Sink
	level    EnforcementLevel
	resource ResourceResolver
}

var _ Middleware = (*SecurityMiddleware)(nil)

func NewSecurityMiddleware(composed *policy.Composed, sink audit.Sink, level EnforcementLevel, resource ResourceResolver) *SecurityMiddleware {
	if resource == nil {
		resource = func(op operations.Operation) string { return string(op.Kind()) }
	}
	return &SecurityMiddleware{composed: composed, sink: sink, level: level, resource: resource}
}

func (m *SecurityMiddleware) Name() string { return "security" }
func (m *SecurityMiddleware) Priority() int { return SecurityPriority }

func (m *SecurityMiddleware) Before(ctx context.Context, op operations.Operation, ec *execctx.ExecutionContext) error {
	resource := m.resource(op)
	req := policy.Request{Security: ec.Security, Op: op, Resource: resource}

	decision, traces, err := m.composed.Evaluate(req)
	if err != nil {
		return oserr.Wrap(oserr.CategorySecurity, oserr.KindPolicyViolation, "policy evaluation failed", err)
	}

	reason := "denied"
	if len(traces) > 0 {
		reason = traces[len(traces)-1].Reason
	}

	auditDecision := audit.DecisionDeny
	if decision == policy.Allow {
		auditDecision = audit.DecisionAllow
	}

	_ = m.sink.Record(ctx, audit.Record{
		Principal:     ec.Security.Principal,
		OperationKind: string(op.Kind()),
		Resource:      resource,
		Decision:      auditDecision,
		Reason:        reason,
	})

	if decision != policy.Allow && m.level == Enforce {
		return oserr.New(oserr.CategorySecurity, oserr.KindCapabilityDenied, reason)
	}
	return nil
}

func (m *SecurityMiddleware) After(_ context.Context, _ operations.Operation, _ *execctx.ExecutionContext, _ *execctx.ExecutionResult) error {
	return nil
}

func (m *SecurityMiddleware) OnError(_ context.Context, _ operations.Operation, _ *execctx.ExecutionContext, _ error) ErrorOutcome {
	return ErrorOutcome{Action: Propagate}
}
