// Package oserr implements the error taxonomy of spec §7: every failure
// carries a machine-readable Kind plus a human-readable reason, wrapped in
// the usual fmt.Errorf("...: %w", err) style the rest of the module uses.
package oserr

import "fmt"

// Category groups error kinds into the five taxonomy buckets from §7.
type Category string

const (
	CategorySecurity      Category = "security"
	CategoryValidation    Category = "validation"
	CategoryExecution     Category = "execution"
	CategorySupervision   Category = "supervision"
	CategoryConfiguration Category = "configuration"
)

// Kind is a machine-readable error identifier within a Category.
type Kind string

const (
	KindCapabilityDenied    Kind = "capability_denied"
	KindPolicyViolation     Kind = "policy_violation"
	KindInvalidContext      Kind = "invalid_context"
	KindRateLimitExceeded   Kind = "rate_limit_exceeded"
	KindInvalidOperation    Kind = "invalid_operation"
	KindInvalidMulticodec   Kind = "invalid_multicodec"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindKernelIOFailure     Kind = "kernel_io_failure"
	KindSpawnFailure        Kind = "spawn_failure"
	KindNetworkError        Kind = "network_error"
	KindWasmTrap            Kind = "wasm_trap"
	KindFuelExhausted       Kind = "fuel_exhausted"
	KindTimeout             Kind = "timeout"
	KindRestartBudgetExceeded Kind = "restart_budget_exceeded"
	KindUnrecoverableChild  Kind = "unrecoverable_child"
	KindStartTimeout        Kind = "start_timeout"
	KindShutdownTimeout     Kind = "shutdown_timeout"
	KindMissingResourceLimit Kind = "missing_resource_limit"
	KindMalformedResourceLimit Kind = "malformed_resource_limit"
)

// Error is the typed error value threaded through the whole core.
type Error struct {
	Category Category
	Kind     Kind
	Reason   string
	Wrapped  error
}

func New(cat Category, kind Kind, reason string) *Error {
	return &Error{Category: cat, Kind: kind, Reason: reason}
}

func Wrap(cat Category, kind Kind, reason string, err error) *Error {
	return &Error{Category: cat, Kind: kind, Reason: reason, Wrapped: err}
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Category, e.Kind, e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("%s/%s: %s", e.Category, e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is supports errors.Is comparison by Category+Kind, ignoring Reason/Wrapped.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Kind == t.Kind
}

// Sentinels usable with errors.Is(err, oserr.CapabilityDenied).
var (
	CapabilityDenied  = &Error{Category: CategorySecurity, Kind: KindCapabilityDenied}
	PolicyViolation   = &Error{Category: CategorySecurity, Kind: KindPolicyViolation}
	RateLimitExceeded = &Error{Category: CategorySecurity, Kind: KindRateLimitExceeded}
	InvalidOperation  = &Error{Category: CategoryValidation, Kind: KindInvalidOperation}
	QuotaExceeded     = &Error{Category: CategoryValidation, Kind: KindQuotaExceeded}
	FuelExhausted     = &Error{Category: CategoryExecution, Kind: KindFuelExhausted}
	Timeout           = &Error{Category: CategoryExecution, Kind: KindTimeout}
	WasmTrap          = &Error{Category: CategoryExecution, Kind: KindWasmTrap}
)
