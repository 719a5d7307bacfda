// Package execctx carries the execution context and result types that
// flow through every OS operation executor and middleware hook (spec §3).
package execctx

import (
	"time"

	"github.com/google/uuid"
)

// SecurityContext identifies the principal on whose behalf an operation runs.
type SecurityContext struct {
	Principal     string
	SessionID     string
	EstablishedAt time.Time
	Attributes    map[string]string
}

// NewSecurityContext creates a security context for principal, stamping the
// session establishment time.
func NewSecurityContext(principal, sessionID string, attributes map[string]string) SecurityContext {
	if attributes == nil {
		attributes = map[string]string{}
	}
	return SecurityContext{
		Principal:     principal,
		SessionID:     sessionID,
		EstablishedAt: time.Now(),
		Attributes:    attributes,
	}
}

// ExecutionContext is threaded through Executor.Execute/Validate/Cleanup and
// every middleware hook.
type ExecutionContext struct {
	Security    SecurityContext
	ExecutionID string
	CreatedAt   time.Time
	Metadata    map[string]string
}

// New creates an ExecutionContext bound to sec, with a freshly generated
// execution id.
func New(sec SecurityContext) *ExecutionContext {
	return &ExecutionContext{
		Security:    sec,
		ExecutionID: uuid.NewString(),
		CreatedAt:   time.Now(),
		Metadata:    map[string]string{},
	}
}

// WithMetadata returns ec after merging key/value into its metadata map.
func (ec *ExecutionContext) WithMetadata(key, value string) *ExecutionContext {
	ec.Metadata[key] = value
	return ec
}

// ExecutionResult is the output of a successful or failed operation
// execution. Status 0 denotes success by convention.
type ExecutionResult struct {
	Output      []byte
	Status      int
	Metadata    map[string]string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewResult creates a zero-value result with an initialized metadata map.
func NewResult() *ExecutionResult {
	return &ExecutionResult{Metadata: map[string]string{}}
}

// MarkStarted stamps StartedAt if not already set.
func (r *ExecutionResult) MarkStarted() {
	if r.StartedAt == nil {
		now := time.Now()
		r.StartedAt = &now
	}
}

// MarkCompleted stamps CompletedAt.
func (r *ExecutionResult) MarkCompleted() {
	now := time.Now()
	r.CompletedAt = &now
}

// Success reports whether the result represents a successful execution.
func (r *ExecutionResult) Success() bool {
	return r.Status == 0
}
