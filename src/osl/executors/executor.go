// Package executors implements the concrete filesystem/process/network
// executors of spec §4.1. Each executor is polymorphic over its operation
// type via Go generics rather than a boxed interface, following the
// "static dispatch where possible" guidance of spec §9.
package executors

import (
	"context"

	"github.com/airssys-go/platform/src/osl/execctx"
)

// Executor is the generic contract every concrete executor satisfies.
type Executor[O any] interface {
	Validate(ctx context.Context, op O, ec *execctx.ExecutionContext) error
	Execute(ctx context.Context, op O, ec *execctx.ExecutionContext) (*execctx.ExecutionResult, error)
	Cleanup(ctx context.Context, ec *execctx.ExecutionContext) error
}
