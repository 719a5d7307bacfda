// Package middleware implements the composable interceptor pipeline that
// wraps every OS operation executor (spec §4.2). The pipeline is ordered by
// ascending priority; priority 100 (Security) MUST run first.
package middleware

import (
	"context"
	"sort"
	"sync"

	"github.com/airssys-go/platform/src/osl/execctx"
	"github.com/airssys-go/platform/src/osl/operations"
)

// ErrorAction is the middleware's verdict on an executor error.
type ErrorAction int

const (
	Propagate ErrorAction = iota
	Retry
	Recover
)

// ErrorOutcome pairs an ErrorAction with the recovered result, when Recover
// is chosen.
type ErrorOutcome struct {
	Action   ErrorAction
	Recovery *execctx.ExecutionResult
}

// Middleware is a pipeline stage. Before may short-circuit with a failure;
// After may rewrite metadata but MUST NOT change output bytes; OnError
// chooses how an executor failure is handled.
type Middleware interface {
	Name() string
	Priority() int
	Before(ctx context.Context, op operations.Operation, ec *execctx.ExecutionContext) error
	After(ctx context.Context, op operations.Operation, ec *execctx.ExecutionContext, result *execctx.ExecutionResult) error
	OnError(ctx context.Context, op operations.Operation, ec *execctx.ExecutionContext, err error) ErrorOutcome
}

// SecurityPriority is the fixed priority reserved for the security
// middleware; Pipeline.Add rejects any other middleware claiming it.
const SecurityPriority = 100

// Pipeline orders middlewares by ascending priority and drives their hooks
// around a caller-supplied invocation function.
type Pipeline struct {
	mu          sync.RWMutex
	middlewares []Middleware
}

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Add appends mw and keeps the pipeline sorted by priority. A second
// middleware claiming SecurityPriority is rejected and left out of the
// pipeline: that slot is reserved for the one security middleware wired in
// system.New, and silently sorting a second one alongside it would let it
// run before or after the real security checks depending on insertion
// order.
func (p *Pipeline) Add(mw Middleware) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mw.Priority() == SecurityPriority {
		for _, existing := range p.middlewares {
			if existing.Priority() == SecurityPriority {
				return p
			}
		}
	}
	p.middlewares = append(p.middlewares, mw)
	sort.SliceStable(p.middlewares, func(i, j int) bool {
		return p.middlewares[i].Priority() < p.middlewares[j].Priority()
	})
	return p
}

func (p *Pipeline) snapshot() []Middleware {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Middleware, len(p.middlewares))
	copy(out, p.middlewares)
	return out
}

// Invoke runs invoke wrapped by every middleware's Before/After/OnError
// hooks, innermost-stage-last. A Before failure short-circuits the whole
// call; an executor error is routed to every middleware's OnError in
// reverse (innermost-first) order until one resolves it.
func (p *Pipeline) Invoke(
	ctx context.Context,
	op operations.Operation,
	ec *execctx.ExecutionContext,
	invoke func(ctx context.Context, op operations.Operation, ec *execctx.ExecutionContext) (*execctx.ExecutionResult, error),
) (*execctx.ExecutionResult, error) {
	chain := p.snapshot()

	for _, mw := range chain {
		if err := mw.Before(ctx, op, ec); err != nil {
			return nil, err
		}
	}

	result, err := invoke(ctx, op, ec)
	if err != nil {
		for i := len(chain) - 1; i >= 0; i-- {
			outcome := chain[i].OnError(ctx, op, ec, err)
			switch outcome.Action {
			case Recover:
				result, err = outcome.Recovery, nil
			case Retry:
				result, err = invoke(ctx, op, ec)
			case Propagate:
				// keep iterating other middlewares' OnError, but err stays set
			}
			if err == nil {
				break
			}
		}
		if err != nil {
			return nil, err
		}
	}

	for _, mw := range chain {
		if err := mw.After(ctx, op, ec, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}
