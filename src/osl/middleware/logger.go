package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/airssys-go/platform/src/osl/execctx"
	"github.com/airssys-go/platform/src/osl/operations"
)

// LoggerMiddleware emits structured activity records via log/slog, the
// same logging surface every other subsystem uses. Priority 200 places it
// after the security middleware.
type LoggerMiddleware struct {
	log *slog.Logger
}

var _ Middleware = (*LoggerMiddleware)(nil)

func NewLoggerMiddleware(log *slog.Logger) *LoggerMiddleware {
	return &LoggerMiddleware{log: log.With("context", "security-pipeline")}
}

func (m *LoggerMiddleware) Name() string  { return "logger" }
func (m *LoggerMiddleware) Priority() int { return 200 }

func (m *LoggerMiddleware) Before(_ context.Context, op operations.Operation, ec *execctx.ExecutionContext) error {
	m.log.Debug("operation starting",
		"op_id", op.ID(),
		"kind", op.Kind(),
		"principal", ec.Security.Principal,
		"execution_id", ec.ExecutionID,
	)
	return nil
}

func (m *LoggerMiddleware) After(_ context.Context, op operations.Operation, ec *execctx.ExecutionContext, result *execctx.ExecutionResult) error {
	var elapsed time.Duration
	if result.StartedAt != nil && result.CompletedAt != nil {
		elapsed = result.CompletedAt.Sub(*result.StartedAt)
	}
	m.log.Info("operation completed",
		"op_id", op.ID(),
		"kind", op.Kind(),
		"principal", ec.Security.Principal,
		"status", result.Status,
		"elapsed", elapsed,
	)
	return nil
}

func (m *LoggerMiddleware) OnError(_ context.Context, op operations.Operation, ec *execctx.ExecutionContext, err error) ErrorOutcome {
	m.log.Error("operation failed",
		"op_id", op.ID(),
		"kind", op.Kind(),
		"principal", ec.Security.Principal,
		"error", err,
	)
	return ErrorOutcome{Action: Propagate}
}
