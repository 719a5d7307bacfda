package middleware

import (
	"context"
	"errors"
	"log/slog"
	"io"
	"testing"

	"github.com/airssys-go/platform/src/osl/audit"
	"github.com/airssys-go/platform/src/osl/execctx"
	"github.com/airssys-go/platform/src/osl/operations"
	"github.com/airssys-go/platform/src/osl/oserr"
	"github.com/airssys-go/platform/src/osl/policy"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// S1 — file read through OS pipeline: grant demo Filesystem.read("/etc/hosts").
func TestSecurityMiddleware_AllowsGrantedRead(t *testing.T) {
	acl := policy.NewACL().Grant("demo", "/etc/hosts")
	composed := policy.NewComposed(acl)
	sink := audit.NewRingBuffer(16)
	sec := NewSecurityMiddleware(composed, sink, Enforce, func(op operations.Operation) string {
		return op.(*operations.FilesystemOp).Path
	})

	pipeline := NewPipeline().Add(sec).Add(NewLoggerMiddleware(discardLogger()))

	op := operations.NewFileReadOperation("/etc/hosts")
	ec := execctx.New(execctx.NewSecurityContext("demo", "s1", nil))

	invoked := false
	_, err := pipeline.Invoke(context.Background(), op, ec, func(ctx context.Context, op operations.Operation, ec *execctx.ExecutionContext) (*execctx.ExecutionResult, error) {
		invoked = true
		res := execctx.NewResult()
		res.MarkStarted()
		res.Output = []byte("hosts-content")
		res.MarkCompleted()
		return res, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !invoked {
		t.Fatal("expected executor to be invoked")
	}

	records := sink.Snapshot()
	if len(records) != 1 || records[0].Decision != audit.DecisionAllow {
		t.Fatalf("expected one Allow audit record, got %+v", records)
	}
}

// S2 — capability denial: grant demo only Filesystem.read("/tmp/*").
func TestSecurityMiddleware_DeniesUngrantedRead(t *testing.T) {
	acl := policy.NewACL().Grant("demo", "/tmp/*")
	composed := policy.NewComposed(acl)
	sink := audit.NewRingBuffer(16)
	sec := NewSecurityMiddleware(composed, sink, Enforce, func(op operations.Operation) string {
		return op.(*operations.FilesystemOp).Path
	})
	pipeline := NewPipeline().Add(sec)

	op := operations.NewFileReadOperation("/etc/hosts")
	ec := execctx.New(execctx.NewSecurityContext("demo", "s1", nil))

	invoked := false
	_, err := pipeline.Invoke(context.Background(), op, ec, func(ctx context.Context, op operations.Operation, ec *execctx.ExecutionContext) (*execctx.ExecutionResult, error) {
		invoked = true
		return execctx.NewResult(), nil
	})

	if err == nil {
		t.Fatal("expected capability denied error")
	}
	var oe *oserr.Error
	if !errors.As(err, &oe) || oe.Kind != oserr.KindCapabilityDenied {
		t.Fatalf("expected CapabilityDenied, got %v", err)
	}
	if invoked {
		t.Fatal("executor must not run on denial")
	}

	records := sink.Snapshot()
	if len(records) != 1 || records[0].Decision != audit.DecisionDeny {
		t.Fatalf("expected one Deny audit record, got %+v", records)
	}
	if records[0].Reason != "path not matched" {
		t.Fatalf("unexpected reason: %q", records[0].Reason)
	}
}

func TestSecurityMiddleware_LogOnlyNeverBlocks(t *testing.T) {
	composed := policy.NewComposed(policy.NewACL())
	sink := audit.NewRingBuffer(16)
	sec := NewSecurityMiddleware(composed, sink, LogOnly, nil)
	pipeline := NewPipeline().Add(sec)

	op := operations.NewFileReadOperation("/etc/hosts")
	ec := execctx.New(execctx.NewSecurityContext("demo", "s1", nil))

	invoked := false
	_, err := pipeline.Invoke(context.Background(), op, ec, func(ctx context.Context, op operations.Operation, ec *execctx.ExecutionContext) (*execctx.ExecutionResult, error) {
		invoked = true
		return execctx.NewResult(), nil
	})
	if err != nil {
		t.Fatalf("log-only must not block: %v", err)
	}
	if !invoked {
		t.Fatal("expected executor to run under log-only enforcement")
	}
}

func TestPipeline_SecurityAlwaysRunsFirst(t *testing.T) {
	composed := policy.NewComposed(policy.NewACL().Grant("demo", "*"))
	sink := audit.NewRingBuffer(4)
	sec := NewSecurityMiddleware(composed, sink, Enforce, nil)
	log := NewLoggerMiddleware(discardLogger())

	// Added in reverse order; pipeline must still run security first.
	pipeline := NewPipeline().Add(log).Add(sec)

	if pipeline.snapshot()[0].Priority() != SecurityPriority {
		t.Fatalf("expected security middleware first, got priority %d", pipeline.snapshot()[0].Priority())
	}
}

func TestPipeline_AddRejectsSecondSecurityPriority(t *testing.T) {
	composed := policy.NewComposed(policy.NewACL().Grant("demo", "*"))
	sink := audit.NewRingBuffer(4)
	first := NewSecurityMiddleware(composed, sink, Enforce, nil)
	second := NewSecurityMiddleware(composed, sink, Enforce, nil)

	pipeline := NewPipeline().Add(first).Add(second)

	stages := pipeline.snapshot()
	if len(stages) != 1 {
		t.Fatalf("expected second SecurityPriority middleware to be rejected, got %d stages", len(stages))
	}
	if stages[0] != Middleware(first) {
		t.Fatal("expected the first-registered security middleware to remain")
	}
}
