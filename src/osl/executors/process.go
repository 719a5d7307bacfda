package executors

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"

	"github.com/airssys-go/platform/src/osl/execctx"
	"github.com/airssys-go/platform/src/osl/operations"
	"github.com/airssys-go/platform/src/osl/oserr"
)

// ProcessExecutor implements Executor[*operations.ProcessOp] over os/exec,
// the idiomatic stdlib surface for process management (there is no
// third-party replacement for the underlying syscalls).
type ProcessExecutor struct {
	User string

	mu       chan struct{}
	children map[int]*exec.Cmd
}

var _ Executor[*operations.ProcessOp] = (*ProcessExecutor)(nil)

func NewProcessExecutor(user string) *ProcessExecutor {
	return &ProcessExecutor{
		User:     user,
		mu:       make(chan struct{}, 1),
		children: map[int]*exec.Cmd{},
	}
}

func (e *ProcessExecutor) lock()   { e.mu <- struct{}{} }
func (e *ProcessExecutor) unlock() { <-e.mu }

func (e *ProcessExecutor) Validate(_ context.Context, op *operations.ProcessOp, _ *execctx.ExecutionContext) error {
	switch op.Kind() {
	case operations.KindProcessSpawn:
		if op.Command == "" {
			return oserr.New(oserr.CategoryValidation, oserr.KindInvalidOperation, "command is empty")
		}
	case operations.KindProcessKill, operations.KindProcessSignal:
		e.lock()
		_, ok := e.children[op.PID]
		e.unlock()
		if !ok {
			return oserr.New(oserr.CategoryValidation, oserr.KindInvalidOperation, "unknown pid")
		}
	}
	return nil
}

func (e *ProcessExecutor) Execute(ctx context.Context, op *operations.ProcessOp, ec *execctx.ExecutionContext) (*execctx.ExecutionResult, error) {
	if err := e.Validate(ctx, op, ec); err != nil {
		return nil, err
	}

	res := execctx.NewResult()
	res.MarkStarted()
	res.Metadata["executor"] = "process"
	res.Metadata["user"] = e.User

	switch op.Kind() {
	case operations.KindProcessSpawn:
		cmd := exec.CommandContext(ctx, op.Command, op.Args...)
		out, err := cmd.Output()
		if err != nil {
			return nil, oserr.Wrap(oserr.CategoryExecution, oserr.KindSpawnFailure, "spawn failed", err)
		}
		e.lock()
		if cmd.Process != nil {
			e.children[cmd.Process.Pid] = cmd
		}
		e.unlock()
		res.Output = out
		res.Metadata["mode"] = "spawn"
		if cmd.Process != nil {
			res.Metadata["pid"] = fmt.Sprintf("%d", cmd.Process.Pid)
		}

	case operations.KindProcessKill:
		e.lock()
		cmd := e.children[op.PID]
		delete(e.children, op.PID)
		e.unlock()
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				return nil, oserr.Wrap(oserr.CategoryExecution, oserr.KindKernelIOFailure, "kill failed", err)
			}
		}
		res.Metadata["mode"] = "kill"

	case operations.KindProcessSignal:
		e.lock()
		cmd := e.children[op.PID]
		e.unlock()
		sig, err := parseSignal(op.Signal)
		if err != nil {
			return nil, err
		}
		if cmd.Process != nil {
			if err := cmd.Process.Signal(sig); err != nil {
				return nil, oserr.Wrap(oserr.CategoryExecution, oserr.KindKernelIOFailure, "signal failed", err)
			}
		}
		res.Metadata["mode"] = "signal"
		res.Metadata["signal"] = op.Signal
	}

	res.MarkCompleted()
	return res, nil
}

func (e *ProcessExecutor) Cleanup(_ context.Context, _ *execctx.ExecutionContext) error {
	e.lock()
	for pid, cmd := range e.children {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		delete(e.children, pid)
	}
	e.unlock()
	return nil
}

func parseSignal(name string) (syscall.Signal, error) {
	switch name {
	case "SIGTERM":
		return syscall.SIGTERM, nil
	case "SIGKILL":
		return syscall.SIGKILL, nil
	case "SIGINT":
		return syscall.SIGINT, nil
	case "SIGHUP":
		return syscall.SIGHUP, nil
	default:
		return 0, oserr.New(oserr.CategoryValidation, oserr.KindInvalidOperation, "unsupported signal: "+name)
	}
}
