package executors

import (
	"context"
	"net"

	"github.com/airssys-go/platform/src/osl/execctx"
	"github.com/airssys-go/platform/src/osl/operations"
	"github.com/airssys-go/platform/src/osl/oserr"
)

// NetworkExecutor implements Executor[*operations.NetworkOp] over the
// standard net package. Dialing/listening is an OS syscall boundary with no
// idiomatic third-party substitute. The net-fetch host function in
// wasmhost/bridge does not use this executor; it delegates to whatever
// bridge.NetFetcher its caller supplies.
type NetworkExecutor struct {
	User string

	Dialer func(ctx context.Context, network, address string) (net.Conn, error)
}

var _ Executor[*operations.NetworkOp] = (*NetworkExecutor)(nil)

func NewNetworkExecutor(user string) *NetworkExecutor {
	d := &net.Dialer{}
	return &NetworkExecutor{User: user, Dialer: d.DialContext}
}

func (e *NetworkExecutor) Validate(_ context.Context, op *operations.NetworkOp, _ *execctx.ExecutionContext) error {
	if op.Network == "" {
		return oserr.New(oserr.CategoryValidation, oserr.KindInvalidOperation, "network is empty")
	}
	if (op.Kind() == operations.KindNetworkConnect || op.Kind() == operations.KindNetworkListen) && op.Address == "" {
		return oserr.New(oserr.CategoryValidation, oserr.KindInvalidOperation, "address is empty")
	}
	return nil
}

func (e *NetworkExecutor) Execute(ctx context.Context, op *operations.NetworkOp, ec *execctx.ExecutionContext) (*execctx.ExecutionResult, error) {
	if err := e.Validate(ctx, op, ec); err != nil {
		return nil, err
	}

	res := execctx.NewResult()
	res.MarkStarted()
	res.Metadata["executor"] = "network"
	res.Metadata["user"] = e.User
	res.Metadata["network"] = op.Network

	switch op.Kind() {
	case operations.KindNetworkConnect:
		conn, err := e.Dialer(ctx, op.Network, op.Address)
		if err != nil {
			return nil, oserr.Wrap(oserr.CategoryExecution, oserr.KindNetworkError, "connect failed", err)
		}
		defer conn.Close()
		res.Metadata["mode"] = "connect"
		res.Metadata["local_addr"] = conn.LocalAddr().String()

	case operations.KindNetworkListen:
		lc := &net.ListenConfig{}
		ln, err := lc.Listen(ctx, op.Network, op.Address)
		if err != nil {
			return nil, oserr.Wrap(oserr.CategoryExecution, oserr.KindNetworkError, "listen failed", err)
		}
		defer ln.Close()
		res.Metadata["mode"] = "listen"
		res.Metadata["local_addr"] = ln.Addr().String()

	case operations.KindNetworkSocket:
		res.Metadata["mode"] = "socket"
	}

	res.MarkCompleted()
	return res, nil
}

func (e *NetworkExecutor) Cleanup(_ context.Context, _ *execctx.ExecutionContext) error {
	return nil
}
