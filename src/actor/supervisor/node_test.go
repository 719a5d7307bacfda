package supervisor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

type trackedChild struct {
	name        string
	log         *[]string
	startErr    error
	startCount  int
	stopCount   int
}

func (c *trackedChild) Start(ctx context.Context) error {
	c.startCount++
	*c.log = append(*c.log, "start:"+c.name)
	return c.startErr
}

func (c *trackedChild) Stop(ctx context.Context) {
	c.stopCount++
	*c.log = append(*c.log, "stop:"+c.name)
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func spec(id string, order int, events *[]string) ChildSpec {
	return ChildSpec{
		ID:             id,
		Order:          order,
		RestartPolicy:  Permanent,
		ShutdownPolicy: GracefulShutdown(time.Second),
		StartTimeout:   time.Second,
		Factory: func() Child {
			return &trackedChild{name: id, log: events}
		},
	}
}

// S3 — OneForOne restart: fail B, only B restarts; A and C untouched.
func TestSupervisorNode_OneForOneRestartsOnlyFailedChild(t *testing.T) {
	events := []string{}
	sup := NewSupervisorNode(OneForOne, discardLog(), nil, 0)

	ctx := context.Background()
	if err := sup.AddChild(ctx, spec("A", 0, &events)); err != nil {
		t.Fatal(err)
	}
	if err := sup.AddChild(ctx, spec("B", 1, &events)); err != nil {
		t.Fatal(err)
	}
	if err := sup.AddChild(ctx, spec("C", 2, &events)); err != nil {
		t.Fatal(err)
	}
	events = events[:0] // discard the initial starts, we only care about the restart phase

	if err := sup.FailChild(ctx, "B", ExitAbnormal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"stop:B", "start:B"}
	if !equalSlices(events, want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
}

// S4 — RestForOne cascade: fail B, stop order [C, B], start order [B, C], A untouched.
func TestSupervisorNode_RestForOneCascades(t *testing.T) {
	events := []string{}
	sup := NewSupervisorNode(RestForOne, discardLog(), nil, 0)

	ctx := context.Background()
	_ = sup.AddChild(ctx, spec("A", 0, &events))
	_ = sup.AddChild(ctx, spec("B", 1, &events))
	_ = sup.AddChild(ctx, spec("C", 2, &events))
	events = events[:0]

	if err := sup.FailChild(ctx, "B", ExitAbnormal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"stop:C", "stop:B", "start:B", "start:C"}
	if !equalSlices(events, want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
}

func TestSupervisorNode_OneForAllRestartsEveryChild(t *testing.T) {
	events := []string{}
	sup := NewSupervisorNode(OneForAll, discardLog(), nil, 0)

	ctx := context.Background()
	_ = sup.AddChild(ctx, spec("A", 0, &events))
	_ = sup.AddChild(ctx, spec("B", 1, &events))
	events = events[:0]

	if err := sup.FailChild(ctx, "A", ExitAbnormal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"stop:B", "stop:A", "start:A", "start:B"}
	if !equalSlices(events, want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
}

func TestSupervisorNode_TemporaryChildIsNotRestarted(t *testing.T) {
	events := []string{}
	sup := NewSupervisorNode(OneForOne, discardLog(), nil, 0)
	ctx := context.Background()

	s := spec("A", 0, &events)
	s.RestartPolicy = Temporary
	_ = sup.AddChild(ctx, s)
	events = events[:0]

	if err := sup.FailChild(ctx, "A", ExitAbnormal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("temporary child must not restart, got %v", events)
	}
	if len(sup.ChildIDs()) != 0 {
		t.Fatal("temporary child should be removed after failing")
	}
}

func TestSupervisorNode_TransientChildRestartsOnlyOnAbnormalExit(t *testing.T) {
	events := []string{}
	sup := NewSupervisorNode(OneForOne, discardLog(), nil, 0)
	ctx := context.Background()

	s := spec("A", 0, &events)
	s.RestartPolicy = Transient
	_ = sup.AddChild(ctx, s)
	events = events[:0]

	if err := sup.FailChild(ctx, "A", ExitNormal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("transient child on normal exit must not restart, got %v", events)
	}

	bSpec := spec("B", 1, &events)
	bSpec.RestartPolicy = Transient
	_ = sup.AddChild(ctx, bSpec)
	events = events[:0]

	if err := sup.FailChild(ctx, "B", ExitAbnormal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("transient child on abnormal exit must restart")
	}
}

func TestSupervisorNode_RestartBudgetExceededEscalates(t *testing.T) {
	events := []string{}
	var escalated error
	sup := NewSupervisorNode(OneForOne, discardLog(), func(reason error) { escalated = reason }, 0)
	sup.WithRestartBudget(time.Minute, 1)
	sup.WithBackoff(Backoff{Base: time.Millisecond, Multiplier: 1, Max: time.Millisecond})

	ctx := context.Background()
	_ = sup.AddChild(ctx, spec("A", 0, &events))

	if err := sup.FailChild(ctx, "A", ExitAbnormal); err != nil {
		t.Fatalf("first restart should stay within budget: %v", err)
	}
	err := sup.FailChild(ctx, "A", ExitAbnormal)
	if err != ErrRestartBudgetExceeded {
		t.Fatalf("expected ErrRestartBudgetExceeded, got %v", err)
	}
	if escalated == nil {
		t.Fatal("expected escalation callback to fire")
	}
}

func TestSupervisorNode_HealthTriggeredRestart(t *testing.T) {
	events := []string{}
	sup := NewSupervisorNode(OneForOne, discardLog(), nil, 2)
	ctx := context.Background()
	_ = sup.AddChild(ctx, spec("A", 0, &events))
	events = events[:0]

	if err := sup.ReportHealth(ctx, "A", Unhealthy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatal("one unhealthy report must not yet trigger a restart")
	}

	if err := sup.ReportHealth(ctx, "A", Unhealthy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"stop:A", "start:A"}
	if !equalSlices(events, want) {
		t.Fatalf("expected restart after reaching the unhealthy threshold, got %v", events)
	}
}

// Successive restarts of the same child must escalate the backoff delay
// (Base * Multiplier^attempt) rather than reusing the same base delay
// every time.
func TestSupervisorNode_BackoffGrowsAcrossRepeatedRestarts(t *testing.T) {
	events := []string{}
	sup := NewSupervisorNode(OneForOne, discardLog(), nil, 0)
	sup.WithRestartBudget(time.Minute, 10)
	sup.WithBackoff(Backoff{Base: 10 * time.Millisecond, Multiplier: 4, Max: time.Second, Jitter: false})

	ctx := context.Background()
	_ = sup.AddChild(ctx, spec("A", 0, &events))

	start := time.Now()
	if err := sup.FailChild(ctx, "A", ExitAbnormal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstRestart := time.Since(start)

	start = time.Now()
	if err := sup.FailChild(ctx, "A", ExitAbnormal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	secondRestart := time.Since(start)

	if secondRestart <= firstRestart {
		t.Fatalf("expected second restart delay (%s) to exceed the first (%s)", secondRestart, firstRestart)
	}
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
