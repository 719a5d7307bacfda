package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Strategy selects which siblings are restarted when a child fails.
type Strategy int

const (
	OneForOne Strategy = iota
	OneForAll
	RestForOne
)

// ErrRestartBudgetExceeded is returned by FailChild (and surfaced to the
// parent via the escalation callback) once the sliding-window restart-rate
// limiter has tripped.
var ErrRestartBudgetExceeded = errors.New("supervisor: restart budget exceeded")

type childEntry struct {
	spec           ChildSpec
	instance       Child
	health         int // consecutive unhealthy count
	restartAttempt int // consecutive restart count, fed to Backoff.Delay
}

// EscalationFunc is invoked when a supervisor gives up on its own
// children — either the restart budget was exceeded, or a child could not
// be restarted — so its parent can decide what to do (restart this
// supervisor as a unit, or shut the system down if this is the root).
type EscalationFunc func(reason error)

// SupervisorNode owns one ordered list of children under a single
// restart Strategy, a sliding-window restart-rate limiter, and backoff
// (spec §4.5).
type SupervisorNode struct {
	mu          sync.Mutex
	strategy    Strategy
	children    []*childEntry
	backoff     Backoff
	limiter     *restartRateLimiter
	log         *slog.Logger
	onEscalate  EscalationFunc
	healthLimit int
}

// NewSupervisorNode constructs a supervisor using the given strategy.
// healthLimit is the number of consecutive Unhealthy reports (spec §4.5)
// that force a restart; 0 disables health-triggered restarts.
func NewSupervisorNode(strategy Strategy, log *slog.Logger, onEscalate EscalationFunc, healthLimit int) *SupervisorNode {
	return &SupervisorNode{
		strategy:    strategy,
		backoff:     DefaultBackoff(),
		limiter:     newRestartRateLimiter(DefaultRestartWindow, DefaultMaxRestarts),
		log:         log.With("context", "supervisor"),
		onEscalate:  onEscalate,
		healthLimit: healthLimit,
	}
}

// WithRestartBudget overrides the sliding-window restart-rate limiter's
// window and max-restarts count.
func (s *SupervisorNode) WithRestartBudget(window time.Duration, maxRestarts int) *SupervisorNode {
	s.limiter = newRestartRateLimiter(window, maxRestarts)
	return s
}

// WithBackoff overrides the default exponential backoff parameters.
func (s *SupervisorNode) WithBackoff(b Backoff) *SupervisorNode {
	s.backoff = b
	return s
}

// AddChild registers spec, starts it via its Factory, and appends it to the
// ordered child list at its declared Order (or at the end if specs are
// added in increasing Order already, the common case).
func (s *SupervisorNode) AddChild(ctx context.Context, spec ChildSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	instance := spec.Factory()
	if err := s.startChild(ctx, instance, spec.StartTimeout); err != nil {
		return fmt.Errorf("starting child %s: %w", spec.ID, err)
	}

	entry := &childEntry{spec: spec, instance: instance}
	s.children = append(s.children, entry)
	sort.SliceStable(s.children, func(i, j int) bool { return s.children[i].spec.Order < s.children[j].spec.Order })
	return nil
}

func (s *SupervisorNode) startChild(ctx context.Context, c Child, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	startCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Start(startCtx)
}

func (s *SupervisorNode) stopChild(c Child, policy ShutdownPolicy) {
	switch policy.Kind {
	case Immediate:
		c.Stop(context.Background())
	case Infinity:
		c.Stop(context.Background())
	default: // Graceful
		timeout := policy.Timeout
		if timeout <= 0 {
			timeout = DefaultShutdownTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		c.Stop(ctx)
	}
}

func (s *SupervisorNode) indexOf(childID string) int {
	for i, e := range s.children {
		if e.spec.ID == childID {
			return i
		}
	}
	return -1
}

// ChildIDs returns the current child ids in startup order, for tests and
// diagnostics.
func (s *SupervisorNode) ChildIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.children))
	for i, e := range s.children {
		ids[i] = e.spec.ID
	}
	return ids
}

// RemoveChild stops childID (honoring its ShutdownPolicy) and removes it
// from the child list unconditionally, regardless of RestartPolicy. Used
// for an explicit, intentional despawn — as opposed to FailChild, which
// applies the supervisor's restart Strategy after an unplanned exit.
func (s *SupervisorNode) RemoveChild(childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.indexOf(childID)
	if k < 0 {
		return fmt.Errorf("supervisor: unknown child %q", childID)
	}
	s.stopChild(s.children[k].instance, s.children[k].spec.ShutdownPolicy)
	s.children = append(s.children[:k], s.children[k+1:]...)
	return nil
}

// FailChild applies the supervisor's restart Strategy after childID exits
// with the given ExitReason. A Temporary child (or a Transient child with
// ExitNormal) is removed rather than restarted. Exceeding the restart-rate
// budget escalates instead of restarting.
func (s *SupervisorNode) FailChild(ctx context.Context, childID string, reason ExitReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.indexOf(childID)
	if k < 0 {
		return fmt.Errorf("supervisor: unknown child %q", childID)
	}

	failed := s.children[k]
	if !s.shouldRestart(failed.spec, reason) {
		s.children = append(s.children[:k], s.children[k+1:]...)
		return nil
	}

	if s.limiter.Record(time.Now()) {
		s.log.Error("restart budget exceeded", "child", childID)
		if s.onEscalate != nil {
			s.onEscalate(ErrRestartBudgetExceeded)
		}
		return ErrRestartBudgetExceeded
	}

	switch s.strategy {
	case OneForOne:
		return s.restartRange(ctx, k, k)
	case OneForAll:
		return s.restartRange(ctx, 0, len(s.children)-1)
	case RestForOne:
		return s.restartRange(ctx, k, len(s.children)-1)
	default:
		return fmt.Errorf("supervisor: unknown strategy %d", s.strategy)
	}
}

func (s *SupervisorNode) shouldRestart(spec ChildSpec, reason ExitReason) bool {
	switch spec.RestartPolicy {
	case Permanent:
		return true
	case Transient:
		return reason != ExitNormal
	default: // Temporary
		return false
	}
}

// restartRange stops children [lo,hi] in reverse order, then restarts them
// in original order, applying backoff before each restart attempt.
func (s *SupervisorNode) restartRange(ctx context.Context, lo, hi int) error {
	for i := hi; i >= lo; i-- {
		s.stopChild(s.children[i].instance, s.children[i].spec.ShutdownPolicy)
	}

	for i := lo; i <= hi; i++ {
		entry := s.children[i]
		delay := s.backoff.Delay(entry.restartAttempt)
		entry.restartAttempt++
		if delay > 0 {
			time.Sleep(delay)
		}
		entry.instance = entry.spec.Factory()
		entry.health = 0
		if err := s.startChild(ctx, entry.instance, entry.spec.StartTimeout); err != nil {
			s.log.Error("child restart failed", "child", entry.spec.ID, "error", err)
			if s.onEscalate != nil {
				s.onEscalate(fmt.Errorf("restarting child %s: %w", entry.spec.ID, err))
			}
			return err
		}
	}
	return nil
}

// ReportHealth records a health status for childID. N consecutive
// Unhealthy reports (healthLimit) force a restart with ExitHealthFailure.
func (s *SupervisorNode) ReportHealth(ctx context.Context, childID string, h Health) error {
	s.mu.Lock()
	k := s.indexOf(childID)
	if k < 0 {
		s.mu.Unlock()
		return fmt.Errorf("supervisor: unknown child %q", childID)
	}
	if h != Unhealthy {
		s.children[k].health = 0
		if h == Healthy {
			s.children[k].restartAttempt = 0
		}
		s.mu.Unlock()
		return nil
	}
	s.children[k].health++
	trigger := s.healthLimit > 0 && s.children[k].health >= s.healthLimit
	s.mu.Unlock()

	if trigger {
		return s.FailChild(ctx, childID, ExitHealthFailure)
	}
	return nil
}

// StopAll gracefully stops every child in reverse startup order, used for
// supervisor shutdown.
func (s *SupervisorNode) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.children) - 1; i >= 0; i-- {
		s.stopChild(s.children[i].instance, s.children[i].spec.ShutdownPolicy)
	}
	s.children = nil
}

var _ Child = (*SupervisorNode)(nil)

// Start satisfies the Child contract so one SupervisorNode can be
// registered as another's child, forming a supervision tree (spec §4.5).
// A sub-supervisor's own children are brought up individually via its own
// AddChild calls, not by this hook, so Start has nothing left to do here.
func (s *SupervisorNode) Start(context.Context) error { return nil }

// Stop satisfies the Child contract by stopping every grandchild.
func (s *SupervisorNode) Stop(context.Context) { s.StopAll() }
