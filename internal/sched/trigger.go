package sched

import (
	"context"
	"sync"
	"time"

	"scorebot/pkg/logx"
)

type Config struct {
	Spec Spec
	// RunOnStart fires one cycle immediately instead of waiting out the
	// first activation. The usual choice for a status card: the channel
	// shows something as soon as the bot is up.
	RunOnStart bool
}

// Trigger drives the cycle function off one schedule. Cycles run on the
// trigger goroutine, so a slow cycle delays the timer, never stacks; the
// controller's own overlap guard covers triggers from elsewhere.
type Trigger struct {
	run func(ctx context.Context, refreshIn time.Duration)
	log logx.Logger
	now func() time.Time

	mu     sync.Mutex
	spec   Spec
	reload chan struct{}

	runFirst bool
}

func NewTrigger(cfg Config, run func(ctx context.Context, refreshIn time.Duration), log logx.Logger) *Trigger {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Trigger{
		run:      run,
		log:      log,
		now:      time.Now,
		spec:     cfg.Spec,
		reload:   make(chan struct{}, 1),
		runFirst: cfg.RunOnStart,
	}
}

// Apply swaps the schedule and wakes the loop so the new cadence takes
// effect immediately, not after the old timer expires.
func (t *Trigger) Apply(spec Spec) {
	if spec.IsZero() {
		return
	}
	t.mu.Lock()
	changed := t.spec.String() != spec.String()
	t.spec = spec
	t.mu.Unlock()
	if !changed {
		return
	}
	select {
	case t.reload <- struct{}{}:
	default:
	}
}

func (t *Trigger) currentSpec() Spec {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spec
}

// Schedule returns the active schedule in its configured form.
func (t *Trigger) Schedule() string { return t.currentSpec().String() }

// Run loops until ctx is canceled. Activations stay on the schedule grid:
// a cycle that overruns its slot skips forward instead of bunching up.
func (t *Trigger) Run(ctx context.Context) error {
	spec := t.currentSpec()
	t.log.Info("poll trigger running", logx.String("schedule", spec.String()))

	if t.runFirst {
		t.fire(ctx, spec)
	}
	next := spec.Next(t.now())
	for {
		if cur := t.currentSpec(); cur.String() != spec.String() {
			t.log.Info("schedule changed",
				logx.String("from", spec.String()),
				logx.String("to", cur.String()))
			spec = cur
			next = spec.Next(t.now())
		}

		wait := next.Sub(t.now())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-t.reload:
			timer.Stop()
			continue
		case <-timer.C:
			t.fire(ctx, spec)
			now := t.now()
			next = spec.Next(next)
			if !next.After(now) {
				next = spec.Next(now)
			}
		}
	}
}

// fire runs one cycle. refreshIn is the distance to the activation after
// this one, which is what the card's next-refresh marker promises.
func (t *Trigger) fire(ctx context.Context, spec Spec) {
	if ctx.Err() != nil {
		return
	}
	fireAt := t.now()
	t.run(ctx, spec.Next(fireAt).Sub(fireAt))
}
