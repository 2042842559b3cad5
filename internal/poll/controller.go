// Package poll owns the status cycle: fetch a snapshot, render it, hand it
// to the delivery engine. Cycles are single-flight; a trigger landing while
// one is still running is counted and dropped, never queued.
package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"scorebot/internal/card"
	"scorebot/internal/deliver"
	"scorebot/internal/eventbus"
	"scorebot/internal/source"
	"scorebot/pkg/logx"
)

// Event types published per cycle.
const (
	EventStarted   = "cycle.started"
	EventSkipped   = "cycle.skipped"
	EventCompleted = "cycle.completed"
	EventFetchFail = "fetch.failed"
)

const defaultErrorThreshold = 3

// Fetcher yields one status snapshot per call and tracks consecutive
// failures across calls.
type Fetcher interface {
	Fetch(ctx context.Context) (*source.ServerState, error)
	Failures() int
}

// Deliverer pushes one rendered card to every destination.
type Deliverer interface {
	Deliver(ctx context.Context, c card.Card) deliver.Result
}

type Config struct {
	// ErrorThreshold is how many consecutive fetch failures it takes until
	// the unreachable-server card goes out. Below it, failures only log.
	ErrorThreshold int
	// Card carries presentation knobs through to the renderer.
	Card card.Options
	// Location is the timezone stamped onto cards. Nil means local time.
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = defaultErrorThreshold
	}
	return c
}

// Snapshot is the controller state the health endpoint reports.
type Snapshot struct {
	Running             bool
	Cycles              uint64
	Skipped             uint64
	ConsecutiveFailures int
	LastSuccess         time.Time
}

type Controller struct {
	fetch Fetcher
	dlv   Deliverer
	bus   eventbus.Bus
	log   logx.Logger
	now   func() time.Time

	cfgMu sync.RWMutex
	cfg   Config

	running atomic.Bool

	statMu      sync.Mutex
	cycles      uint64
	skipped     uint64
	lastSuccess time.Time
}

func New(cfg Config, fetch Fetcher, dlv Deliverer, bus eventbus.Bus, log logx.Logger) *Controller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Controller{
		fetch: fetch,
		dlv:   dlv,
		bus:   bus,
		log:   log,
		now:   time.Now,
		cfg:   cfg.withDefaults(),
	}
}

// Apply updates threshold, timeout and presentation at runtime.
func (c *Controller) Apply(cfg Config) {
	c.cfgMu.Lock()
	c.cfg = cfg.withDefaults()
	c.cfgMu.Unlock()
}

func (c *Controller) config() Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

func (c *Controller) timeNow() time.Time {
	t := c.now()
	if loc := c.config().Location; loc != nil {
		t = t.In(loc)
	}
	return t
}

// Snapshot reports controller state for the health endpoint.
func (c *Controller) Snapshot() Snapshot {
	c.statMu.Lock()
	defer c.statMu.Unlock()
	return Snapshot{
		Running:             c.running.Load(),
		Cycles:              c.cycles,
		Skipped:             c.skipped,
		ConsecutiveFailures: c.fetch.Failures(),
		LastSuccess:         c.lastSuccess,
	}
}

// RunCycle executes one fetch→render→deliver pass. refreshIn is the distance
// to the next scheduled trigger; it lands on the card as the next-refresh
// marker. Reentrant triggers are dropped.
//
// The cycle itself carries no deadline: every outbound call is individually
// bounded (fetch attempt timeout, per-request sender timeouts), and an
// overrunning cycle only costs skipped triggers.
func (c *Controller) RunCycle(ctx context.Context, refreshIn time.Duration) {
	if !c.running.CompareAndSwap(false, true) {
		c.statMu.Lock()
		c.skipped++
		n := c.skipped
		c.statMu.Unlock()
		c.publish(EventSkipped, map[string]any{"total_skipped": n})
		c.log.Warn("previous cycle still running, trigger skipped")
		return
	}
	defer c.running.Store(false)

	cfg := c.config()
	start := c.now()
	c.publish(EventStarted, nil)

	st, err := c.fetch.Fetch(ctx)
	if err != nil {
		c.failedCycle(ctx, cfg, err, start, refreshIn)
		return
	}

	sc := card.Status(st, cfg.Card, c.timeNow(), refreshIn)
	res := c.dlv.Deliver(ctx, sc)
	if res.Delivered > 0 {
		c.statMu.Lock()
		c.lastSuccess = c.now()
		c.statMu.Unlock()
	}
	c.log.Info("status cycle completed",
		logx.Int("humans", st.Humans),
		logx.Int("max_players", st.MaxPlayers),
		logx.String("map", st.Map),
		logx.Int("delivered", res.Delivered),
		logx.Int("total", res.Total),
		logx.Duration("took", time.Since(start)))
	c.completed(start, res, true)
}

// failedCycle decides between log-only and pushing the unreachable card.
func (c *Controller) failedCycle(ctx context.Context, cfg Config, err error, start time.Time, refreshIn time.Duration) {
	fails := c.fetch.Failures()
	c.publish(EventFetchFail, map[string]any{"consecutive": fails, "error": err.Error()})

	if ctx.Err() != nil {
		// Shutdown, not a server verdict.
		c.completed(start, deliver.Result{}, false)
		return
	}
	if fails < cfg.ErrorThreshold {
		c.log.Warn("status fetch failed",
			logx.Int("consecutive", fails),
			logx.Int("threshold", cfg.ErrorThreshold),
			logx.Err(err))
		c.completed(start, deliver.Result{}, false)
		return
	}

	ec := card.Error(err, fails, cfg.Card, c.timeNow(), refreshIn)
	res := c.dlv.Deliver(ctx, ec)
	c.log.Warn("status fetch failing, unreachable card delivered",
		logx.Int("consecutive", fails),
		logx.Int("delivered", res.Delivered),
		logx.Int("total", res.Total),
		logx.Err(err))
	c.completed(start, res, false)
}

func (c *Controller) completed(start time.Time, res deliver.Result, fetchOK bool) {
	c.statMu.Lock()
	c.cycles++
	c.statMu.Unlock()
	c.publish(EventCompleted, map[string]any{
		"fetch_ok":    fetchOK,
		"delivered":   res.Delivered,
		"total":       res.Total,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (c *Controller) publish(typ string, data any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{Type: typ, Time: c.now(), Data: data})
}
