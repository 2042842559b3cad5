// Package deliver fans one rendered card out to every configured
// destination, editing the previously posted message in place wherever the
// backend still lets us.
//
// Protocol per destination:
//  1. look up the stored message id; if present, try an edit
//  2. a failed edit evicts the stale id and falls through to a fresh post
//  3. a successful post stores the new id for the next cycle
//
// The whole fan-out shares one rate limiter so a burst of destinations
// cannot trip platform flood control.
package deliver

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"scorebot/internal/card"
	"scorebot/internal/eventbus"
	"scorebot/internal/storage"
	"scorebot/internal/transport"
	"scorebot/pkg/logx"
)

// Event types published per destination attempt.
const (
	EventEdited = "deliver.edited"
	EventPosted = "deliver.posted"
	EventFailed = "deliver.failed"
)

type Config struct {
	// RatePerSec caps outbound API calls across all destinations.
	// Zero or negative disables the limiter.
	RatePerSec int
}

// Result is one fan-out outcome. Delivered counts destinations whose card is
// current after the cycle (fresh edit or new post), not individual API calls.
type Result struct {
	Delivered int
	Total     int
}

func (r Result) AllFailed() bool { return r.Total > 0 && r.Delivered == 0 }

type Engine struct {
	store storage.Store
	bus   eventbus.Bus
	log   logx.Logger

	mu      sync.RWMutex
	senders []transport.Sender
	lim     *rate.Limiter
}

func New(cfg Config, store storage.Store, bus eventbus.Bus, log logx.Logger) *Engine {
	if store == nil {
		store = storage.NewMemory()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{store: store, bus: bus, log: log}
	e.Apply(cfg)
	return e
}

// Apply updates the rate limit. Safe during an in-flight fan-out; calls
// already waiting keep the old limiter.
func (e *Engine) Apply(cfg Config) {
	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	e.mu.Lock()
	e.lim = lim
	e.mu.Unlock()
}

// SetSenders replaces the destination set (config reload). An in-flight
// fan-out keeps the set it started with.
func (e *Engine) SetSenders(ss []transport.Sender) {
	cp := append([]transport.Sender(nil), ss...)
	e.mu.Lock()
	e.senders = cp
	e.mu.Unlock()
}

// Deliver fans c out to every destination and blocks until all attempts
// finish. It never fails as a whole: per-destination errors are logged,
// published on the bus and reflected in the Result only.
func (e *Engine) Deliver(ctx context.Context, c card.Card) Result {
	e.mu.RLock()
	senders := e.senders
	e.mu.RUnlock()

	res := Result{Total: len(senders)}
	if len(senders) == 0 {
		return res
	}

	ok := make([]bool, len(senders))
	var wg sync.WaitGroup
	for i, s := range senders {
		wg.Add(1)
		go func(i int, s transport.Sender) {
			defer wg.Done()
			ok[i] = e.deliverOne(ctx, s, c)
		}(i, s)
	}
	wg.Wait()

	for _, d := range ok {
		if d {
			res.Delivered++
		}
	}
	return res
}

// deliverOne runs the edit-or-post protocol for one destination.
func (e *Engine) deliverOne(ctx context.Context, s transport.Sender, c card.Card) bool {
	log := e.log.With(logx.String("dest", s.Label()), logx.String("kind", s.Kind()))

	id, found, err := e.store.Get(ctx, s.Target())
	if err != nil {
		log.Warn("message-id lookup failed", logx.Err(err))
		found = false
	}

	if found && id != "" {
		if err := e.wait(ctx); err != nil {
			return false
		}
		err := s.Edit(ctx, transport.MessageRef(id), c)
		if err == nil {
			e.publish(EventEdited, s, nil)
			log.Debug("card edited in place", logx.String("msg_id", id))
			return true
		}
		if ctx.Err() != nil {
			// Shutdown, not a verdict on the stored id.
			return false
		}
		// The old message is gone or rejects edits; forget it and post fresh.
		log.Debug("edit failed, reposting", logx.String("msg_id", id), logx.Err(err))
		if derr := e.store.Delete(ctx, s.Target()); derr != nil {
			log.Warn("evicting stale message id failed", logx.Err(derr))
		}
	}

	if err := e.wait(ctx); err != nil {
		return false
	}
	ref, err := s.Send(ctx, c)
	if err != nil {
		log.Warn("card delivery failed", logx.Err(err))
		e.publish(EventFailed, s, err)
		return false
	}
	if ref != "" {
		if serr := e.store.Set(ctx, s.Target(), string(ref)); serr != nil {
			log.Warn("storing message id failed", logx.Err(serr))
		}
	}
	e.publish(EventPosted, s, nil)
	log.Debug("card posted", logx.String("msg_id", string(ref)))
	return true
}

func (e *Engine) wait(ctx context.Context) error {
	e.mu.RLock()
	lim := e.lim
	e.mu.RUnlock()
	if lim == nil {
		return ctx.Err()
	}
	return lim.Wait(ctx)
}

func (e *Engine) publish(typ string, s transport.Sender, err error) {
	if e.bus == nil {
		return
	}
	data := map[string]any{
		"dest": s.Label(),
		"kind": s.Kind(),
	}
	if err != nil {
		data["error"] = err.Error()
	}
	e.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}
