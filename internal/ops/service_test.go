package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scorebot/internal/deliver"
	"scorebot/internal/eventbus"
	"scorebot/internal/poll"
	"scorebot/pkg/logx"
)

func fixedSnap() poll.Snapshot {
	return poll.Snapshot{
		Cycles:              12,
		Skipped:             2,
		ConsecutiveFailures: 1,
		LastSuccess:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func get(t *testing.T, mux http.Handler, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReportsSnapshot(t *testing.T) {
	s := New(Config{}, fixedSnap, eventbus.New(), logx.Nop())
	s.remember(eventbus.Event{Type: poll.EventCompleted, Time: time.Now()})
	mux := s.buildMux(Config{})

	rec := get(t, mux, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var h Health
	if err := json.NewDecoder(rec.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Cycles != 12 || h.SkippedTriggers != 2 {
		t.Errorf("health = %+v", h)
	}
	if h.Status != "degraded" {
		t.Errorf("status = %q with one consecutive failure", h.Status)
	}
	if h.LastSuccess != "2025-06-01T12:00:00Z" {
		t.Errorf("last_success = %q", h.LastSuccess)
	}
	if len(h.RecentEvents) != 1 || h.RecentEvents[0].Type != poll.EventCompleted {
		t.Errorf("recent events = %+v", h.RecentEvents)
	}
}

func TestMetricsServeCounters(t *testing.T) {
	s := New(Config{}, fixedSnap, eventbus.New(), logx.Nop())
	s.met.observe(eventbus.Event{Type: deliver.EventPosted})
	s.met.observe(eventbus.Event{Type: deliver.EventPosted})
	s.met.observe(eventbus.Event{Type: poll.EventCompleted})
	s.met.observe(eventbus.Event{Type: poll.EventFetchFail})
	mux := s.buildMux(Config{})

	rec := get(t, mux, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`scorebot_deliveries_total{outcome="posted"} 2`,
		`scorebot_cycles_total{outcome="completed"} 1`,
		`scorebot_fetch_failures_total 1`,
		`scorebot_consecutive_fetch_failures 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestTokenGuard(t *testing.T) {
	s := New(Config{}, fixedSnap, eventbus.New(), logx.Nop())
	mux := s.buildMux(Config{Token: "s3cret"})

	if rec := get(t, mux, "/healthz", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rec.Code)
	}
	if rec := get(t, mux, "/healthz", map[string]string{"Authorization": "Bearer s3cret"}); rec.Code != http.StatusOK {
		t.Errorf("bearer: status = %d", rec.Code)
	}
	if rec := get(t, mux, "/healthz?token=s3cret", nil); rec.Code != http.StatusOK {
		t.Errorf("query token: status = %d", rec.Code)
	}
	if rec := get(t, mux, "/healthz?token=wrong", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d", rec.Code)
	}
}

func TestPprofMountedOnDemand(t *testing.T) {
	s := New(Config{}, fixedSnap, eventbus.New(), logx.Nop())

	withPprof := s.buildMux(Config{Pprof: true})
	if rec := get(t, withPprof, "/debug/pprof/", nil); rec.Code != http.StatusOK {
		t.Errorf("pprof index: status = %d", rec.Code)
	}
	without := s.buildMux(Config{})
	if rec := get(t, without, "/debug/pprof/", nil); rec.Code != http.StatusNotFound {
		t.Errorf("pprof mounted although disabled: status = %d", rec.Code)
	}
}

func TestRefusesPublicBindWithoutToken(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "0.0.0.0:0"}, fixedSnap, eventbus.New(), logx.Nop())
	s.Start(context.Background())
	if s.Running() {
		t.Fatal("server started on a public bind without token")
	}
}

func TestStartServesAndStops(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, fixedSnap, eventbus.New(), logx.Nop())
	s.Start(context.Background())
	if !s.Running() {
		t.Fatal("server not running")
	}
	addr := s.Addr()
	if addr == "" {
		t.Fatal("no bound address")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	if s.Running() {
		t.Fatal("server still running after Stop")
	}
}

func TestWatchFeedsRing(t *testing.T) {
	bus := eventbus.New()
	s := New(Config{}, fixedSnap, bus, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Watch(ctx)
	}()

	bus.Publish(eventbus.Event{Type: deliver.EventFailed, Time: time.Now()})

	deadline := time.After(2 * time.Second)
	for len(s.recentEvents()) == 0 {
		select {
		case <-deadline:
			t.Fatal("event never reached the ring")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	evs := s.recentEvents()
	if evs[0].Type != deliver.EventFailed {
		t.Fatalf("ring = %+v", evs)
	}
}
