// Package ops serves the operational surface on a single HTTP server:
// /healthz (cycle state as JSON), /metrics (Prometheus text format) and,
// when enabled, pprof under /debug/pprof/.
//
// Security:
//   - Prefer binding to localhost (default).
//   - A non-loopback address requires Token or an explicit AllowInsecure.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scorebot/internal/eventbus"
	"scorebot/internal/poll"
	"scorebot/pkg/logx"
)

const (
	defaultAddr = "127.0.0.1:8090"
	ringSize    = 32
)

type Config struct {
	Enabled       bool
	Addr          string
	Token         string
	AllowInsecure bool
	Pprof         bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Health is the /healthz document.
type Health struct {
	Status              string      `json:"status"`
	CycleRunning        bool        `json:"cycle_running"`
	Cycles              uint64      `json:"cycles"`
	SkippedTriggers     uint64      `json:"skipped_triggers"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	LastSuccess         string      `json:"last_success,omitempty"`
	RecentEvents        []eventView `json:"recent_events,omitempty"`
}

type eventView struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

type Service struct {
	log  logx.Logger
	snap func() poll.Snapshot
	bus  eventbus.Bus
	met  *metrics

	mu       sync.Mutex
	cfg      Config
	ln       net.Listener
	srv      *http.Server
	stopDone chan struct{}

	ringMu sync.Mutex
	ring   []eventView
}

// New wires the service. snap feeds /healthz and the gauges; events from bus
// feed the counters and the recent-events ring once Watch runs.
func New(cfg Config, snap func() poll.Snapshot, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:  log,
		snap: snap,
		bus:  bus,
		met:  newMetrics(snap),
		cfg:  cfg,
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// Addr reports the bound listen address, "" when not running.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Watch consumes bus events for the counters and the /healthz event ring.
// Run it under the supervisor for the life of the process; it keeps working
// while the HTTP server itself is disabled.
func (s *Service) Watch(ctx context.Context) error {
	if s.bus == nil {
		<-ctx.Done()
		return nil
	}
	ch, unsub := s.bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			s.met.observe(ev)
			s.remember(ev)
		}
	}
}

func (s *Service) remember(ev eventbus.Event) {
	s.ringMu.Lock()
	defer s.ringMu.Unlock()
	s.ring = append(s.ring, eventView{Type: ev.Type, Time: ev.Time, Data: ev.Data})
	if len(s.ring) > ringSize {
		s.ring = s.ring[len(s.ring)-ringSize:]
	}
}

func (s *Service) recentEvents() []eventView {
	s.ringMu.Lock()
	defer s.ringMu.Unlock()
	return append([]eventView(nil), s.ring...)
}

// Reconfigure applies cfg and starts/stops/restarts the server as needed.
// Safe to call during hot-reload.
func (s *Service) Reconfigure(ctx context.Context, cfg Config) {
	s.mu.Lock()
	prev := s.cfg
	running := s.srv != nil
	s.cfg = cfg
	s.mu.Unlock()

	if !cfg.Enabled {
		if running {
			s.Stop(ctx)
		}
		return
	}
	if !running {
		s.Start(ctx)
		return
	}
	if needsRestart(prev, cfg) {
		s.Stop(ctx)
		s.Start(ctx)
	}
}

func needsRestart(a, b Config) bool {
	return a.Addr != b.Addr ||
		a.Token != b.Token ||
		a.AllowInsecure != b.AllowInsecure ||
		a.Pprof != b.Pprof ||
		a.ReadTimeout != b.ReadTimeout ||
		a.WriteTimeout != b.WriteTimeout ||
		a.IdleTimeout != b.IdleTimeout
}

func (s *Service) Start(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.srv != nil {
			s.mu.Unlock()
			return
		}
		// A stop may still be draining; wait it out to avoid double listen.
		if s.stopDone != nil {
			done := s.stopDone
			s.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return
			}
			continue
		}
		cur := s.cfg
		s.mu.Unlock()

		if !cur.Enabled {
			return
		}

		addr := strings.TrimSpace(cur.Addr)
		if addr == "" {
			addr = defaultAddr
		}
		if !cur.AllowInsecure && cur.Token == "" && !isLoopbackAddr(addr) {
			s.log.Error("ops server refused to start: non-loopback addr requires token or allow_insecure",
				logx.String("addr", addr))
			return
		}
		if cur.AllowInsecure && cur.Token == "" && !isLoopbackAddr(addr) {
			s.log.Warn("ops server running without token on non-loopback addr (insecure)",
				logx.String("addr", addr))
		}

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			s.log.Error("ops listen failed", logx.String("addr", addr), logx.Err(err))
			return
		}

		srv := &http.Server{
			Handler:      s.buildMux(cur),
			ReadTimeout:  cur.ReadTimeout,
			WriteTimeout: cur.WriteTimeout,
			IdleTimeout:  cur.IdleTimeout,
		}

		s.mu.Lock()
		s.ln = ln
		s.srv = srv
		s.mu.Unlock()

		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("ops server stopped with error", logx.Err(err))
			}
		}()

		s.log.Info("ops server started",
			logx.String("addr", ln.Addr().String()),
			logx.Bool("token_set", cur.Token != ""),
			logx.Bool("pprof", cur.Pprof))
		return
	}
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.srv == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	srv := s.srv
	ln := s.ln
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	// Close the listener first so Shutdown cannot hang on accept.
	if ln != nil {
		_ = ln.Close()
	}

	go func() {
		defer close(done)
		shutdownCtx := ctx
		if shutdownCtx == nil {
			shutdownCtx = context.Background()
		}
		_ = srv.Shutdown(shutdownCtx)
		_ = srv.Close()
		s.mu.Lock()
		s.stopDone = nil
		s.mu.Unlock()
		s.log.Info("ops server stopped")
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *Service) buildMux(cfg Config) *http.ServeMux {
	mux := http.NewServeMux()
	wrap := func(h http.Handler) http.Handler { return withAuth(cfg.Token, h) }

	mux.Handle("/healthz", wrap(http.HandlerFunc(s.handleHealthz)))
	mux.Handle("/metrics", wrap(promhttp.HandlerFor(s.met.reg, promhttp.HandlerOpts{})))

	if cfg.Pprof {
		mux.Handle("/debug/pprof/", wrap(http.HandlerFunc(hpprof.Index)))
		mux.Handle("/debug/pprof/cmdline", wrap(http.HandlerFunc(hpprof.Cmdline)))
		mux.Handle("/debug/pprof/profile", wrap(http.HandlerFunc(hpprof.Profile)))
		mux.Handle("/debug/pprof/symbol", wrap(http.HandlerFunc(hpprof.Symbol)))
		mux.Handle("/debug/pprof/trace", wrap(http.HandlerFunc(hpprof.Trace)))
	}
	return mux
}

func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	snap := s.snap()
	h := Health{
		Status:              "ok",
		CycleRunning:        snap.Running,
		Cycles:              snap.Cycles,
		SkippedTriggers:     snap.Skipped,
		ConsecutiveFailures: snap.ConsecutiveFailures,
		RecentEvents:        s.recentEvents(),
	}
	if snap.ConsecutiveFailures > 0 {
		h.Status = "degraded"
	}
	if !snap.LastSuccess.IsZero() {
		h.LastSuccess = snap.LastSuccess.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(h)
}

// withAuth accepts either "Authorization: Bearer <token>" or ?token=.
// An empty configured token disables the check.
func withAuth(token string, h http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h.ServeHTTP(w, r)
				return
			}
			unauthorized(w)
			return
		}
		if ah := r.Header.Get("Authorization"); ah != "" {
			const p = "Bearer "
			if strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
				h.ServeHTTP(w, r)
				return
			}
		}
		unauthorized(w)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// Empty host binds all interfaces.
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
