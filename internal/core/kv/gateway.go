package kv

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"go-kv-commerce/internal/apperr"
)

type GatewayOpts struct {
	Backend      string
	Redis        RedisOpts
	MaxAttempts  int           // retry budget per operation
	BaseDelay    time.Duration // first backoff step, doubled each attempt
	ProbeTimeout time.Duration // budget for one connectivity probe
}

func (o *GatewayOpts) defaults() {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 2 * time.Second
	}
}

// Gateway owns the single process-wide store handle. It is constructed
// explicitly and passed by reference; Reset is the teardown hook for tests.
type Gateway struct {
	opts GatewayOpts
	log  *zap.Logger

	sf    singleflight.Group
	mu    sync.RWMutex
	store Store
	fixed Store // pre-dialed handle, survives Reset

	probeFailures atomic.Int64
}

func NewGateway(opts GatewayOpts, log *zap.Logger) *Gateway {
	opts.defaults()
	return &Gateway{opts: opts, log: log}
}

// NewGatewayWithStore returns a gateway bound to a pre-dialed handle.
// Used by tests and embedded setups.
func NewGatewayWithStore(s Store, opts GatewayOpts, log *zap.Logger) *Gateway {
	opts.defaults()
	return &Gateway{opts: opts, log: log, fixed: s}
}

// Connection returns the cached store handle, dialing it on first use.
// Concurrent first-time callers converge on exactly one handle.
func (g *Gateway) Connection(ctx context.Context) (Store, error) {
	g.mu.RLock()
	s := g.store
	g.mu.RUnlock()
	if s != nil {
		return s, nil
	}

	v, err, _ := g.sf.Do("connect", func() (any, error) {
		g.mu.RLock()
		cached := g.store
		g.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		s := g.fixed
		if s == nil {
			var err error
			s, err = Open(g.opts.Backend, g.opts.Redis)
			if err != nil {
				return nil, apperr.Connection("store configuration invalid", err)
			}
		}

		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.opts.ProbeTimeout)
		defer cancel()
		if err := s.Ping(probeCtx); err != nil {
			if s != g.fixed {
				_ = s.Close()
			}
			return nil, apperr.Connection("store unreachable", err)
		}

		g.mu.Lock()
		g.store = s
		g.mu.Unlock()
		g.log.Info("kv store connected", zap.String("backend", g.opts.Backend))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Store), nil
}

// ValidateConnection probes the store. Failures increment a counter that a
// success resets.
func (g *Gateway) ValidateConnection(ctx context.Context) bool {
	s, err := g.Connection(ctx)
	if err != nil {
		g.probeFailures.Add(1)
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, g.opts.ProbeTimeout)
	defer cancel()
	if err := s.Ping(probeCtx); err != nil {
		n := g.probeFailures.Add(1)
		g.log.Warn("kv probe failed", zap.Int64("failures", n), zap.Error(err))
		return false
	}
	g.probeFailures.Store(0)
	return true
}

type Health struct {
	Status         string `json:"status"` // healthy | unhealthy
	ResponseTimeMs int64  `json:"responseTimeMs"`
	Attempts       int64  `json:"attempts"`
}

// HealthCheck times a connectivity probe.
func (g *Gateway) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	ok := g.ValidateConnection(ctx)
	h := Health{
		Status:         "healthy",
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Attempts:       g.probeFailures.Load(),
	}
	if !ok {
		h.Status = "unhealthy"
	}
	return h
}

type Report struct {
	Status   string `json:"status"`
	Database struct {
		Connected      bool   `json:"connected"`
		ResponseTimeMs int64  `json:"responseTimeMs"`
		Error          string `json:"error,omitempty"`
	} `json:"database"`
	Service struct {
		Initialized        bool  `json:"initialized"`
		ConnectionAttempts int64 `json:"connectionAttempts"`
		MaxRetries         int   `json:"maxRetries"`
	} `json:"service"`
}

// Report renders the monitoring shape served on /health.
func (g *Gateway) HealthReport(ctx context.Context) Report {
	h := g.HealthCheck(ctx)

	g.mu.RLock()
	initialized := g.store != nil
	g.mu.RUnlock()

	var r Report
	r.Status = h.Status
	r.Database.Connected = h.Status == "healthy"
	r.Database.ResponseTimeMs = h.ResponseTimeMs
	if !r.Database.Connected {
		r.Database.Error = "connectivity probe failed"
	}
	r.Service.Initialized = initialized
	r.Service.ConnectionAttempts = h.Attempts
	r.Service.MaxRetries = g.opts.MaxAttempts
	return r
}

// Retry runs fn, retrying transient failures with exponential backoff
// (BaseDelay * 2^(attempt-1)). Terminal failures propagate immediately
// without consuming attempts. A started sequence is not cancellable; the
// sleep is a plain timer.
func (g *Gateway) Retry(ctx context.Context, op string, fn func(context.Context) error) error {
	var last error
	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if !apperr.Retryable(last) {
			return last
		}
		if attempt == g.opts.MaxAttempts {
			break
		}
		delay := g.opts.BaseDelay * (1 << (attempt - 1))
		g.log.Warn("retrying store operation",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(last),
		)
		time.Sleep(delay)
	}
	return last
}

// RetryValue is Retry for operations that produce a value.
func RetryValue[T any](ctx context.Context, g *Gateway, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := g.Retry(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Reset drops the cached handle and counters. Test/teardown hook.
func (g *Gateway) Reset() {
	g.mu.Lock()
	if g.store != nil && g.store != g.fixed {
		_ = g.store.Close()
	}
	g.store = nil
	g.mu.Unlock()
	g.probeFailures.Store(0)
}
