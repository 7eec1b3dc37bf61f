package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"
	"github.com/webitel/cloudevents-bin/internal/worker"
)

const (
	probeSeenSize     = 4096
	probeBreakerSize  = 1024
	probeTripFailures = 3
	probeOpenTimeout  = 30 * time.Second
	probeMaxBody      = 64 << 10
)

// Prober answers the abuse-protection handshake of a webhook sender by
// calling back the URL it supplied.
type Prober interface {
	// Probe schedules a GET of callback and returns immediately. It reports
	// whether a probe was actually scheduled.
	Probe(callback string) bool
}

type HandshakeProber struct {
	client  *http.Client
	spawner worker.Spawner
	timeout time.Duration
	logger  *slog.Logger

	// [DEDUPE] A sender retrying its handshake is probed once per TTL.
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
	// [CIRCUIT_BREAKER] One breaker per callback host.
	breakers *lru.Cache[string, *gobreaker.CircuitBreaker]
}

func NewHandshakeProber(spawner worker.Spawner, timeout, dedupeTTL time.Duration, logger *slog.Logger) *HandshakeProber {
	// [MEMORY_MANAGEMENT] Bounded caches; a size error is impossible with constant sizes.
	breakers, _ := lru.New[string, *gobreaker.CircuitBreaker](probeBreakerSize)

	return &HandshakeProber{
		client:   &http.Client{Timeout: timeout},
		spawner:  spawner,
		timeout:  timeout,
		logger:   logger,
		seen:     expirable.NewLRU[string, struct{}](probeSeenSize, nil, dedupeTTL),
		breakers: breakers,
	}
}

func (p *HandshakeProber) Probe(callback string) bool {
	u, err := url.Parse(callback)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		p.logger.Debug("PROBE_INVALID_CALLBACK", "callback", callback)
		return false
	}

	p.mu.Lock()
	dup := p.seen.Contains(callback)
	if !dup {
		p.seen.Add(callback, struct{}{})
	}
	p.mu.Unlock()
	if dup {
		return false
	}

	cb := p.breaker(u.Host)
	return p.spawner.Go("probe:"+u.Host, func(ctx context.Context) error {
		_, err := cb.Execute(func() (any, error) {
			return nil, p.get(ctx, callback)
		})
		if err != nil {
			p.logger.Warn("PROBE_FAILED", "callback", callback, "err", err)
			return nil
		}
		p.logger.Debug("PROBE_OK", "callback", callback)
		return nil
	})
}

func (p *HandshakeProber) get(ctx context.Context, callback string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, callback, nil)
	if err != nil {
		return fmt.Errorf("probe: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, probeMaxBody))

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("probe: callback answered %d", resp.StatusCode)
	}
	return nil
}

func (p *HandshakeProber) breaker(host string) *gobreaker.CircuitBreaker {
	if cb, ok := p.breakers.Get(host); ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    host,
		Timeout: probeOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= probeTripFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Info("PROBE_BREAKER_STATE", "host", name, "from", from.String(), "to", to.String())
		},
	})

	// [RACE] A concurrent caller may have created one first; keep theirs.
	if prev, ok, _ := p.breakers.PeekOrAdd(host, cb); ok {
		return prev
	}
	return cb
}
