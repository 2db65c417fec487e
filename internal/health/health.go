// Package health answers whether the storage backends are reachable.
package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ditrix/ditrix-server/internal/errs"
)

// Pinger is anything that can prove it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Status is one probe result. Components maps a backend name to its state.
type Status struct {
	OK         bool
	Components map[string]bool
	CheckedAt  time.Time
}

// Checker probes every registered backend and caches the answer for ttl.
type Checker struct {
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	pingers map[string]Pinger
	last    *Status
}

// New returns a checker; timeout bounds each probe, ttl bounds cache age (0 disables caching).
func New(timeout, ttl time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{timeout: timeout, ttl: ttl, now: time.Now, pingers: map[string]Pinger{}}
}

// Register adds a named backend.
func (c *Checker) Register(name string, p Pinger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingers[name] = p
	c.last = nil
}

// Status probes all backends concurrently, or returns the cached result.
func (c *Checker) Status(ctx context.Context) Status {
	c.mu.Lock()
	if c.last != nil && c.now().Sub(c.last.CheckedAt) < c.ttl {
		st := *c.last
		c.mu.Unlock()
		return st
	}
	pingers := make(map[string]Pinger, len(c.pingers))
	for k, v := range c.pingers {
		pingers[k] = v
	}
	c.mu.Unlock()

	// The result is shared, so the probe ignores the caller's cancellation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	var (
		mu  sync.Mutex
		res = make(map[string]bool, len(pingers))
		g   errgroup.Group
	)
	for name, p := range pingers {
		g.Go(func() error {
			ok := p.Ping(ctx) == nil
			mu.Lock()
			res[name] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	st := Status{OK: true, Components: res, CheckedAt: c.now()}
	for _, ok := range res {
		st.OK = st.OK && ok
	}

	c.mu.Lock()
	c.last = &st
	c.mu.Unlock()
	return st
}

// Ready returns nil when every backend answers, else ErrUnavailable naming the failures.
func (c *Checker) Ready(ctx context.Context) error {
	st := c.Status(ctx)
	if st.OK {
		return nil
	}
	var down []string
	for name, ok := range st.Components {
		if !ok {
			down = append(down, name)
		}
	}
	sort.Strings(down)
	return fmt.Errorf("%w: %s", errs.ErrUnavailable, strings.Join(down, ", "))
}
