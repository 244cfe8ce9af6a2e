// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coalesce collapses bursts of requests from one caller into a
// single execution. Each caller key runs a small state machine:
//
//	Idle -> Waiting (quiet timer armed) -> Executing -> Idle
//
// A request arriving while Waiting resets the timer and supersedes the
// waiting request. A request arriving while Executing cancels the running
// call, supersedes it, and returns the key to Waiting, unless WithIdentity
// reports it equal to the running request, in which case it joins that
// call and shares its result. Superseded requests receive ErrSuperseded;
// their results are discarded, never merged.
package coalesce

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrSuperseded is returned to a request replaced by a newer one from the
// same caller.
var ErrSuperseded = errors.New("superseded by a newer request")

// DefaultQuietPeriod is used when New is given a non-positive period.
const DefaultQuietPeriod = 600 * time.Millisecond

// State is a caller's position in the coalescing state machine.
type State int

const (
	Idle State = iota
	Waiting
	Executing
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Executing:
		return "executing"
	}
	return "idle"
}

// Func is the coalesced operation.
type Func[Q, R any] func(ctx context.Context, q Q) (R, error)

// Option configures a Coalescer.
type Option[Q, R any] func(*Coalescer[Q, R])

// WithIdentity lets a request equal to the executing one join it instead
// of restarting it. Requests are equal when id returns the same string.
func WithIdentity[Q, R any](id func(Q) string) Option[Q, R] {
	return func(c *Coalescer[Q, R]) { c.identity = id }
}

// Coalescer debounces calls to fn per caller key.
type Coalescer[Q, R any] struct {
	fn       Func[Q, R]
	quiet    time.Duration
	identity func(Q) string
	logger   zerolog.Logger

	mu      sync.Mutex
	seq     uint64
	callers map[string]*caller[Q, R]
}

type result[R any] struct {
	val R
	err error
}

// request is one Submit call.
type request[Q, R any] struct {
	ctx  context.Context
	q    Q
	done chan result[R]
	sent bool
}

// finish delivers the outcome once. Callers hold Coalescer.mu.
func (r *request[Q, R]) finish(val R, err error) {
	if r.sent {
		return
	}
	r.sent = true
	r.done <- result[R]{val: val, err: err}
}

type caller[Q, R any] struct {
	state   State
	gen     uint64
	pending *request[Q, R]
	timer   *time.Timer
	running *request[Q, R]
	joined  []*request[Q, R]
	cancel  context.CancelFunc
}

// stopRun cancels the executing call and ends every request sharing it.
// Callers hold Coalescer.mu.
func (cl *caller[Q, R]) stopRun(err error) {
	var zero R
	cl.cancel()
	cl.running.finish(zero, err)
	for _, j := range cl.joined {
		j.finish(zero, err)
	}
	cl.running, cl.joined, cl.cancel = nil, nil, nil
}

// live reports whether any request sharing the executing call still waits.
func (cl *caller[Q, R]) live() bool {
	if cl.running != nil && !cl.running.sent {
		return true
	}
	for _, j := range cl.joined {
		if !j.sent {
			return true
		}
	}
	return false
}

// New returns a Coalescer running fn after quiet has elapsed with no newer
// request from the same caller.
func New[Q, R any](fn Func[Q, R], quiet time.Duration, logger zerolog.Logger, opts ...Option[Q, R]) *Coalescer[Q, R] {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	c := &Coalescer[Q, R]{
		fn:      fn,
		quiet:   quiet,
		logger:  logger,
		callers: make(map[string]*caller[Q, R]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QuietPeriod returns the configured quiet window.
func (c *Coalescer[Q, R]) QuietPeriod() time.Duration { return c.quiet }

// Submit queues q for key and blocks until it executes, is superseded, or
// ctx ends. Only the last request within a quiet window runs.
func (c *Coalescer[Q, R]) Submit(ctx context.Context, key string, q Q) (R, error) {
	req := &request[Q, R]{ctx: ctx, q: q, done: make(chan result[R], 1)}

	c.mu.Lock()
	cl := c.callers[key]
	if cl == nil {
		cl = &caller[Q, R]{}
		c.callers[key] = cl
	}
	var zero R
	if cl.pending != nil {
		cl.timer.Stop()
		cl.pending.finish(zero, ErrSuperseded)
		c.logger.Debug().Str("caller", key).Msg("waiting request superseded")
	}
	if cl.running != nil {
		if c.identity != nil && c.identity(cl.running.q) == c.identity(q) {
			cl.joined = append(cl.joined, req)
			c.mu.Unlock()
			c.logger.Debug().Str("caller", key).Msg("request joined executing call")
			return c.wait(ctx, key, req)
		}
		cl.stopRun(ErrSuperseded)
		c.logger.Debug().Str("caller", key).Msg("executing request cancelled")
	}
	c.seq++
	gen := c.seq
	cl.gen = gen
	cl.pending = req
	cl.state = Waiting
	cl.timer = time.AfterFunc(c.quiet, func() { c.fire(key, gen) })
	c.mu.Unlock()

	return c.wait(ctx, key, req)
}

// wait blocks until req has an outcome or ctx ends.
func (c *Coalescer[Q, R]) wait(ctx context.Context, key string, req *request[Q, R]) (R, error) {
	var zero R
	select {
	case res := <-req.done:
		return res.val, res.err
	case <-ctx.Done():
		c.withdraw(key, req)
		// The outcome may have landed concurrently.
		select {
		case res := <-req.done:
			return res.val, res.err
		default:
		}
		return zero, ctx.Err()
	}
}

// State reports the current state for key.
func (c *Coalescer[Q, R]) State(key string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl := c.callers[key]; cl != nil {
		return cl.state
	}
	return Idle
}

// fire moves key from Waiting to Executing and runs the pending request.
func (c *Coalescer[Q, R]) fire(key string, gen uint64) {
	c.mu.Lock()
	cl := c.callers[key]
	if cl == nil || cl.gen != gen || cl.pending == nil {
		c.mu.Unlock()
		return
	}
	req := cl.pending
	cl.pending = nil
	// Joined requests keep the run alive after its originator leaves, so
	// cancellation is driven by stopRun and withdraw only.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(req.ctx))
	cl.running, cl.cancel = req, cancel
	cl.state = Executing
	c.mu.Unlock()

	c.logger.Debug().Str("caller", key).Msg("executing coalesced request")
	val, err := c.fn(runCtx, req.q)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if cl.running == req {
		for _, j := range cl.joined {
			j.finish(val, err)
		}
		cl.running, cl.joined, cl.cancel = nil, nil, nil
		c.settle(key, cl)
	}
	req.finish(val, err)
}

// withdraw removes a request whose caller gave up.
func (c *Coalescer[Q, R]) withdraw(key string, req *request[Q, R]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl := c.callers[key]
	if cl == nil {
		return
	}
	var zero R
	switch {
	case req == cl.pending:
		cl.timer.Stop()
		cl.pending = nil
		req.finish(zero, req.ctx.Err())
	case cl.running != nil && (req == cl.running || slices.Contains(cl.joined, req)):
		req.finish(zero, req.ctx.Err())
		if cl.live() {
			return
		}
		cl.stopRun(context.Canceled)
	default:
		return
	}
	c.settle(key, cl)
}

// settle returns an empty caller to Idle and forgets it. Callers hold mu.
func (c *Coalescer[Q, R]) settle(key string, cl *caller[Q, R]) {
	switch {
	case cl.running != nil:
		cl.state = Executing
	case cl.pending != nil:
		cl.state = Waiting
	default:
		cl.state = Idle
		delete(c.callers, key)
	}
}
