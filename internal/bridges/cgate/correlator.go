package cgate

import (
	"fmt"
	"sync"
	"time"
)

// defaultCorrelationTimeout bounds how long a relative ramp waits for
// its GET level reply before giving up.
const defaultCorrelationTimeout = 5 * time.Second

// Correlator matches level reports arriving on the command sockets with
// pending relative ramp operations.
//
// INCREASE and DECREASE payloads need the current level before the new
// target can be computed, so the bridge issues a GET and registers a
// one-shot listener here. At most one listener may be pending per group
// address; exactly one of delivery or timeout fires for each
// registration, and either way the registration is removed.
//
// Thread Safety: all methods are safe for concurrent use.
type Correlator struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingLevel

	logSink
}

type pendingLevel struct {
	timer   *time.Timer
	deliver func(raw int)
}

// NewCorrelator creates a correlator. A zero timeout uses the default.
func NewCorrelator(timeout time.Duration) *Correlator {
	if timeout <= 0 {
		timeout = defaultCorrelationTimeout
	}
	return &Correlator{
		timeout: timeout,
		pending: make(map[string]*pendingLevel),
	}
}

// Register installs a one-shot listener for the next level report on
// addr. Returns ErrPendingExists if a listener is already waiting on
// the same address; the caller should drop the duplicate request.
func (c *Correlator) Register(addr GroupAddress, deliver func(raw int)) error {
	key := addr.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[key]; exists {
		return fmt.Errorf("%w: %s", ErrPendingExists, key)
	}

	p := &pendingLevel{deliver: deliver}
	p.timer = time.AfterFunc(c.timeout, func() {
		c.expire(key)
	})
	c.pending[key] = p
	return nil
}

// Deliver hands a level report to the listener waiting on addr, if any.
// Returns true when a listener consumed the report.
func (c *Correlator) Deliver(addr GroupAddress, raw int) bool {
	key := addr.String()

	c.mu.Lock()
	p, ok := c.pending[key]
	if ok {
		p.timer.Stop()
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}

	// Invoke outside the lock so the callback can enqueue follow-up
	// commands freely.
	p.deliver(raw)
	return true
}

// PendingCount returns the number of listeners awaiting a level report.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Stop cancels all pending listeners without invoking them.
func (c *Correlator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, p := range c.pending {
		p.timer.Stop()
		delete(c.pending, key)
	}
}

// expire removes a listener whose level report never arrived.
func (c *Correlator) expire(key string) {
	c.mu.Lock()
	_, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if ok {
		c.logWarn("level request timed out", "address", key)
	}
}
