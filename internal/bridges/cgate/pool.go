package cgate

import (
	"bufio"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Connection pool timing.
const (
	// reconnectBaseDelay is the first reconnection delay for a slot.
	reconnectBaseDelay = time.Second

	// reconnectMaxDelay caps the exponential backoff.
	reconnectMaxDelay = 60 * time.Second

	// maxBackoffShift keeps the doubling from overflowing; beyond this
	// the delay is already past the cap.
	maxBackoffShift = 6

	// writeTimeout bounds a single command write to a socket.
	writeTimeout = 5 * time.Second

	// keepAliveLine is written periodically to each healthy socket.
	// C-Gate treats '#' lines as comments and closes idle connections
	// without them.
	keepAliveLine = "# keepalive\n"
)

// backoffDelay returns the reconnection delay for the given consecutive
// failure count: 1s, 2s, 4s, ... capped at 60s.
func backoffDelay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	if retry > maxBackoffShift {
		return reconnectMaxDelay
	}
	delay := reconnectBaseDelay << retry
	if delay > reconnectMaxDelay {
		return reconnectMaxDelay
	}
	return delay
}

// PoolConfig holds command-port pool configuration.
type PoolConfig struct {
	// Addr is the C-Gate command port address, host:port.
	Addr string

	// Size is the number of connection slots.
	Size int

	// ConnectTimeout bounds each dial attempt.
	ConnectTimeout time.Duration

	// HealthCheckInterval is how often slot state is audited.
	HealthCheckInterval time.Duration

	// KeepAliveInterval is how often the comment line is written to
	// keep idle sockets open.
	KeepAliveInterval time.Duration

	// MaxStartRetries is the number of dial rounds Start makes before
	// giving up with ErrNoHealthyConnections.
	MaxStartRetries int
}

// Pool maintains a fixed set of command-port connections to C-Gate and
// dispatches commands across the healthy ones round-robin.
//
// Each slot reconnects independently with exponential backoff, at most
// one pending reconnection attempt per slot. A successful connect
// resets that slot's failure count. Response lines read from any slot
// are delivered to the line callback.
//
// Thread Safety: all methods are safe for concurrent use.
type Pool struct {
	cfg    PoolConfig
	onLine func(slot int, line string)

	mu           sync.Mutex
	conns        []net.Conn
	healthy      map[int]struct{}
	healthyCache []int
	cacheValid   bool
	cursor       int
	retryCounts  []int
	pending      map[int]*time.Timer
	started      bool
	stopping     bool

	done *closeOnce
	wg   sync.WaitGroup

	logSink
}

// NewPool creates a pool. onLine receives every response line read from
// a command socket, tagged with its slot index.
func NewPool(cfg PoolConfig, onLine func(slot int, line string)) *Pool {
	if cfg.Size < 1 {
		cfg.Size = 1
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = 60 * time.Second
	}
	if cfg.MaxStartRetries < 1 {
		cfg.MaxStartRetries = 1
	}
	return &Pool{
		cfg:     cfg,
		onLine:  onLine,
		pending: make(map[int]*time.Timer),
		healthy: make(map[int]struct{}),
		done:    newCloseOnce(),
	}
}

// Start dials all slots and launches the health-check and keep-alive
// loops.
//
// It makes up to MaxStartRetries dial rounds; if no slot connects it
// returns ErrNoHealthyConnections. Slots that fail while at least one
// succeeds begin their reconnection schedule immediately. Calling Start
// on a started pool logs a warning and returns nil.
func (p *Pool) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		p.logWarn("pool already started")
		return nil
	}
	p.started = true
	p.conns = make([]net.Conn, p.cfg.Size)
	p.retryCounts = make([]int, p.cfg.Size)
	p.mu.Unlock()

	for attempt := 1; attempt <= p.cfg.MaxStartRetries; attempt++ {
		p.dialAll()
		if p.HealthyCount() > 0 {
			break
		}
		if attempt == p.cfg.MaxStartRetries {
			break
		}
		p.logWarn("no connections established, retrying",
			"attempt", attempt,
			"addr", p.cfg.Addr)
		select {
		case <-p.done.Done():
			return ErrPoolStopped
		case <-time.After(backoffDelay(attempt - 1)):
		}
	}

	if p.HealthyCount() == 0 {
		return fmt.Errorf("%w: %s", ErrNoHealthyConnections, p.cfg.Addr)
	}

	// Slots that missed the startup rounds heal in the background.
	p.mu.Lock()
	for slot := range p.conns {
		if p.conns[slot] == nil {
			p.scheduleReconnectLocked(slot)
		}
	}
	p.mu.Unlock()

	p.wg.Add(1)
	go p.healthCheckLoop()
	p.wg.Add(1)
	go p.keepAliveLoop()

	p.logInfo("connection pool started",
		"addr", p.cfg.Addr,
		"slots", p.cfg.Size,
		"healthy", p.HealthyCount())
	return nil
}

// dialAll attempts to connect every empty slot concurrently.
func (p *Pool) dialAll() {
	var dialWg sync.WaitGroup
	for slot := 0; slot < p.cfg.Size; slot++ {
		p.mu.Lock()
		occupied := p.conns[slot] != nil
		p.mu.Unlock()
		if occupied {
			continue
		}

		dialWg.Add(1)
		go func(slot int) {
			defer dialWg.Done()
			if err := p.connectSlot(slot); err != nil {
				p.logWarn("slot connect failed", "slot", slot, "error", err)
			}
		}(slot)
	}
	dialWg.Wait()
}

// connectSlot dials one slot and promotes it to healthy.
func (p *Pool) connectSlot(slot int) error {
	conn, err := net.DialTimeout("tcp", p.cfg.Addr, p.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		conn.Close()
		return ErrPoolStopped
	}
	p.conns[slot] = conn
	p.retryCounts[slot] = 0
	p.healthy[slot] = struct{}{}
	p.cacheValid = false
	p.mu.Unlock()

	p.wg.Add(1)
	go p.readLoop(slot, conn)

	p.logInfo("slot connected", "slot", slot, "addr", p.cfg.Addr)
	return nil
}

// readLoop reads response lines from one slot until the connection
// drops.
func (p *Pool) readLoop(slot int, conn net.Conn) {
	defer p.wg.Done()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if p.onLine != nil {
			p.onLine(slot, scanner.Text())
		}
	}

	select {
	case <-p.done.Done():
		return
	default:
	}

	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("connection closed by peer")
	}
	p.demote(slot, conn, err)
}

// Execute writes one command line to the next healthy slot.
//
// Slot selection is round-robin over a cached healthy list; the cache
// is rebuilt only when pool membership changes. A write failure demotes
// the slot and returns the error; the command is not retried.
func (p *Pool) Execute(cmd string) error {
	p.mu.Lock()
	if !p.started || p.stopping {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	if !p.cacheValid {
		p.rebuildCacheLocked()
	}
	if len(p.healthyCache) == 0 {
		p.mu.Unlock()
		return ErrNoHealthyConnections
	}
	slot := p.healthyCache[p.cursor%len(p.healthyCache)]
	p.cursor++
	conn := p.conns[slot]
	p.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		p.demote(slot, conn, err)
		return fmt.Errorf("%w: slot %d: %w", ErrConnectionFailed, slot, err)
	}
	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		p.demote(slot, conn, err)
		return fmt.Errorf("%w: slot %d: %w", ErrConnectionFailed, slot, err)
	}

	p.logDebug("command sent", "slot", slot, "command", cmd)
	return nil
}

// rebuildCacheLocked refreshes the round-robin candidate list. Caller
// holds p.mu.
func (p *Pool) rebuildCacheLocked() {
	p.healthyCache = p.healthyCache[:0]
	for slot := range p.healthy {
		p.healthyCache = append(p.healthyCache, slot)
	}
	sort.Ints(p.healthyCache)
	p.cacheValid = true
}

// demote removes a slot from rotation and schedules its reconnection.
// conn is the connection the caller observed failing; if a reconnect
// has already installed a fresh socket in the slot, the demotion is a
// no-op.
func (p *Pool) demote(slot int, conn net.Conn, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conns[slot] != conn {
		return
	}

	if _, ok := p.healthy[slot]; ok {
		delete(p.healthy, slot)
		p.cacheValid = false
		p.logWarn("slot demoted", "slot", slot, "error", err)
	}
	if conn != nil {
		conn.Close()
		p.conns[slot] = nil
	}
	p.scheduleReconnectLocked(slot)
}

// scheduleReconnectLocked arms at most one reconnection timer for a
// slot. Caller holds p.mu.
func (p *Pool) scheduleReconnectLocked(slot int) {
	if p.stopping {
		return
	}
	if _, ok := p.pending[slot]; ok {
		return
	}

	delay := backoffDelay(p.retryCounts[slot])
	p.retryCounts[slot]++
	p.logInfo("reconnect scheduled", "slot", slot, "delay", delay.String())

	p.pending[slot] = time.AfterFunc(delay, func() {
		p.reconnectSlot(slot)
	})
}

// reconnectSlot is the timer body for a scheduled reconnection.
func (p *Pool) reconnectSlot(slot int) {
	p.mu.Lock()
	delete(p.pending, slot)
	stopping := p.stopping
	p.mu.Unlock()

	if stopping {
		return
	}

	if err := p.connectSlot(slot); err != nil {
		p.logWarn("reconnect failed", "slot", slot, "error", err)
		p.mu.Lock()
		p.scheduleReconnectLocked(slot)
		p.mu.Unlock()
	}
}

// healthCheckLoop audits slot state on a timer, demoting inconsistent
// slots and re-arming reconnection for any slot left behind.
func (p *Pool) healthCheckLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done.Done():
			return
		case <-ticker.C:
			p.auditSlots()
		}
	}
}

// auditSlots reconciles the healthy set with actual connection state.
func (p *Pool) auditSlots() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopping {
		return
	}

	for slot := 0; slot < p.cfg.Size; slot++ {
		_, isHealthy := p.healthy[slot]
		hasConn := p.conns[slot] != nil

		switch {
		case isHealthy && !hasConn:
			delete(p.healthy, slot)
			p.cacheValid = false
			p.logWarn("health check: healthy slot has no connection", "slot", slot)
			p.scheduleReconnectLocked(slot)
		case !isHealthy && !hasConn:
			// Belt and braces: a slot with no timer pending would
			// otherwise never recover.
			p.scheduleReconnectLocked(slot)
		}
	}

	p.logDebug("health check complete",
		"healthy", len(p.healthy),
		"slots", p.cfg.Size)
}

// keepAliveLoop writes a comment line to every healthy slot so C-Gate
// does not close idle connections.
func (p *Pool) keepAliveLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done.Done():
			return
		case <-ticker.C:
			p.sendKeepAlives()
		}
	}
}

// sendKeepAlives writes the keep-alive line to each healthy slot,
// demoting any that fail.
func (p *Pool) sendKeepAlives() {
	p.mu.Lock()
	targets := make(map[int]net.Conn, len(p.healthy))
	for slot := range p.healthy {
		if conn := p.conns[slot]; conn != nil {
			targets[slot] = conn
		}
	}
	p.mu.Unlock()

	for slot, conn := range targets {
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			p.demote(slot, conn, err)
			continue
		}
		if _, err := conn.Write([]byte(keepAliveLine)); err != nil {
			p.demote(slot, conn, err)
		}
	}
}

// HealthyCount returns the number of slots currently in rotation.
func (p *Pool) HealthyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.healthy)
}

// Stop closes every connection, cancels pending reconnections and
// resets failure counts. Safe to call multiple times; repeat calls are
// silent no-ops.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopping {
		p.mu.Unlock()
		return
	}
	p.stopping = true

	for slot, timer := range p.pending {
		timer.Stop()
		delete(p.pending, slot)
	}
	for slot, conn := range p.conns {
		if conn != nil {
			conn.Close()
			p.conns[slot] = nil
		}
	}
	p.healthy = make(map[int]struct{})
	p.cacheValid = false
	for slot := range p.retryCounts {
		p.retryCounts[slot] = 0
	}
	p.mu.Unlock()

	p.done.Close()
	p.wg.Wait()

	p.logInfo("connection pool stopped")
}
