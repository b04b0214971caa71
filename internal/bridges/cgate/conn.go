package cgate

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"
)

// EventConnection maintains the single connection to the C-Gate event
// port and delivers each received line to a callback.
//
// The event port is receive-only: C-Gate streams unsolicited bus
// activity and the bridge never writes to it. When the connection drops
// the same exponential backoff as the command pool applies, and the
// failure count resets on a successful connect.
//
// Thread Safety: all methods are safe for concurrent use.
type EventConnection struct {
	addr           string
	connectTimeout time.Duration
	onLine         func(line string)

	mu         sync.Mutex
	conn       net.Conn
	connected  bool
	retryCount int

	done *closeOnce
	wg   sync.WaitGroup

	logSink
}

// NewEventConnection creates an event connection for addr (host:port).
// onLine receives every line from the event stream.
func NewEventConnection(addr string, connectTimeout time.Duration, onLine func(line string)) *EventConnection {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	return &EventConnection{
		addr:           addr,
		connectTimeout: connectTimeout,
		onLine:         onLine,
		done:           newCloseOnce(),
	}
}

// Start dials the event port and begins streaming.
//
// The initial dial is synchronous so startup can fail fast when the
// gateway is unreachable. Later disconnects reconnect in the background.
func (e *EventConnection) Start() error {
	conn, err := net.DialTimeout("tcp", e.addr, e.connectTimeout)
	if err != nil {
		return fmt.Errorf("%w: event port %s: %w", ErrConnectionFailed, e.addr, err)
	}

	e.mu.Lock()
	e.conn = conn
	e.connected = true
	e.retryCount = 0
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(conn)

	e.logInfo("event connection established", "addr", e.addr)
	return nil
}

// run streams lines from the current connection and reconnects when it
// drops, until Stop is called.
func (e *EventConnection) run(conn net.Conn) {
	defer e.wg.Done()

	for {
		e.readLines(conn)

		select {
		case <-e.done.Done():
			return
		default:
		}

		e.mu.Lock()
		e.connected = false
		if e.conn != nil {
			e.conn.Close()
			e.conn = nil
		}
		e.mu.Unlock()
		e.logWarn("event connection lost", "addr", e.addr)

		var ok bool
		conn, ok = e.reconnect()
		if !ok {
			return
		}
	}
}

// readLines delivers event lines until the connection fails.
func (e *EventConnection) readLines(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if e.onLine != nil {
			e.onLine(scanner.Text())
		}
	}
}

// reconnect redials with exponential backoff until it succeeds or the
// connection is stopped.
func (e *EventConnection) reconnect() (net.Conn, bool) {
	for {
		e.mu.Lock()
		delay := backoffDelay(e.retryCount)
		e.retryCount++
		e.mu.Unlock()

		e.logInfo("event reconnect scheduled", "addr", e.addr, "delay", delay.String())

		select {
		case <-e.done.Done():
			return nil, false
		case <-time.After(delay):
		}

		conn, err := net.DialTimeout("tcp", e.addr, e.connectTimeout)
		if err != nil {
			e.logWarn("event reconnect failed", "addr", e.addr, "error", err)
			continue
		}

		e.mu.Lock()
		if e.stopped() {
			e.mu.Unlock()
			conn.Close()
			return nil, false
		}
		e.conn = conn
		e.connected = true
		e.retryCount = 0
		e.mu.Unlock()

		e.logInfo("event connection re-established", "addr", e.addr)
		return conn, true
	}
}

// stopped reports whether Stop has been called.
func (e *EventConnection) stopped() bool {
	select {
	case <-e.done.Done():
		return true
	default:
		return false
	}
}

// IsConnected reports whether the event stream is currently up.
func (e *EventConnection) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// Stop closes the connection and halts reconnection. Safe to call
// multiple times.
func (e *EventConnection) Stop() {
	e.done.Close()

	e.mu.Lock()
	e.connected = false
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
	e.mu.Unlock()

	e.wg.Wait()
	e.logInfo("event connection stopped")
}
