package cgate

import (
	"sync"
	"sync/atomic"
	"time"
)

// Queue tuning.
const (
	// defaultQueueCapacity bounds the command backlog. When full, the
	// oldest command is dropped to make room.
	defaultQueueCapacity = 10000

	// defaultMessageInterval is the pause between dispatched commands.
	// C-Gate misbehaves when commands arrive back to back.
	defaultMessageInterval = 200 * time.Millisecond
)

// CommandQueue is a bounded FIFO that throttles outbound C-Gate commands.
//
// Commands are dispatched in order, one per message interval. When the
// queue is full the oldest command is dropped, never the newest: a stale
// command is worth less than a fresh one. Dispatch failures are logged
// and the command is discarded; there is no retry.
//
// Thread Safety: all methods are safe for concurrent use.
type CommandQueue struct {
	interval time.Duration
	capacity int
	execute  func(cmd string) error

	mu    sync.Mutex
	items []string

	// notify pulses when work arrives so the dispatcher can sleep
	// between bursts.
	notify chan struct{}

	done      *closeOnce
	wg        sync.WaitGroup
	startOnce sync.Once

	dropped atomic.Uint64

	logSink
}

// NewCommandQueue creates a queue that hands commands to execute at most
// once per interval. A zero interval uses the default.
func NewCommandQueue(interval time.Duration, execute func(cmd string) error) *CommandQueue {
	if interval <= 0 {
		interval = defaultMessageInterval
	}
	return &CommandQueue{
		interval: interval,
		capacity: defaultQueueCapacity,
		execute:  execute,
		notify:   make(chan struct{}, 1),
		done:     newCloseOnce(),
	}
}

// Start launches the dispatch goroutine. Subsequent calls are no-ops.
func (q *CommandQueue) Start() {
	q.startOnce.Do(func() {
		q.wg.Add(1)
		go q.dispatchLoop()
	})
}

// Enqueue appends a command for dispatch.
//
// Returns ErrQueueStopped after Stop. When the queue is at capacity the
// oldest queued command is dropped with a warning.
func (q *CommandQueue) Enqueue(cmd string) error {
	select {
	case <-q.done.Done():
		return ErrQueueStopped
	default:
	}

	q.mu.Lock()
	if len(q.items) >= q.capacity {
		dropped := q.items[0]
		q.items = q.items[1:]
		q.dropped.Add(1)
		q.logWarn("command queue full, dropping oldest",
			"capacity", q.capacity,
			"dropped", dropped)
	}
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Len returns the number of commands waiting for dispatch.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the total number of commands dropped at capacity.
func (q *CommandQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// Stop halts dispatch. Queued commands are discarded. Safe to call
// multiple times.
func (q *CommandQueue) Stop() {
	q.done.Close()
	q.wg.Wait()

	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// dispatchLoop drains the queue one command per interval.
func (q *CommandQueue) dispatchLoop() {
	defer q.wg.Done()

	for {
		select {
		case <-q.done.Done():
			return
		case <-q.notify:
		}

		for {
			cmd, ok := q.pop()
			if !ok {
				break
			}

			if err := q.execute(cmd); err != nil {
				q.logError("command dispatch failed", err)
			}

			select {
			case <-q.done.Done():
				return
			case <-time.After(q.interval):
			}
		}
	}
}

// pop removes and returns the oldest queued command.
func (q *CommandQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}
	cmd := q.items[0]
	q.items = q.items[1:]
	return cmd, true
}
