package cgate

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestCorrelatorDeliver(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Stop()

	addr := GroupAddress{254, 56, 4}
	var got atomic.Int64
	got.Store(-1)

	if err := c.Register(addr, func(raw int) { got.Store(int64(raw)) }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if c.PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d, want 1", c.PendingCount())
	}

	if !c.Deliver(addr, 128) {
		t.Fatal("Deliver returned false with a listener registered")
	}
	if got.Load() != 128 {
		t.Errorf("delivered raw = %d, want 128", got.Load())
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after delivery, want 0", c.PendingCount())
	}

	// Second delivery has nobody to consume it.
	if c.Deliver(addr, 64) {
		t.Error("Deliver should return false once the listener is consumed")
	}
}

func TestCorrelatorRejectsDuplicate(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Stop()

	addr := GroupAddress{254, 56, 4}
	if err := c.Register(addr, func(int) {}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := c.Register(addr, func(int) {})
	if !errors.Is(err, ErrPendingExists) {
		t.Errorf("duplicate Register = %v, want ErrPendingExists", err)
	}

	// A different address is unaffected.
	other := GroupAddress{254, 56, 5}
	if err := c.Register(other, func(int) {}); err != nil {
		t.Errorf("Register(other) = %v", err)
	}
}

func TestCorrelatorTimeout(t *testing.T) {
	c := NewCorrelator(20 * time.Millisecond)
	defer c.Stop()

	addr := GroupAddress{254, 56, 4}
	var fired atomic.Bool
	if err := c.Register(addr, func(int) { fired.Store(true) }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return c.PendingCount() == 0 })

	if fired.Load() {
		t.Error("listener must not fire on timeout")
	}
	// Late delivery after timeout finds no listener.
	if c.Deliver(addr, 128) {
		t.Error("Deliver after timeout should return false")
	}
	// The address is free for a new registration.
	if err := c.Register(addr, func(int) {}); err != nil {
		t.Errorf("Register after timeout = %v", err)
	}
}

func TestCorrelatorDeliverOtherAddressLeavesListener(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Stop()

	addr := GroupAddress{254, 56, 4}
	other := GroupAddress{254, 56, 9}
	c.Register(addr, func(int) {})

	if c.Deliver(other, 50) {
		t.Error("Deliver(other) should return false")
	}
	if c.PendingCount() != 1 {
		t.Errorf("PendingCount() = %d, want 1", c.PendingCount())
	}
}

func TestCorrelatorStopClearsPending(t *testing.T) {
	c := NewCorrelator(time.Minute)

	var fired atomic.Bool
	c.Register(GroupAddress{254, 56, 1}, func(int) { fired.Store(true) })
	c.Register(GroupAddress{254, 56, 2}, func(int) { fired.Store(true) })

	c.Stop()

	if c.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after Stop, want 0", c.PendingCount())
	}
	if fired.Load() {
		t.Error("Stop must not invoke listeners")
	}
}
