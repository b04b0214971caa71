package cgate

import (
	"sync"
	"testing"
)

type publishRecord struct {
	topic    string
	payload  string
	retained bool
}

// mockMQTT records publishes and subscriptions.
type mockMQTT struct {
	mu        sync.Mutex
	published []publishRecord
	subs      map[string]func(topic string, payload []byte)
}

func (m *mockMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishRecord{topic, string(payload), retained})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = make(map[string]func(string, []byte))
	}
	m.subs[topic] = handler
	return nil
}

func (m *mockMQTT) IsConnected() bool { return true }

func (m *mockMQTT) records() []publishRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishRecord, len(m.published))
	copy(out, m.published)
	return out
}

func (m *mockMQTT) find(topic string) (publishRecord, bool) {
	for _, rec := range m.records() {
		if rec.topic == topic {
			return rec, true
		}
	}
	return publishRecord{}, false
}

// newTestBridge builds a bridge without starting its network goroutines.
// The command queue is never started, so enqueued commands accumulate
// and can be inspected with drainQueue.
func newTestBridge(t *testing.T) (*Bridge, *mockMQTT) {
	t.Helper()
	m := &mockMQTT{}
	b, err := NewBridge(BridgeOptions{
		Project:     "HOME",
		CommandAddr: "127.0.0.1:1",
		EventAddr:   "127.0.0.1:1",
		PoolSize:    1,
		MQTT:        m,
		RetainReads: true,
	})
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	return b, m
}

func drainQueue(b *Bridge) []string {
	var cmds []string
	for {
		cmd, ok := b.queue.pop()
		if !ok {
			return cmds
		}
		cmds = append(cmds, cmd)
	}
}

func TestNewBridgeValidation(t *testing.T) {
	if _, err := NewBridge(BridgeOptions{}); err == nil {
		t.Error("NewBridge without MQTT client should fail")
	}
	if _, err := NewBridge(BridgeOptions{MQTT: &mockMQTT{}}); err == nil {
		t.Error("NewBridge without project should fail")
	}
	if _, err := NewBridge(BridgeOptions{MQTT: &mockMQTT{}, Project: "HOME"}); err == nil {
		t.Error("NewBridge without addresses should fail")
	}
}

func TestBridgeSwitchCommands(t *testing.T) {
	b, _ := newTestBridge(t)

	b.handleWriteMessage("cbus/write/254/56/4/switch", []byte("ON"))
	b.handleWriteMessage("cbus/write/254/56/4/switch", []byte("OFF"))
	b.handleWriteMessage("cbus/write/254/56/4/switch", []byte("BLINK"))

	got := drainQueue(b)
	want := []string{"ON //HOME/254/56/4", "OFF //HOME/254/56/4"}
	if len(got) != len(want) {
		t.Fatalf("queued %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("queued[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBridgeRampAndCoverCommands(t *testing.T) {
	b, _ := newTestBridge(t)

	tests := []struct {
		topic   string
		payload string
		want    string
	}{
		{"cbus/write/254/56/4/ramp", "75", "RAMP //HOME/254/56/4 191"},
		{"cbus/write/254/56/4/ramp", "50,4s", "RAMP //HOME/254/56/4 128 4s"},
		{"cbus/write/254/56/4/ramp", "ON", "ON //HOME/254/56/4"},
		{"cbus/write/254/56/4/ramp", "OFF", "OFF //HOME/254/56/4"},
		// Covers send STOP on their command topic, which is the ramp topic.
		{"cbus/write/254/56/4/ramp", "STOP", "TERMINATERAMP //HOME/254/56/4"},
		{"cbus/write/254/203/7/position", "30", "RAMP //HOME/254/203/7 77"},
		{"cbus/write/254/56/4/stop", "", "TERMINATERAMP //HOME/254/56/4"},
		{"cbus/write/254/56//getall", "", "GET //HOME/254/56/* level"},
	}

	for _, tt := range tests {
		b.handleWriteMessage(tt.topic, []byte(tt.payload))
		got := drainQueue(b)
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("%s %q queued %v, want [%q]", tt.topic, tt.payload, got, tt.want)
		}
	}
}

func TestBridgeRelativeRamp(t *testing.T) {
	b, m := newTestBridge(t)

	b.handleWriteMessage("cbus/write/254/56/4/ramp", []byte("INCREASE"))

	got := drainQueue(b)
	if len(got) != 1 || got[0] != "GET //HOME/254/56/4 level" {
		t.Fatalf("queued %v, want GET level query", got)
	}
	if b.correlator.PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d, want 1", b.correlator.PendingCount())
	}

	// A duplicate while the first is in flight is dropped.
	b.handleWriteMessage("cbus/write/254/56/4/ramp", []byte("INCREASE"))
	if extra := drainQueue(b); len(extra) != 0 {
		t.Errorf("duplicate relative ramp queued %v, want nothing", extra)
	}

	// The GET reply arrives on a command socket.
	b.handleResponseLine(0, "300 //HOME/254/56/4: level=100")

	got = drainQueue(b)
	if len(got) != 1 || got[0] != "RAMP //HOME/254/56/4 126" {
		t.Errorf("queued %v, want stepped ramp to 126", got)
	}
	if b.correlator.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after reply, want 0", b.correlator.PendingCount())
	}

	// The correlated reply is consumed, not republished as state.
	if len(m.records()) != 0 {
		t.Errorf("correlated level reply was published: %v", m.records())
	}

	// DECREASE clamps at zero.
	b.handleWriteMessage("cbus/write/254/56/4/ramp", []byte("DECREASE"))
	drainQueue(b)
	b.handleResponseLine(0, "300 //HOME/254/56/4: level=10")
	got = drainQueue(b)
	if len(got) != 1 || got[0] != "RAMP //HOME/254/56/4 0" {
		t.Errorf("queued %v, want ramp clamped to 0", got)
	}
}

func TestBridgePublishesEvents(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantState string
		wantLevel string
	}{
		{"on event", "lighting on 254/56/4  #sourceunit=8", "ON", "100"},
		{"off event", "lighting off 254/56/4", "OFF", "0"},
		{"ramp event", "lighting ramp 254/56/4 128", "ON", "50"},
		{"ramp to zero", "lighting ramp 254/56/4 0", "OFF", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, m := newTestBridge(t)
			b.handleEventLine(tt.line)

			state, ok := m.find("cbus/read/254/56/4/state")
			if !ok {
				t.Fatal("state topic not published")
			}
			if state.payload != tt.wantState || !state.retained {
				t.Errorf("state = %q retained=%v, want %q retained", state.payload, state.retained, tt.wantState)
			}

			level, ok := m.find("cbus/read/254/56/4/level")
			if !ok {
				t.Fatal("level topic not published")
			}
			if level.payload != tt.wantLevel {
				t.Errorf("level = %q, want %q", level.payload, tt.wantLevel)
			}
		})
	}
}

func TestBridgeIgnoresUnparseableLines(t *testing.T) {
	b, m := newTestBridge(t)

	b.handleEventLine("# comment from the gateway")
	b.handleEventLine("garbage")
	b.handleResponseLine(0, "not a response")
	b.handleResponseLine(0, "300 sessionID=abc123")

	if len(m.records()) != 0 {
		t.Errorf("published %v for unparseable input", m.records())
	}
	if got := drainQueue(b); len(got) != 0 {
		t.Errorf("queued %v for unparseable input", got)
	}
}

func TestBridgeStatusResponsePublishes(t *testing.T) {
	b, m := newTestBridge(t)

	// No pending relative ramp: a wildcard GET reply publishes state.
	b.handleResponseLine(1, "300 //HOME/254/56/9: level=255")

	state, ok := m.find("cbus/read/254/56/9/state")
	if !ok || state.payload != "ON" {
		t.Errorf("state = %+v, want ON published", state)
	}
	level, ok := m.find("cbus/read/254/56/9/level")
	if !ok || level.payload != "100" {
		t.Errorf("level = %+v, want 100 published", level)
	}
}

func TestBridgeTreeCollection(t *testing.T) {
	b, _ := newTestBridge(t)

	var mu sync.Mutex
	var gotNetwork, gotXML string
	b.SetTreeHandler(func(network, xmlDoc string) {
		mu.Lock()
		gotNetwork, gotXML = network, xmlDoc
		mu.Unlock()
	})

	b.RequestTree("254")
	if got := drainQueue(b); len(got) != 1 || got[0] != "TREEXML 254" {
		t.Fatalf("queued %v, want TREEXML 254", got)
	}

	b.handleResponseLine(0, "343-<Network>")
	b.handleResponseLine(0, "343-<Address>254</Address>")
	b.handleResponseLine(0, "343 </Network>")

	mu.Lock()
	defer mu.Unlock()
	if gotNetwork != "254" {
		t.Errorf("network = %q, want 254", gotNetwork)
	}
	if gotXML != "<Network>\n<Address>254</Address>\n</Network>" {
		t.Errorf("xml = %q", gotXML)
	}
}

func TestBridgeAnnounceHandler(t *testing.T) {
	b, _ := newTestBridge(t)

	called := false
	b.SetAnnounceHandler(func() { called = true })

	b.handleWriteMessage("cbus/write/bridge/announce", nil)
	if !called {
		t.Error("announce handler not invoked")
	}

	// No handler installed must not panic.
	b2, _ := newTestBridge(t)
	b2.handleWriteMessage("cbus/write/bridge/announce", nil)
}

// telemetryRecorder captures WriteLevelEvent calls.
type telemetryRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *telemetryRecorder) WriteLevelEvent(network, app, group, action string, raw, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, network+"/"+app+"/"+group+" "+action)
}

func TestBridgeTelemetry(t *testing.T) {
	m := &mockMQTT{}
	rec := &telemetryRecorder{}
	b, err := NewBridge(BridgeOptions{
		Project:     "HOME",
		CommandAddr: "127.0.0.1:1",
		EventAddr:   "127.0.0.1:1",
		MQTT:        m,
		Telemetry:   rec,
	})
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}

	b.handleEventLine("lighting ramp 254/56/4 128")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 1 || rec.events[0] != "254/56/4 ramp" {
		t.Errorf("telemetry events = %v", rec.events)
	}
}

func TestBridgeMetricsSnapshot(t *testing.T) {
	b, _ := newTestBridge(t)

	b.enqueue("ON //HOME/254/56/1")
	b.correlator.Register(GroupAddress{254, 56, 2}, func(int) {})

	m := b.GetMetrics()
	if m.QueueDepth != 1 {
		t.Errorf("QueueDepth = %d, want 1", m.QueueDepth)
	}
	if m.PendingLevels != 1 {
		t.Errorf("PendingLevels = %d, want 1", m.PendingLevels)
	}
	if m.HealthyConnections != 0 || m.EventConnected {
		t.Error("unstarted bridge should report no connections")
	}

	// Stop with nothing started must not hang or panic.
	b.Stop()
}
