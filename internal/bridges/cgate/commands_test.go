package cgate

import (
	"errors"
	"testing"
)

func TestParseWriteTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		want    WriteRequest
		wantErr bool
	}{
		{
			name:  "switch",
			topic: "cbus/write/254/56/4/switch",
			want:  WriteRequest{Kind: RequestSwitch, Addr: GroupAddress{254, 56, 4}},
		},
		{
			name:  "ramp",
			topic: "cbus/write/254/56/4/ramp",
			want:  WriteRequest{Kind: RequestRamp, Addr: GroupAddress{254, 56, 4}},
		},
		{
			name:  "position",
			topic: "cbus/write/254/203/7/position",
			want:  WriteRequest{Kind: RequestPosition, Addr: GroupAddress{254, 203, 7}},
		},
		{
			name:  "stop",
			topic: "cbus/write/254/56/4/stop",
			want:  WriteRequest{Kind: RequestStop, Addr: GroupAddress{254, 56, 4}},
		},
		{
			name:  "getall",
			topic: "cbus/write/254/56//getall",
			want:  WriteRequest{Kind: RequestGetAll, Network: "254", App: "56"},
		},
		{
			name:  "gettree",
			topic: "cbus/write/254///gettree",
			want:  WriteRequest{Kind: RequestGetTree, Network: "254"},
		},
		{
			name:  "announce",
			topic: "cbus/write/bridge/announce",
			want:  WriteRequest{Kind: RequestAnnounce},
		},
		{name: "wrong prefix", topic: "cbus/read/254/56/4/state", wantErr: true},
		{name: "unknown verb", topic: "cbus/write/254/56/4/toggle", wantErr: true},
		{name: "getall with group", topic: "cbus/write/254/56/4/getall", wantErr: true},
		{name: "gettree with app", topic: "cbus/write/254/56//gettree", wantErr: true},
		{name: "bad network", topic: "cbus/write/999/56/4/switch", wantErr: true},
		{name: "missing segments", topic: "cbus/write/254/switch", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWriteTopic(tt.topic)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseWriteTopic(%q) expected error, got %+v", tt.topic, got)
				}
				if !errors.Is(err, ErrInvalidTopic) {
					t.Errorf("error should wrap ErrInvalidTopic, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWriteTopic(%q) unexpected error: %v", tt.topic, err)
			}
			if got != tt.want {
				t.Errorf("ParseWriteTopic(%q) = %+v, want %+v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestParseRampPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    RampCommand
		wantErr bool
	}{
		{"on", "ON", RampCommand{On: true}, false},
		{"off lowercase", "off", RampCommand{Off: true}, false},
		{"stop", "STOP", RampCommand{Stop: true}, false},
		{"stop lowercase", " stop ", RampCommand{Stop: true}, false},
		{"increase", "INCREASE", RampCommand{Relative: 26}, false},
		{"decrease", "decrease", RampCommand{Relative: -26}, false},
		{"absolute percent", "75", RampCommand{Percent: 75}, false},
		{"zero percent", "0", RampCommand{Percent: 0}, false},
		{"percent with duration", "50,4s", RampCommand{Percent: 50, Duration: "4s"}, false},
		{"percent with plain seconds", "50,12", RampCommand{Percent: 50, Duration: "12"}, false},
		{"percent with minutes", "100, 2m", RampCommand{Percent: 100, Duration: "2m"}, false},
		{"over 100", "101", RampCommand{}, true},
		{"negative", "-5", RampCommand{}, true},
		{"garbage", "bright", RampCommand{}, true},
		{"bad duration", "50,fast", RampCommand{}, true},
		{"empty", "", RampCommand{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRampPayload(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRampPayload(%q) expected error, got %+v", tt.payload, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRampPayload(%q) unexpected error: %v", tt.payload, err)
			}
			if got != tt.want {
				t.Errorf("ParseRampPayload(%q) = %+v, want %+v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestParseSwitchPayload(t *testing.T) {
	if on, err := ParseSwitchPayload(" on "); err != nil || !on {
		t.Errorf("ParseSwitchPayload(\" on \") = %v, %v", on, err)
	}
	if on, err := ParseSwitchPayload("OFF"); err != nil || on {
		t.Errorf("ParseSwitchPayload(\"OFF\") = %v, %v", on, err)
	}
	if _, err := ParseSwitchPayload("TOGGLE"); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestParsePositionPayload(t *testing.T) {
	if pct, err := ParsePositionPayload("42"); err != nil || pct != 42 {
		t.Errorf("ParsePositionPayload(\"42\") = %d, %v", pct, err)
	}
	for _, bad := range []string{"-1", "101", "open", ""} {
		if _, err := ParsePositionPayload(bad); err == nil {
			t.Errorf("ParsePositionPayload(%q) expected error", bad)
		}
	}
}

func TestCommandEncoding(t *testing.T) {
	addr := GroupAddress{Network: 254, Application: 56, Group: 4}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"on", CommandOn("HOME", addr), "ON //HOME/254/56/4"},
		{"off", CommandOff("HOME", addr), "OFF //HOME/254/56/4"},
		{"ramp 75 percent", CommandRamp("HOME", addr, RawFromPercent(75), ""), "RAMP //HOME/254/56/4 191"},
		{"ramp with duration", CommandRamp("HOME", addr, 128, "4s"), "RAMP //HOME/254/56/4 128 4s"},
		{"ramp clamps raw", CommandRamp("HOME", addr, 300, ""), "RAMP //HOME/254/56/4 255"},
		{"stop", CommandStop("HOME", addr), "TERMINATERAMP //HOME/254/56/4"},
		{"get level", CommandGetLevel("HOME", addr), "GET //HOME/254/56/4 level"},
		{"get all", CommandGetAll("HOME", "254", "56"), "GET //HOME/254/56/* level"},
		{"tree", CommandTree("254"), "TREEXML 254"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
