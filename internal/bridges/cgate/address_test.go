package cgate

import (
	"errors"
	"testing"
)

func TestParseGroupAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    GroupAddress
		wantErr bool
	}{
		{"standard lighting group", "254/56/4", GroupAddress{254, 56, 4}, false},
		{"zero address", "0/0/0", GroupAddress{0, 0, 0}, false},
		{"maximum values", "255/255/255", GroupAddress{255, 255, 255}, false},
		{"too few parts", "254/56", GroupAddress{}, true},
		{"too many parts", "254/56/4/1", GroupAddress{}, true},
		{"network out of range", "256/56/4", GroupAddress{}, true},
		{"negative group", "254/56/-1", GroupAddress{}, true},
		{"non-numeric", "254/abc/4", GroupAddress{}, true},
		{"empty string", "", GroupAddress{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGroupAddress(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseGroupAddress(%q) expected error, got nil", tt.input)
				}
				if !errors.Is(err, ErrInvalidGroupAddress) {
					t.Errorf("error should wrap ErrInvalidGroupAddress, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGroupAddress(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseGroupAddress(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestGroupAddressString(t *testing.T) {
	addr := GroupAddress{Network: 254, Application: 56, Group: 4}
	if got := addr.String(); got != "254/56/4" {
		t.Errorf("String() = %q, want %q", got, "254/56/4")
	}
}

func TestGroupAddressPath(t *testing.T) {
	addr := GroupAddress{Network: 254, Application: 56, Group: 4}
	if got := addr.Path("HOME"); got != "//HOME/254/56/4" {
		t.Errorf("Path() = %q, want %q", got, "//HOME/254/56/4")
	}
}

func TestPercentFromRaw(t *testing.T) {
	tests := []struct {
		raw  int
		want int
	}{
		{0, 0},
		{255, 100},
		{128, 50},
		{26, 10},
		{191, 75},
		{1, 0},
		{3, 1},
		// Out-of-range input is clamped, not rejected.
		{-10, 0},
		{300, 100},
	}

	for _, tt := range tests {
		if got := PercentFromRaw(tt.raw); got != tt.want {
			t.Errorf("PercentFromRaw(%d) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestRawFromPercent(t *testing.T) {
	tests := []struct {
		percent int
		want    int
	}{
		{0, 0},
		{100, 255},
		{50, 128},
		{75, 191},
		{10, 26},
		{-5, 0},
		{150, 255},
	}

	for _, tt := range tests {
		if got := RawFromPercent(tt.percent); got != tt.want {
			t.Errorf("RawFromPercent(%d) = %d, want %d", tt.percent, got, tt.want)
		}
	}
}

// Converting any percentage to raw and back must return the same
// percentage: the raw scale is finer than the percent scale.
func TestLevelRoundTrip(t *testing.T) {
	for pct := 0; pct <= 100; pct++ {
		raw := RawFromPercent(pct)
		if raw < RawLevelMin || raw > RawLevelMax {
			t.Fatalf("RawFromPercent(%d) = %d out of range", pct, raw)
		}
		if back := PercentFromRaw(raw); back != pct {
			t.Errorf("round trip %d%% -> %d -> %d%%", pct, raw, back)
		}
	}
}

func TestClampRaw(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-1, 0},
		{0, 0},
		{128, 128},
		{255, 255},
		{256, 255},
	}
	for _, tt := range tests {
		if got := ClampRaw(tt.in); got != tt.want {
			t.Errorf("ClampRaw(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
