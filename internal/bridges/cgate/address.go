package cgate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GroupAddress represents a C-Bus group address in network/application/group
// form.
//
// All three components are decimal and fit in a byte:
//   - Network:     0-255
//   - Application: 0-255 (56 is the standard lighting application)
//   - Group:       0-255
type GroupAddress struct {
	Network     uint8
	Application uint8
	Group       uint8
}

// Address component limits and level constants.
const (
	maxAddressPart = 255

	// addressPartCount is the number of components in a group address.
	addressPartCount = 3

	// AppLighting is the standard C-Bus lighting application.
	AppLighting = 56

	// Raw level bounds on the wire.
	RawLevelMin = 0
	RawLevelMax = 255

	// relativeStep is the raw-level delta applied by INCREASE/DECREASE
	// ramp payloads, roughly 10% of full scale.
	relativeStep = 26
)

// ParseGroupAddress parses a "network/application/group" address string.
//
// Parameters:
//   - s: Address string, e.g. "254/56/4"
//
// Returns:
//   - GroupAddress: Parsed address
//   - error: ErrInvalidGroupAddress if parsing fails
func ParseGroupAddress(s string) (GroupAddress, error) {
	parts := strings.Split(s, "/")
	if len(parts) != addressPartCount {
		return GroupAddress{}, fmt.Errorf("%w: expected network/application/group, got %q", ErrInvalidGroupAddress, s)
	}

	network, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return GroupAddress{}, fmt.Errorf("%w: network must be 0-%d, got %q", ErrInvalidGroupAddress, maxAddressPart, parts[0])
	}

	app, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return GroupAddress{}, fmt.Errorf("%w: application must be 0-%d, got %q", ErrInvalidGroupAddress, maxAddressPart, parts[1])
	}

	group, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil {
		return GroupAddress{}, fmt.Errorf("%w: group must be 0-%d, got %q", ErrInvalidGroupAddress, maxAddressPart, parts[2])
	}

	return GroupAddress{
		Network:     uint8(network),
		Application: uint8(app),
		Group:       uint8(group),
	}, nil
}

// String returns the address in "network/application/group" form.
//
// Example: "254/56/4"
func (ga GroupAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", ga.Network, ga.Application, ga.Group)
}

// Path returns the full C-Gate object path for this address within a
// project.
//
// Example: "//HOME/254/56/4"
func (ga GroupAddress) Path(project string) string {
	return fmt.Sprintf("//%s/%d/%d/%d", project, ga.Network, ga.Application, ga.Group)
}

// PercentFromRaw converts a raw C-Bus level (0-255) to a percentage
// (0-100), rounding to nearest.
func PercentFromRaw(raw int) int {
	raw = ClampRaw(raw)
	return int(math.Round(float64(raw) * 100 / float64(RawLevelMax)))
}

// RawFromPercent converts a percentage (0-100) to a raw C-Bus level
// (0-255), rounding to nearest. Out-of-range input is clamped.
func RawFromPercent(percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return int(math.Round(float64(percent) * float64(RawLevelMax) / 100))
}

// ClampRaw bounds a raw level into the valid 0-255 wire range.
func ClampRaw(raw int) int {
	if raw < RawLevelMin {
		return RawLevelMin
	}
	if raw > RawLevelMax {
		return RawLevelMax
	}
	return raw
}
