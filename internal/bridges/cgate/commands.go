package cgate

import (
	"fmt"
	"strconv"
	"strings"
)

// RequestKind identifies the operation encoded in a cbus/write topic.
type RequestKind int

const (
	RequestSwitch RequestKind = iota
	RequestRamp
	RequestPosition
	RequestStop
	RequestGetAll
	RequestGetTree
	RequestAnnounce
)

// String returns the topic verb for the request kind.
func (k RequestKind) String() string {
	switch k {
	case RequestSwitch:
		return "switch"
	case RequestRamp:
		return "ramp"
	case RequestPosition:
		return "position"
	case RequestStop:
		return "stop"
	case RequestGetAll:
		return "getall"
	case RequestGetTree:
		return "gettree"
	case RequestAnnounce:
		return "announce"
	default:
		return "unknown"
	}
}

// WriteRequest is a parsed cbus/write topic.
//
// Addr is populated for group-level requests (switch, ramp, position,
// stop). Network and App carry the wildcard components for getall and
// gettree requests.
type WriteRequest struct {
	Kind    RequestKind
	Addr    GroupAddress
	Network string
	App     string
}

// writeTopicParts is the expected segment count after the write prefix.
const writeTopicParts = 4

// ParseWriteTopic parses an inbound MQTT topic below cbus/write/.
//
// Recognised shapes:
//
//	cbus/write/N/A/G/switch    cbus/write/N/A/G/ramp
//	cbus/write/N/A/G/position  cbus/write/N/A/G/stop
//	cbus/write/N/A//getall     cbus/write/N///gettree
//	cbus/write/bridge/announce
//
// Returns ErrInvalidTopic for anything else.
func ParseWriteTopic(topic string) (WriteRequest, error) {
	rest, ok := strings.CutPrefix(topic, "cbus/write/")
	if !ok {
		return WriteRequest{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	if rest == "bridge/announce" {
		return WriteRequest{Kind: RequestAnnounce}, nil
	}

	parts := strings.Split(rest, "/")
	if len(parts) != writeTopicParts {
		return WriteRequest{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	verb := strings.ToLower(parts[3])
	switch verb {
	case "getall":
		if !validDecimalByte(parts[0]) || !validDecimalByte(parts[1]) || parts[2] != "" {
			return WriteRequest{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
		}
		return WriteRequest{Kind: RequestGetAll, Network: parts[0], App: parts[1]}, nil

	case "gettree":
		if !validDecimalByte(parts[0]) || parts[1] != "" || parts[2] != "" {
			return WriteRequest{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
		}
		return WriteRequest{Kind: RequestGetTree, Network: parts[0]}, nil

	case "switch", "ramp", "position", "stop":
		addr, err := ParseGroupAddress(strings.Join(parts[:3], "/"))
		if err != nil {
			return WriteRequest{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
		}
		kind := map[string]RequestKind{
			"switch":   RequestSwitch,
			"ramp":     RequestRamp,
			"position": RequestPosition,
			"stop":     RequestStop,
		}[verb]
		return WriteRequest{Kind: kind, Addr: addr}, nil

	default:
		return WriteRequest{}, fmt.Errorf("%w: unknown verb in %q", ErrInvalidTopic, topic)
	}
}

// validDecimalByte reports whether s is a decimal integer 0-255.
func validDecimalByte(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 0 && n <= maxAddressPart
}

// RampCommand is the decoded form of a ramp topic payload.
//
// Exactly one of On, Off, Stop, Relative or the Percent field applies.
type RampCommand struct {
	On       bool
	Off      bool
	Stop     bool
	Relative int    // signed raw-level delta for INCREASE/DECREASE
	Percent  int    // target percentage for absolute ramps
	Duration string // optional ramp time, e.g. "4s"
}

// ParseRampPayload decodes a ramp payload.
//
// Accepted forms (case-insensitive for the keywords):
//
//	ON / OFF             — full on or off
//	STOP                 — halt a ramp in progress (covers send this
//	                       on their command topic)
//	INCREASE / DECREASE  — relative step of about 10%
//	<pct>                — absolute percentage 0-100
//	<pct>,<time>         — absolute percentage with a ramp duration
func ParseRampPayload(payload string) (RampCommand, error) {
	s := strings.TrimSpace(payload)
	switch strings.ToUpper(s) {
	case "ON":
		return RampCommand{On: true}, nil
	case "OFF":
		return RampCommand{Off: true}, nil
	case "STOP":
		return RampCommand{Stop: true}, nil
	case "INCREASE":
		return RampCommand{Relative: relativeStep}, nil
	case "DECREASE":
		return RampCommand{Relative: -relativeStep}, nil
	}

	pctStr, duration, hasDuration := strings.Cut(s, ",")
	pct, err := strconv.Atoi(strings.TrimSpace(pctStr))
	if err != nil || pct < 0 || pct > 100 {
		return RampCommand{}, fmt.Errorf("%w: ramp payload %q", ErrInvalidPayload, payload)
	}

	cmd := RampCommand{Percent: pct}
	if hasDuration {
		duration = strings.TrimSpace(duration)
		if !validRampDuration(duration) {
			return RampCommand{}, fmt.Errorf("%w: ramp duration %q", ErrInvalidPayload, duration)
		}
		cmd.Duration = duration
	}
	return cmd, nil
}

// validRampDuration accepts the duration forms C-Gate understands:
// plain seconds ("4") or a value with an s/m/h unit suffix ("4s", "2m").
func validRampDuration(s string) bool {
	if s == "" {
		return false
	}
	digits := s
	switch s[len(s)-1] {
	case 's', 'm', 'h':
		digits = s[:len(s)-1]
	}
	n, err := strconv.Atoi(digits)
	return err == nil && n >= 0
}

// ParseSwitchPayload decodes a switch payload, accepting ON and OFF
// case-insensitively.
func ParseSwitchPayload(payload string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(payload)) {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	default:
		return false, fmt.Errorf("%w: switch payload %q", ErrInvalidPayload, payload)
	}
}

// ParsePositionPayload decodes a cover position payload, an integer
// percentage 0-100.
func ParsePositionPayload(payload string) (int, error) {
	pct, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil || pct < 0 || pct > 100 {
		return 0, fmt.Errorf("%w: position payload %q", ErrInvalidPayload, payload)
	}
	return pct, nil
}

// Command encoders. Each returns one newline-free C-Gate command line.

// CommandOn encodes a full-on command for a group.
func CommandOn(project string, addr GroupAddress) string {
	return "ON " + addr.Path(project)
}

// CommandOff encodes a full-off command for a group.
func CommandOff(project string, addr GroupAddress) string {
	return "OFF " + addr.Path(project)
}

// CommandRamp encodes an absolute ramp to a raw level, with an optional
// duration.
func CommandRamp(project string, addr GroupAddress, raw int, duration string) string {
	cmd := fmt.Sprintf("RAMP %s %d", addr.Path(project), ClampRaw(raw))
	if duration != "" {
		cmd += " " + duration
	}
	return cmd
}

// CommandStop encodes a TERMINATERAMP, halting any ramp in progress.
func CommandStop(project string, addr GroupAddress) string {
	return "TERMINATERAMP " + addr.Path(project)
}

// CommandGetLevel encodes a level query for a single group. The reply
// arrives as a 300 object-status line.
func CommandGetLevel(project string, addr GroupAddress) string {
	return "GET " + addr.Path(project) + " level"
}

// CommandGetAll encodes a wildcard level query for every group on an
// application. Each group answers with its own 300 line.
func CommandGetAll(project, network, app string) string {
	return fmt.Sprintf("GET //%s/%s/%s/* level", project, network, app)
}

// CommandTree encodes a TREEXML request for a network. The reply is a
// multi-line 343 response.
func CommandTree(network string) string {
	return "TREEXML " + network
}
