package cgate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// C-Gate response codes used by the bridge.
const (
	// CodeSuccess acknowledges a completed command.
	CodeSuccess = 200

	// CodeServiceReady is the banner C-Gate sends on connect.
	CodeServiceReady = 201

	// CodeObjectStatus carries object state, including "level=" reports
	// produced by GET commands and unsolicited status changes.
	CodeObjectStatus = 300

	// CodeTreeInfo carries TREEXML output, one line per response line.
	CodeTreeInfo = 343
)

// responseMinLen is code plus separator. Bare three-digit lines are
// also accepted.
const responseMinLen = 4

// Event represents one parsed line of C-Bus activity, either from the
// event stream or normalised from a 300 status response.
type Event struct {
	// DeviceType is the first token on the event line, e.g. "lighting".
	DeviceType string

	// Action is the lowercased verb: "on", "off", "ramp", "level".
	Action string

	// Addr is the group address the event applies to.
	Addr GroupAddress

	// Raw is the raw level 0-255. Only meaningful when HasLevel is true.
	Raw int

	// HasLevel reports whether the event carried a level value.
	HasLevel bool

	// Meta is trailing "#key=value" metadata, without the leading '#'.
	Meta string

	// Timestamp records when the line was parsed.
	Timestamp time.Time
}

// ParseEventLine parses a line from the C-Gate event port.
//
// Expected shape:
//
//	<deviceType> <action> <address> [level] [#meta]
//
// where address is either "net/app/group" or a full object path like
// "//PROJECT/net/app/group". Lines with other shapes (comments, session
// notices) return ErrInvalidEvent and should be skipped, not fatal.
//
// Examples:
//
//	lighting on 254/56/4  #sourceunit=8
//	lighting ramp //HOME/254/56/4 128
func ParseEventLine(line string) (Event, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Event{}, fmt.Errorf("%w: empty or comment line", ErrInvalidEvent)
	}

	var meta string
	if idx := strings.Index(line, "#"); idx >= 0 {
		meta = strings.TrimSpace(line[idx+1:])
		line = strings.TrimSpace(line[:idx])
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Event{}, fmt.Errorf("%w: expected at least 3 fields, got %d", ErrInvalidEvent, len(fields))
	}

	addr, err := parseEventAddress(fields[2])
	if err != nil {
		return Event{}, err
	}

	ev := Event{
		DeviceType: strings.ToLower(fields[0]),
		Action:     strings.ToLower(fields[1]),
		Addr:       addr,
		Meta:       meta,
		Timestamp:  time.Now(),
	}

	if len(fields) >= 4 {
		raw, err := strconv.Atoi(fields[3])
		if err != nil {
			return Event{}, fmt.Errorf("%w: level %q is not numeric", ErrInvalidEvent, fields[3])
		}
		ev.Raw = ClampRaw(raw)
		ev.HasLevel = true
	}

	return ev, nil
}

// parseEventAddress accepts both bare "net/app/group" addresses and full
// object paths ("//PROJECT/net/app/group") and returns the group address.
func parseEventAddress(s string) (GroupAddress, error) {
	s = strings.TrimSuffix(s, ":")
	if rest, ok := strings.CutPrefix(s, "//"); ok {
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			return GroupAddress{}, fmt.Errorf("%w: object path %q too short", ErrInvalidGroupAddress, s)
		}
		s = parts[1]
	}
	return ParseGroupAddress(s)
}

// Response represents one parsed line from a C-Gate command socket.
//
// Response lines start with a three-digit code followed by a separator:
// '-' means more lines of the same response follow, ' ' (or end of line)
// means this is the final line.
type Response struct {
	Code         int
	Continuation bool
	Body         string
}

// ParseResponseLine parses a command-socket response line.
//
// Returns ErrInvalidResponse for lines that do not start with a
// three-digit code.
func ParseResponseLine(line string) (Response, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 3 {
		return Response{}, fmt.Errorf("%w: line too short: %q", ErrInvalidResponse, line)
	}

	code, err := strconv.Atoi(line[:3])
	if err != nil {
		return Response{}, fmt.Errorf("%w: no response code in %q", ErrInvalidResponse, line)
	}

	resp := Response{Code: code}
	if len(line) >= responseMinLen {
		switch line[3] {
		case '-':
			resp.Continuation = true
		case ' ':
		default:
			return Response{}, fmt.Errorf("%w: bad separator %q in %q", ErrInvalidResponse, line[3], line)
		}
		resp.Body = strings.TrimSpace(line[responseMinLen:])
	}

	return resp, nil
}

// ParseStatusBody normalises the body of a 300 object-status response
// into an Event, so GET replies and unsolicited status changes flow
// through the same publishing path as event-stream lines.
//
// Expected body shape:
//
//	//PROJECT/254/56/4: level=250
//
// Bodies without a "level=" report (e.g. sessionID notices) return
// ErrInvalidResponse and should be skipped.
func ParseStatusBody(body string) (Event, error) {
	fields := strings.Fields(body)
	if len(fields) < 2 {
		return Event{}, fmt.Errorf("%w: status body %q too short", ErrInvalidResponse, body)
	}

	raw, found := 0, false
	for _, f := range fields[1:] {
		if val, ok := strings.CutPrefix(f, "level="); ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				return Event{}, fmt.Errorf("%w: level %q is not numeric", ErrInvalidResponse, val)
			}
			raw, found = ClampRaw(n), true
			break
		}
	}
	if !found {
		return Event{}, fmt.Errorf("%w: no level report in %q", ErrInvalidResponse, body)
	}

	addr, err := parseEventAddress(fields[0])
	if err != nil {
		return Event{}, err
	}

	return Event{
		DeviceType: "status",
		Action:     "level",
		Addr:       addr,
		Raw:        raw,
		HasLevel:   true,
		Timestamp:  time.Now(),
	}, nil
}

// treeCollector accumulates the lines of a multi-line 343 TREEXML
// response into a single XML document.
//
// C-Gate serialises responses per socket, so at most one tree is in
// flight on a given connection at a time.
type treeCollector struct {
	active bool
	lines  []string
}

// feed consumes one 343 response line. It returns the assembled XML and
// true once the terminal (non-continuation) line arrives.
func (tc *treeCollector) feed(resp Response) (string, bool) {
	tc.active = true
	if resp.Body != "" {
		tc.lines = append(tc.lines, resp.Body)
	}

	if resp.Continuation {
		return "", false
	}

	xml := strings.Join(tc.lines, "\n")
	tc.active = false
	tc.lines = nil
	return xml, true
}

// collecting reports whether a tree response is mid-flight.
func (tc *treeCollector) collecting() bool {
	return tc.active
}
