package cgate

import "errors"

// Domain errors for the C-Gate bridge package.
var (
	// ErrNotConnected is returned when an operation requires a connection
	// but no C-Gate socket is available.
	ErrNotConnected = errors.New("cgate: not connected to c-gate")

	// ErrConnectionFailed is returned when a connection to C-Gate fails.
	ErrConnectionFailed = errors.New("cgate: connection to c-gate failed")

	// ErrNoHealthyConnections is returned when the command pool has no
	// healthy sockets to dispatch on.
	ErrNoHealthyConnections = errors.New("cgate: no healthy connections")

	// ErrInvalidGroupAddress is returned when a group address string
	// cannot be parsed.
	ErrInvalidGroupAddress = errors.New("cgate: invalid group address")

	// ErrInvalidEvent is returned when an event-stream line is malformed.
	ErrInvalidEvent = errors.New("cgate: invalid event line")

	// ErrInvalidResponse is returned when a command-socket response line
	// is malformed.
	ErrInvalidResponse = errors.New("cgate: invalid response line")

	// ErrInvalidPayload is returned when an MQTT command payload cannot
	// be translated to a C-Gate command.
	ErrInvalidPayload = errors.New("cgate: invalid command payload")

	// ErrInvalidTopic is returned when a write topic does not match any
	// known command shape.
	ErrInvalidTopic = errors.New("cgate: invalid write topic")

	// ErrPendingExists is returned when a relative level operation is
	// already in flight for the same group address.
	ErrPendingExists = errors.New("cgate: level request already pending for address")

	// ErrQueueStopped is returned when a command is enqueued after the
	// throttled queue has shut down.
	ErrQueueStopped = errors.New("cgate: command queue stopped")

	// ErrPoolStopped is returned when the connection pool is used after
	// shutdown.
	ErrPoolStopped = errors.New("cgate: connection pool stopped")
)
