package client

import "errors"

var (
	// ErrUnavailable marks transient transport failures: timeouts, refused
	// connections, 5xx responses. A queued mutation that hits this stays in
	// the queue for the next run.
	ErrUnavailable = errors.New("server unavailable")

	// ErrRejected marks permanent refusals (4xx other than the idempotency
	// cases). Retrying the same mutation cannot succeed.
	ErrRejected = errors.New("rejected by server")
)
