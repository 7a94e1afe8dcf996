package link

import "fmt"

// ConnectionState is the bring-up state owned by a Manager.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of Establish.
type Result int

const (
	ResultConnected Result = iota
	ResultTimedOut
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultConnected:
		return "connected"
	case ResultTimedOut:
		return "timed_out"
	case ResultFailed:
		return "failed"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// RetryPolicy decides what happens when the retry cap is reached.
type RetryPolicy int

const (
	// PolicyGiveUp moves to StateFailed and stops issuing connect requests.
	PolicyGiveUp RetryPolicy = iota
	// PolicyKeepRetrying logs the exhausted budget and keeps reconnecting.
	PolicyKeepRetrying
)

// ParseRetryPolicy parses "give_up" or "keep_retrying".
func ParseRetryPolicy(s string) (RetryPolicy, error) {
	switch s {
	case "give_up", "":
		return PolicyGiveUp, nil
	case "keep_retrying":
		return PolicyKeepRetrying, nil
	default:
		return PolicyGiveUp, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

func (p RetryPolicy) String() string {
	if p == PolicyKeepRetrying {
		return "keep_retrying"
	}
	return "give_up"
}
