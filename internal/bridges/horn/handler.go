package horn

import (
	"bytes"

	"github.com/nerrad567/horn-node/internal/session"
	"github.com/nerrad567/horn-node/internal/signal"
)

// Payload literals accepted for targetValue commands and sent in echoes.
var (
	payloadTrue  = []byte("true")
	payloadFalse = []byte("false")
)

// Verdict is the outcome of Decide.
type Verdict int

const (
	// VerdictUnknown ignores a message without a recognised type tag.
	VerdictUnknown Verdict = iota
	// VerdictEcho ignores a currentValue status message.
	VerdictEcho
	// VerdictMalformed rejects a targetValue command whose payload is not a boolean literal.
	VerdictMalformed
	// VerdictActuate drives the actuator and publishes a status echo.
	VerdictActuate
)

func (v Verdict) String() string {
	switch v {
	case VerdictEcho:
		return "echo"
	case VerdictMalformed:
		return "malformed"
	case VerdictActuate:
		return "actuate"
	default:
		return "unknown"
	}
}

// Status is an outbound currentValue message.
type Status struct {
	Payload    []byte
	Attachment session.Attachment
}

// Decision is what the bridge should do with one inbound message.
// On and Status are set only when Verdict is VerdictActuate.
type Decision struct {
	Verdict Verdict
	On      bool
	Status  Status
}

// Actuate reports whether the decision drives the actuator.
func (d Decision) Actuate() bool {
	return d.Verdict == VerdictActuate
}

// Decide maps a classified message to a Decision.
//
// Payloads are compared byte for byte: "TRUE", " true" and "1" are malformed.
func Decide(t signal.Type, payload []byte) Decision {
	switch t {
	case signal.CurrentValue:
		return Decision{Verdict: VerdictEcho}
	case signal.TargetValue:
		switch {
		case bytes.Equal(payload, payloadTrue):
			return Decision{Verdict: VerdictActuate, On: true, Status: statusFor(true)}
		case bytes.Equal(payload, payloadFalse):
			return Decision{Verdict: VerdictActuate, On: false, Status: statusFor(false)}
		default:
			return Decision{Verdict: VerdictMalformed}
		}
	default:
		return Decision{Verdict: VerdictUnknown}
	}
}

// statusFor builds a fresh echo for state on.
func statusFor(on bool) Status {
	payload := payloadFalse
	if on {
		payload = payloadTrue
	}
	return Status{
		Payload: append([]byte(nil), payload...),
		Attachment: session.Attachment{
			signal.TypeKey: []byte(signal.CurrentValue.Tag()),
		},
	}
}
