// Package signal classifies inbound bus messages by their attachment tag.
//
// Classification looks only at the attachment, never the payload, so command
// and status messages can share one topic.
package signal

// Type is the semantic type of an inbound message.
type Type int

const (
	// Unknown covers a missing attachment, a missing tag, or any unrecognised value.
	Unknown Type = iota
	// CurrentValue is a status echo reporting the actuator's actual state.
	CurrentValue
	// TargetValue is a command asking the actuator to reach a state.
	TargetValue
)

// TypeKey is the attachment key that carries the signal type tag.
const TypeKey = "type"

// Wire tags for the known types.
const (
	TagCurrentValue = "currentValue"
	TagTargetValue  = "targetValue"
)

// scratchCapacity is the largest tag value Classify will copy.
const scratchCapacity = 50

// Classify returns the signal type carried in attachment.
//
// The "type" value must match a tag exactly. Values longer than the scratch
// capacity are reported as Unknown without being copied.
func Classify(attachment map[string][]byte) Type {
	raw, ok := attachment[TypeKey]
	if !ok {
		return Unknown
	}
	if len(raw) > scratchCapacity {
		return Unknown
	}

	var scratch [scratchCapacity]byte
	n := copy(scratch[:], raw)

	switch string(scratch[:n]) {
	case TagCurrentValue:
		return CurrentValue
	case TagTargetValue:
		return TargetValue
	default:
		return Unknown
	}
}

// Tag returns the wire tag for t, or "" for Unknown.
func (t Type) Tag() string {
	switch t {
	case CurrentValue:
		return TagCurrentValue
	case TargetValue:
		return TagTargetValue
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case CurrentValue:
		return "current_value"
	case TargetValue:
		return "target_value"
	default:
		return "unknown"
	}
}
