package mqtt

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// envelope is the wire form of a message with attachment.
type envelope struct {
	Payload    []byte            `cbor:"p"`
	Attachment map[string][]byte `cbor:"a,omitempty"`
}

// inboundEnvelope tells a missing payload key apart from an empty payload.
type inboundEnvelope struct {
	Payload    *[]byte           `cbor:"p"`
	Attachment map[string][]byte `cbor:"a"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("mqtt: building cbor encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		MaxMapPairs: 64,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("mqtt: building cbor decoder: %v", err))
	}
}

// EncodeEnvelope wraps payload and attachment for the wire.
func EncodeEnvelope(payload []byte, attachment map[string][]byte) ([]byte, error) {
	if payload == nil {
		payload = []byte{}
	}
	data, err := encMode.Marshal(envelope{Payload: payload, Attachment: attachment})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnvelope, err)
	}
	return data, nil
}

// DecodeEnvelope unwraps a wire message. Data that is not an envelope is
// returned unchanged as the payload with a nil attachment.
func DecodeEnvelope(data []byte) (payload []byte, attachment map[string][]byte) {
	var env inboundEnvelope
	if err := decMode.Unmarshal(data, &env); err != nil || env.Payload == nil {
		return data, nil
	}
	if *env.Payload == nil {
		return []byte{}, env.Attachment
	}
	return *env.Payload, env.Attachment
}
