package mqtt

import (
	"bytes"
	"testing"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		payload    []byte
		attachment map[string][]byte
	}{
		{name: "target value", payload: []byte("true"), attachment: map[string][]byte{"type": []byte("targetValue")}},
		{name: "no attachment", payload: []byte("false")},
		{name: "empty payload", payload: []byte{}, attachment: map[string][]byte{"type": []byte("currentValue")}},
		{name: "binary attachment", payload: []byte{0x00, 0xff}, attachment: map[string][]byte{"k": {0x01, 0x02}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEnvelope(tt.payload, tt.attachment)
			if err != nil {
				t.Fatalf("EncodeEnvelope() error = %v", err)
			}

			payload, attachment := DecodeEnvelope(data)
			if !bytes.Equal(payload, tt.payload) {
				t.Errorf("payload = %q, want %q", payload, tt.payload)
			}
			if len(attachment) != len(tt.attachment) {
				t.Fatalf("attachment has %d entries, want %d", len(attachment), len(tt.attachment))
			}
			for k, v := range tt.attachment {
				if !bytes.Equal(attachment[k], v) {
					t.Errorf("attachment[%q] = %q, want %q", k, attachment[k], v)
				}
			}
		})
	}
}

func TestEnvelope_NilPayloadEncodesEmpty(t *testing.T) {
	data, err := EncodeEnvelope(nil, nil)
	if err != nil {
		t.Fatalf("EncodeEnvelope() error = %v", err)
	}

	payload, attachment := DecodeEnvelope(data)
	if payload == nil || len(payload) != 0 {
		t.Errorf("payload = %#v, want empty non-nil slice", payload)
	}
	if attachment != nil {
		t.Errorf("attachment = %v, want nil", attachment)
	}
}

func TestDecodeEnvelope_RawPayloadPassesThrough(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "plain text", data: []byte("true")},
		{name: "json", data: []byte(`{"type":"targetValue"}`)},
		{name: "cbor map without payload key", data: []byte{0xa1, 0x61, 0x78, 0x01}}, // {"x": 1}
		{name: "empty", data: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, attachment := DecodeEnvelope(tt.data)
			if !bytes.Equal(payload, tt.data) {
				t.Errorf("payload = %q, want raw %q", payload, tt.data)
			}
			if attachment != nil {
				t.Errorf("attachment = %v, want nil", attachment)
			}
		})
	}
}

func TestEncodeEnvelope_Canonical(t *testing.T) {
	attachment := map[string][]byte{"type": []byte("targetValue"), "a": []byte("1"), "zz": []byte("2")}

	first, err := EncodeEnvelope([]byte("true"), attachment)
	if err != nil {
		t.Fatalf("EncodeEnvelope() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := EncodeEnvelope([]byte("true"), attachment)
		if err != nil {
			t.Fatalf("EncodeEnvelope() error = %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("EncodeEnvelope() is not deterministic")
		}
	}
}
