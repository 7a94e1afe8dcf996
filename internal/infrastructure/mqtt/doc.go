// Package mqtt provides MQTT 3.1.1 bus connectivity for the horn node.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//   - Attachment metadata carried in a CBOR envelope
//
// MQTT 3.1.1 has no per-message metadata, so every message published by
// this client is a CBOR map holding the payload and its attachment:
//
//	{"p": h'74727565', "a": {"type": h'63757272656e7456616c7565'}}
//
// Inbound messages that do not decode as an envelope are delivered as a raw
// payload with no attachment, which the classifier treats as unknown.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.Bus, "tcp://192.168.1.10:1883")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(cfg.Bus.Topic, 1,
//	    func(topic string, payload []byte, attachment map[string][]byte) error {
//	        return nil
//	    })
package mqtt
