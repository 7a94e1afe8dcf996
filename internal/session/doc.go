// Package session defines the messaging session the horn node runs on and
// the transports that implement it.
//
// A Session is opened once link bring-up has succeeded. The node declares a
// publisher and a subscriber on one topic and exchanges messages that carry
// an optional attachment of out-of-band key/value metadata.
//
// Transports:
//   - mqtt: MQTT 3.1.1 via paho, attachments in a CBOR envelope
//   - mqttv5: MQTT 5 via autopaho, attachments as user properties
//   - loopback: in-process bus for tests and simulation
//
// The connect endpoint uses the protocol/host:port form, for example
// "tcp/192.168.1.10:7447". BuildConfig drops endpoints that do not match
// that form, after which the transport's configured default broker is used.
package session
