// Package mqttv5 provides MQTT 5 bus connectivity for the horn node.
//
// It wraps the autopaho connection manager, which owns reconnection, and a
// standard paho router for topic dispatch. Attachment entries travel as MQTT
// user properties, so payloads stay raw on the wire and remain readable by
// any MQTT 5 tool.
//
// Handlers are dispatched on their own goroutines. The paho router runs on
// the client's receive loop, and a handler that publishes at QoS 1 would
// otherwise wait for an acknowledgement that loop can never read.
package mqttv5
