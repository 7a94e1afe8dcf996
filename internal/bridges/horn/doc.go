// Package horn bridges the messaging session to the horn actuator.
//
// # Architecture
//
//	┌─────────────┐  targetValue   ┌──────────────┐   Set(on)   ┌──────────┐
//	│  Messaging  │───────────────►│  Horn Bridge │────────────►│ Actuator │
//	│   Session   │◄───────────────│  (this pkg)  │             │  Driver  │
//	└─────────────┘  currentValue  └──────────────┘             └──────────┘
//
// Both directions share one topic. Inbound messages are classified by their
// attachment "type" tag; only targetValue commands with a payload of exactly
// "true" or "false" drive the actuator. Each accepted command produces one
// currentValue status echo, which the node itself then receives and ignores.
//
// # Decision and effect
//
// Decide is a pure function from (signal type, payload) to a Decision. The
// Bridge applies a Decision: it drives the actuator, records the new state
// and publishes the status echo while holding one lock, so overlapping
// deliveries never interleave an actuation with another's echo.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package horn
