// Package link brings up network connectivity before the node touches the bus.
//
// A Manager drives a Station through the bring-up state machine:
//
//	Disconnected --start--> Connecting --address--> Connected
//	                          |    ^
//	                 disconnect    | retry (retries < MaxRetry)
//	                          v    |
//	                        Failed (retries == MaxRetry, policy GiveUp)
//
// Establish subscribes to station events for the duration of the call and
// returns one of ResultConnected, ResultTimedOut or ResultFailed. Under
// PolicyKeepRetrying the cap is reported but reconnects continue until the
// context ends.
//
// Stations:
//   - NetifStation polls a host interface for an IPv4 address, optionally
//     after starting a supplicant daemon.
//   - ScriptedStation replays scripted connect outcomes; NewPresetStation is
//     the always-connected case for hosts with externally managed networking.
package link
