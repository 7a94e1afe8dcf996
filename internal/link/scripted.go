package link

import (
	"context"
	"sync"
)

// ScriptedStation answers each connect request with the next scripted event.
// Once the script is exhausted the last event repeats. An empty script never
// answers.
type ScriptedStation struct {
	eventHub

	mu       sync.Mutex
	script   []Event
	connects int
	startErr error
}

// NewScriptedStation returns a station that replays outcomes in order.
func NewScriptedStation(outcomes ...Event) *ScriptedStation {
	return &ScriptedStation{script: outcomes}
}

// NewPresetStation returns a station for hosts whose network is already up:
// the first connect request reports address.
func NewPresetStation(address string) *ScriptedStation {
	return NewScriptedStation(GotAddress(address))
}

// Disconnect is a scripted disconnect outcome.
func Disconnect(reason string) Event {
	return Event{Kind: EventDisconnected, Reason: reason}
}

// GotAddress is a scripted address acquisition outcome.
func GotAddress(address string) Event {
	return Event{Kind: EventGotAddress, Address: address}
}

// FailStart makes Start return err.
func (s *ScriptedStation) FailStart(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startErr = err
}

func (s *ScriptedStation) Start(context.Context) error {
	s.mu.Lock()
	err := s.startErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.emit(Event{Kind: EventStationStart})
	return nil
}

func (s *ScriptedStation) Connect(context.Context) error {
	s.mu.Lock()
	idx := s.connects
	s.connects++
	var (
		ev Event
		ok bool
	)
	switch {
	case idx < len(s.script):
		ev, ok = s.script[idx], true
	case len(s.script) > 0:
		ev, ok = s.script[len(s.script)-1], true
	}
	s.mu.Unlock()

	if ok {
		s.emit(ev)
	}
	return nil
}

// Connects returns the number of connect requests received.
func (s *ScriptedStation) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}
