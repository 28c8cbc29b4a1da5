package uisync

import (
	"encoding/json"
	"fmt"

	"github.com/golang/glog"
)

// decides which older queued events the new event supersedes
type CoalesceFunction func(previous *OutgoingEvent) bool

// an event sent from the client to its server-side adapter.
// immutable once enqueued except for removal via coalescing.
type OutgoingEvent struct {
	Target     string
	Type       string
	Properties map[string]any

	Coalesce CoalesceFunction
	// split the outgoing queue at this event on flush,
	// so that it starts a new request
	NewRequest bool
	// nil means true
	ShowBusyIndicator *bool
}

func NewOutgoingEvent(target string, eventType string, properties map[string]any) *OutgoingEvent {
	return &OutgoingEvent{
		Target:     target,
		Type:       eventType,
		Properties: properties,
	}
}

// coalesce predicate matching an older event with the same target and type
func CoalesceSameEvent(target string, eventType string) CoalesceFunction {
	return func(previous *OutgoingEvent) bool {
		return previous.Target == target && previous.Type == eventType
	}
}

func (self *OutgoingEvent) showBusyIndicator() bool {
	if self.ShowBusyIndicator == nil {
		return true
	}
	return *self.ShowBusyIndicator
}

func (self *OutgoingEvent) String() string {
	return fmt.Sprintf("%s->%s", self.Type, self.Target)
}

// properties are inlined next to target and type on the wire
func (self *OutgoingEvent) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for name, value := range self.Properties {
		out[name] = value
	}
	out["target"] = self.Target
	out["type"] = self.Type
	return json.Marshal(out)
}

// the outgoing event queue with directional coalescing.
// owned by the session and mutated only on the session loop.
type eventQueue struct {
	events []*OutgoingEvent
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: []*OutgoingEvent{},
	}
}

// appends the event after removing all previously queued events
// for which the new event's coalesce predicate returns true
func (self *eventQueue) enqueue(event *OutgoingEvent) {
	if event.Coalesce != nil {
		nextEvents := []*OutgoingEvent{}
		for _, previous := range self.events {
			if event.Coalesce(previous) {
				glog.V(2).Infof("[eq]coalesce %s\n", previous)
				continue
			}
			nextEvents = append(nextEvents, previous)
		}
		self.events = nextEvents
	}
	self.events = append(self.events, event)
}

func (self *eventQueue) empty() bool {
	return len(self.events) == 0
}

func (self *eventQueue) size() int {
	return len(self.events)
}

// removes and returns the events up to the first event marked NewRequest
// after the first element. The remainder stays queued for the next flush
// cycle. showBusyIndicator is true iff at least one included event
// requests it.
func (self *eventQueue) nextBatch() (batch []*OutgoingEvent, showBusyIndicator bool) {
	if len(self.events) == 0 {
		return nil, false
	}

	end := len(self.events)
	for i := 1; i < len(self.events); i += 1 {
		if self.events[i].NewRequest {
			end = i
			break
		}
	}

	batch = self.events[:end]
	self.events = append([]*OutgoingEvent{}, self.events[end:]...)

	for _, event := range batch {
		if event.showBusyIndicator() {
			showBusyIndicator = true
			break
		}
	}
	return batch, showBusyIndicator
}
