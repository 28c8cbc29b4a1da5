package uisync

import (
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// an event sent from a server-side adapter to its client-side counterpart.
// consumed strictly in array order within one response.
type ServerEvent struct {
	Target     string
	Type       string
	Properties map[string]any
}

func (self *ServerEvent) String() string {
	return fmt.Sprintf("%s->%s", self.Type, self.Target)
}

func (self *ServerEvent) UnmarshalJSON(src []byte) error {
	properties := map[string]any{}
	if err := json.Unmarshal(src, &properties); err != nil {
		return err
	}
	target, ok := properties["target"].(string)
	if !ok {
		return fmt.Errorf("server event is missing a target")
	}
	eventType, ok := properties["type"].(string)
	if !ok {
		return fmt.Errorf("server event is missing a type")
	}
	delete(properties, "target")
	delete(properties, "type")
	self.Target = target
	self.Type = eventType
	self.Properties = properties
	return nil
}

func (self *ServerEvent) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for name, value := range self.Properties {
		out[name] = value
	}
	out["target"] = self.Target
	out["type"] = self.Type
	return json.Marshal(out)
}

// client-side counterpart of a server-side adapter.
// the sync engine never inspects adapter internals,
// it only dispatches ordered events and drives the lifecycle.
type Adapter interface {
	Id() string
	ApplyEvent(event *ServerEvent) error
	Destroy()
}

// creates an adapter from the cached adapter data supplied by the server
type AdapterFactory func(session *Session, id string, data map[string]any) (Adapter, error)

// per-session mapping of adapter ids to live adapters.
// passed by reference to the components that need lookup,
// never kept as ambient global state.
type adapterRegistry struct {
	stateLock sync.Mutex
	adapters  map[string]Adapter
}

func newAdapterRegistry() *adapterRegistry {
	return &adapterRegistry{
		adapters: map[string]Adapter{},
	}
}

func (self *adapterRegistry) get(adapterId string) (Adapter, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	adapter, ok := self.adapters[adapterId]
	return adapter, ok
}

func (self *adapterRegistry) put(adapter Adapter) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	self.adapters[adapter.Id()] = adapter
}

func (self *adapterRegistry) remove(adapterId string) (Adapter, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	adapter, ok := self.adapters[adapterId]
	if ok {
		delete(self.adapters, adapterId)
	}
	return adapter, ok
}

func (self *adapterRegistry) adapterIds() []string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	adapterIds := maps.Keys(self.adapters)
	slices.Sort(adapterIds)
	return adapterIds
}

func (self *adapterRegistry) destroyAll() {
	self.stateLock.Lock()
	adapters := maps.Values(self.adapters)
	self.adapters = map[string]Adapter{}
	self.stateLock.Unlock()

	for _, adapter := range adapters {
		adapter.Destroy()
	}
}
