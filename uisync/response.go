package uisync

import (
	"github.com/golang/glog"
)

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type StartupData struct {
	UiSessionId     string         `json:"uiSessionId"`
	ClientSessionId string         `json:"clientSessionId"`
	Persistent      bool           `json:"persistent"`
	// milliseconds
	PollingInterval int64             `json:"pollingInterval,omitempty"`
	Locale          string            `json:"locale,omitempty"`
	TextMap         map[string]string `json:"textMap,omitempty"`
	ReloadPage      bool              `json:"reloadPage,omitempty"`
	Inspector       bool              `json:"inspector,omitempty"`
}

type Response struct {
	Events            []*ServerEvent            `json:"events,omitempty"`
	AdapterData       map[string]map[string]any `json:"adapterData,omitempty"`
	Error             *ResponseError            `json:"error,omitempty"`
	StartupData       *StartupData              `json:"startupData,omitempty"`
	SessionTerminated bool                      `json:"sessionTerminated,omitempty"`
	RedirectUrl       string                    `json:"redirectUrl,omitempty"`
}

// server event type consumed by the sync engine itself
const eventTypeDisposeAdapter = "disposeAdapter"

// guarantees strict in-order application of responses regardless of
// arrival order. a response that logically belongs after a still-pending
// request is buffered and released once the earlier one completes.
// owned by the session and mutated only on the session loop.
type responseQueue struct {
	session *Session

	// responses held behind the expected-next cursor, in receipt order
	deferredResponses []*Response

	// adapter data supplied by the server, consumed on adapter creation
	adapterDataCache map[string]map[string]any
}

func newResponseQueue(session *Session) *responseQueue {
	return &responseQueue{
		session:           session,
		deferredResponses: []*Response{},
		adapterDataCache:  map[string]map[string]any{},
	}
}

// admits a response that must be ordered behind any pending user request.
// used for poll responses, which may arrive while a user request is in
// flight.
func (self *responseQueue) admit(response *Response) bool {
	if 0 < self.session.pendingRequestCount {
		glog.V(1).Infof("[rq]defer response behind %d pending\n", self.session.pendingRequestCount)
		self.deferredResponses = append(self.deferredResponses, response)
		return true
	}
	return self.process(response)
}

// releases responses deferred behind the request that just completed
func (self *responseQueue) drain() bool {
	for 0 < len(self.deferredResponses) && self.session.pendingRequestCount == 0 {
		response := self.deferredResponses[0]
		self.deferredResponses = self.deferredResponses[1:]
		if !self.process(response) {
			return false
		}
	}
	return true
}

// applies one response: error short-circuit, adapter data merge,
// then events one at a time in array order.
// returns false on an application error.
func (self *responseQueue) process(response *Response) bool {
	if response.Error != nil {
		self.session.handleSessionError(response.Error)
		return false
	}

	if response.StartupData != nil {
		self.session.applyStartupData(response.StartupData)
	}

	for adapterId, data := range response.AdapterData {
		self.adapterDataCache[adapterId] = data
	}

	if err := self.dispatchEvents(response.Events); err != nil {
		// a desynchronization that cannot be safely auto-repaired
		self.session.handleProtocolError(err)
		return false
	}

	if response.SessionTerminated {
		self.session.handleSessionTerminated()
	}

	if response.RedirectUrl != "" {
		self.session.chrome.Redirect(response.RedirectUrl)
	}

	return true
}

// dispatches events strictly in array order. an event whose target
// adapter does not yet exist is deferred and retried after the other
// events in the same response succeed, which supports forward
// references. a target that remains unresolved after one full pass is a
// protocol error.
func (self *responseQueue) dispatchEvents(events []*ServerEvent) error {
	deferredEvents := []*ServerEvent{}

	for _, event := range events {
		if applied, err := self.dispatchEvent(event); err != nil {
			return err
		} else if !applied {
			deferredEvents = append(deferredEvents, event)
		}
	}

	for _, event := range deferredEvents {
		if applied, err := self.dispatchEvent(event); err != nil {
			return err
		} else if !applied {
			return newProtocolError("no adapter for event %s", event)
		}
	}

	return nil
}

func (self *responseQueue) dispatchEvent(event *ServerEvent) (bool, error) {
	if event.Type == eventTypeDisposeAdapter {
		if adapter, ok := self.session.registry.remove(event.Target); ok {
			adapter.Destroy()
		}
		delete(self.adapterDataCache, event.Target)
		return true, nil
	}

	adapter, ok := self.session.registry.get(event.Target)
	if !ok {
		return false, nil
	}
	glog.V(2).Infof("[rq]apply %s\n", event)
	if err := adapter.ApplyEvent(event); err != nil {
		return false, newProtocolError("adapter %s rejected event %s: %s", event.Target, event, err)
	}
	return true, nil
}

// removes and returns the cached data for an adapter about to be created.
// in export mode the entry is retained.
func (self *responseQueue) takeAdapterData(adapterId string) (map[string]any, bool) {
	data, ok := self.adapterDataCache[adapterId]
	if ok && !self.session.settings.ExportAdapterData {
		delete(self.adapterDataCache, adapterId)
	}
	return data, ok
}
