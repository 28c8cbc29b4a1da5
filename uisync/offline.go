package uisync

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// offline detection, request queuing and merging, and the reconnection
// handoff. while offline, outgoing work is queued locally instead of sent.

// idempotent. aborts all in-flight requests and, after a short grace
// delay, starts the reconnection strategy. The grace delay avoids a
// flash of offline state during an ordinary page unload, which looks
// identical to a network loss.
func (self *Session) goOffline() {
	if self.offline {
		return
	}
	glog.Infof("[o]offline\n")
	self.offline = true

	// abort in-flight requests and open a fresh call scope
	self.callCancel()
	callCtx, callCancel := context.WithCancel(self.ctx)
	self.callCtx = callCtx
	self.callCancel = callCancel

	self.notify(SessionEventOffline)

	time.AfterFunc(self.settings.OfflineGraceDelay, func() {
		self.post(func() {
			if !self.offline || self.unloading || self.loggedOut {
				return
			}
			self.reconnector.Start()
		})
	})
}

// merges outgoing work into the single queued request using the same
// coalescing rule as the outgoing queue. requests that carry no events
// are dropped.
func (self *Session) handleQueuedSend(request *Request) {
	if len(request.Events) == 0 {
		glog.V(1).Infof("[o]drop %s\n", request)
		return
	}
	if self.queuedRequest == nil {
		self.queuedRequest = request
		return
	}

	merged := newEventQueue()
	for _, event := range self.queuedRequest.Events {
		merged.enqueue(event)
	}
	for _, event := range request.Events {
		merged.enqueue(event)
	}
	self.queuedRequest.Events = merged.events
	if request.ShowBusyIndicator {
		self.queuedRequest.ShowBusyIndicator = true
	}
}

// issues a synchronization request to re-align sequence expectations.
// its success transitively resumes polling and flushes the retained
// retry and queued requests.
func (self *Session) goOnline() {
	if !self.offline || self.loggedOut {
		return
	}
	glog.Infof("[o]online\n")
	self.offline = false
	self.notify(SessionEventOnline)

	request := self.sequencer.newRequest(RequestKindSync)
	self.sendRequest(request)
}
