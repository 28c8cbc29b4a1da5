package uisync

import (
	"errors"

	"github.com/golang/glog"
)

// owns the request/response lifecycle: pending-count tracking, timeout
// selection, busy coordination, and the ordered post-success chain.

func (self *Session) sendRequest(request *Request) {
	if self.loggedOut {
		return
	}
	if self.offline && request.Kind != RequestKindUnload {
		self.handleQueuedSend(request)
		return
	}

	self.sequencer.assignSequenceNumber(request)

	if request.Kind.CountsPending() {
		self.pendingRequestCount += 1
	}
	if request.ShowBusyIndicator {
		self.busy.setBusy(true)
	}

	timeout := request.Kind.Timeout(self.settings, self.pollingInterval)
	glog.V(1).Infof("[d]send %s\n", request)
	self.call(request, timeout, func(response *Response, err error) {
		if err != nil {
			self.handleRequestFailure(request, err)
		} else {
			self.handleRequestSuccess(request, response)
		}
	})
}

func (self *Session) handleRequestSuccess(request *Request, response *Response) {
	if request.Kind.CountsPending() {
		self.pendingRequestCount -= 1
	}

	ok := self.responseQueue.process(response)
	if ok {
		// release poll responses deferred behind this request
		ok = self.responseQueue.drain()
	}

	if self.pendingRequestCount == 0 {
		self.busy.setBusy(false)
	}

	if !ok {
		return
	}

	// the ordered post-success chain
	self.poller.resume()

	if self.pendingRequestCount == 0 {
		self.fireRequestsDone()
	}

	if self.retryRequest != nil {
		retryRequest := self.retryRequest
		self.retryRequest = nil
		self.sendRequest(retryRequest)
	} else if self.queuedRequest != nil {
		queuedRequest := self.queuedRequest
		self.queuedRequest = nil
		self.sendRequest(queuedRequest)
	} else if !self.flushTimerArmed {
		self.flushEvents()
	}
}

func (self *Session) handleRequestFailure(request *Request, err error) {
	if request.Kind.CountsPending() {
		self.pendingRequestCount -= 1
	}
	if self.pendingRequestCount == 0 {
		self.busy.setBusy(false)
	}

	if isAbortError(err) {
		// aborted by the session on purpose. going offline aborts all
		// in-flight calls, so the work is retained for replay on recovery
		if self.offline && request.Kind != RequestKindPoll && self.retryRequest == nil {
			glog.V(1).Infof("[d]retain aborted %s\n", request)
			self.retryRequest = request
		}
		return
	}

	var protocolErr *ProtocolError
	if errors.As(err, &protocolErr) {
		self.handleProtocolError(protocolErr)
		return
	}

	if isNetworkError(err) {
		glog.Infof("[d]network error %s = %s\n", request, err)
		if request.Kind != RequestKindPoll {
			// only one retained at a time, the first failure wins
			if self.retryRequest == nil {
				self.retryRequest = request
			}
		}
		self.goOffline()
		return
	}

	glog.Infof("[d]request error %s = %s\n", request, err)
	self.showFatal(0, err.Error(), []FatalAction{FatalActionReload})
}

// flushes the next batch of queued events into one request.
// held back entirely while a user-initiated request is pending, so the
// server observes client actions in the order the user performed them.
func (self *Session) flushEvents() {
	if self.loggedOut {
		return
	}
	if 0 < self.pendingRequestCount {
		// deferred to the next successful response
		return
	}
	if self.queue.empty() {
		return
	}

	batch, showBusyIndicator := self.queue.nextBatch()
	request := self.sequencer.newRequest(RequestKindUser)
	request.Events = batch
	request.ShowBusyIndicator = showBusyIndicator
	self.sendRequest(request)
}

// application errors from the response error field. never retried
// automatically.
func (self *Session) handleSessionError(responseError *ResponseError) {
	glog.Infof("[d]session error %d: %s\n", responseError.Code, responseError.Message)

	switch responseError.Code {
	case ErrorCodeVersionMismatch:
		// one full page reload, guarded against an infinite loop by a
		// one-shot marker in the window scope
		if _, ok := self.stores.Window.Load(versionReloadKey); !ok {
			self.stores.Window.Store(versionReloadKey, "1")
			self.chrome.Reload()
			return
		}
		self.showFatal(responseError.Code, responseError.Message, []FatalAction{FatalActionReload})
	case ErrorCodeStartupFailed:
		// no localized text is available yet
		self.showFatal(responseError.Code, responseError.Message, []FatalAction{FatalActionRetry})
	case ErrorCodeSessionTimeout:
		self.loggedOut = true
		self.poller.stop()
		self.showFatal(responseError.Code, responseError.Message, []FatalAction{FatalActionReload})
	case ErrorCodeUiProcessing:
		self.showFatal(responseError.Code, responseError.Message, []FatalAction{FatalActionReload, FatalActionIgnore})
	case ErrorCodeUnsafeUpload, ErrorCodeRejectedUpload:
		self.showFatal(responseError.Code, responseError.Message, []FatalAction{FatalActionOk})
	default:
		self.showFatal(responseError.Code, responseError.Message, []FatalAction{FatalActionReload})
	}
}

// deduplicated by code to avoid stacking identical dialogs from
// repeated poll failures
func (self *Session) showFatal(code int, message string, actions []FatalAction) {
	if self.shownFatalCodes[code] {
		return
	}
	self.shownFatalCodes[code] = true

	fatalError := &FatalError{
		Code:    code,
		Message: message,
		Actions: actions,
	}
	self.chrome.ShowFatalError(fatalError, func(action FatalAction) {
		self.post(func() {
			delete(self.shownFatalCodes, code)
			self.handleFatalAction(code, action)
		})
	})
}

func (self *Session) handleFatalAction(code int, action FatalAction) {
	switch action {
	case FatalActionReload:
		self.chrome.Reload()
	case FatalActionRetry:
		if code == ErrorCodeStartupFailed {
			self.started = false
			self.start()
		}
	case FatalActionIgnore, FatalActionOk:
	}
}
