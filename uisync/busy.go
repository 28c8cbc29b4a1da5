package uisync

import (
	"time"

	"github.com/golang/glog"
)

// debounced, cancellable busy ui tied to the pending request count.
// owned by the session and mutated only on the session loop.
type busyIndicator struct {
	session *Session

	busy       bool
	shown      bool
	cancelling bool

	showTimer       *time.Timer
	cancellingTimer *time.Timer
}

func newBusyIndicator(session *Session) *busyIndicator {
	return &busyIndicator{
		session: session,
	}
}

// arms a short timer so the indicator only appears
// if the request is still pending when it fires
func (self *busyIndicator) setBusy(busy bool) {
	if self.busy == busy {
		return
	}
	self.busy = busy

	if busy {
		self.showTimer = time.AfterFunc(self.session.settings.BusyIndicatorDelay, func() {
			self.session.post(self.show)
		})
	} else {
		if self.showTimer != nil {
			self.showTimer.Stop()
			self.showTimer = nil
		}
		if self.cancellingTimer != nil {
			self.cancellingTimer.Stop()
			self.cancellingTimer = nil
		}
		if self.shown {
			self.shown = false
			self.cancelling = false
			self.session.chrome.HideBusyIndicator()
		}
	}
}

func (self *busyIndicator) show() {
	if !self.busy || self.shown {
		return
	}
	self.shown = true
	self.session.chrome.ShowBusyIndicator(func() {
		self.session.post(self.cancel)
	})
}

// a user-initiated cancel on the indicator sends a cancel-kind request
// and flips to the non-cancellable cancelling state after a brief delay
func (self *busyIndicator) cancel() {
	if !self.shown || self.cancelling {
		return
	}
	glog.V(1).Infof("[b]cancel\n")

	self.session.sendCancelRequest()

	self.cancellingTimer = time.AfterFunc(self.session.settings.BusyCancellingDelay, func() {
		self.session.post(func() {
			if !self.shown {
				return
			}
			self.cancelling = true
			self.session.chrome.SetBusyIndicatorCancelling()
		})
	})
}
