package uisync

import (
	"github.com/golang/glog"
)

// polling state machine:
// PollingStopped --(session start)--> PollingRunning
// PollingRunning --(poll succeeds)--> PollingRunning (re-polls)
// PollingRunning --(poll fails, server error)--> PollingFailed
// PollingRunning --(poll fails, network error)--> PollingFailed (and the session goes offline)
// PollingRunning --(server reports session terminated)--> PollingStopped
// PollingFailed --(user request succeeds)--> PollingRunning
// PollingStopped is terminal
type PollingState string

const (
	PollingStopped PollingState = "stopped"
	PollingRunning PollingState = "running"
	PollingFailed  PollingState = "failed"
)

func (self PollingState) IsTerminal() bool {
	return self == PollingStopped
}

// long-poll loop for server push. without the failed state a failed poll
// would spin forever against a down server. owned by the session and
// mutated only on the session loop.
type backgroundPoller struct {
	session *Session

	state PollingState
	// only one poll request may be outstanding at a time
	outstanding bool
	started     bool
}

func newBackgroundPoller(session *Session) *backgroundPoller {
	return &backgroundPoller{
		session: session,
		state:   PollingStopped,
	}
}

func (self *backgroundPoller) start() {
	if self.started {
		return
	}
	self.started = true
	self.state = PollingRunning
	self.poll()
}

// the next successful user request recovers a failed poller
func (self *backgroundPoller) resume() {
	if !self.started || self.state.IsTerminal() {
		return
	}
	if self.state == PollingFailed {
		glog.V(1).Infof("[p]resume\n")
		self.state = PollingRunning
	}
	self.poll()
}

func (self *backgroundPoller) stop() {
	self.state = PollingStopped
}

func (self *backgroundPoller) poll() {
	if self.state != PollingRunning || self.outstanding {
		return
	}
	if self.session.offline {
		return
	}
	self.outstanding = true

	request := self.session.sequencer.newRequest(RequestKindPoll)
	self.session.sequencer.assignSequenceNumber(request)
	timeout := RequestKindPoll.Timeout(self.session.settings, self.session.pollingInterval)

	glog.V(2).Infof("[p]poll %s\n", request)
	self.session.call(request, timeout, func(response *Response, err error) {
		self.handlePollDone(response, err)
	})
}

func (self *backgroundPoller) handlePollDone(response *Response, err error) {
	self.outstanding = false

	if self.state.IsTerminal() {
		return
	}

	if err != nil {
		if isAbortError(err) {
			// aborted by the session on purpose
			return
		}
		self.state = PollingFailed
		if isNetworkError(err) {
			glog.Infof("[p]network error = %s\n", err)
			self.session.goOffline()
		} else {
			glog.Infof("[p]server error = %s\n", err)
		}
		return
	}

	// a poll response arriving while a user request is pending is queued
	// behind it to preserve ordering
	if !self.session.responseQueue.admit(response) {
		self.state = PollingFailed
		return
	}

	// immediately re-poll
	self.poll()
}
