package uisync

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestPollerServerErrorStopsPolling(t *testing.T) {
	session, transport, _, _ := startTestSession(t)

	pollCall := transport.awaitKind(t, 0, RequestKindPoll)
	pollCall.fail(&HttpStatusError{StatusCode: 500, Message: "internal"})

	waitFor(t, 5*time.Second, func() bool {
		return session.State().PollingState == PollingFailed
	})
	// a server-classified failure does not mean the network is down
	assert.Equal(t, false, session.State().Offline)

	// no further poll is issued while failed
	before := transport.callCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, transport.callCount())
}

func TestPollerNetworkErrorGoesOffline(t *testing.T) {
	session, transport, _, _ := startTestSession(t)

	pollCall := transport.awaitKind(t, 0, RequestKindPoll)
	pollCall.fail(&testNetworkError{})

	waitFor(t, 5*time.Second, func() bool {
		state := session.State()
		return state.PollingState == PollingFailed && state.Offline
	})
}

func TestPollerResumesAfterUserRequestSuccess(t *testing.T) {
	session, transport, _, _ := startTestSession(t)

	pollCall := transport.awaitKind(t, 0, RequestKindPoll)
	pollCall.fail(&HttpStatusError{StatusCode: 500, Message: "internal"})
	waitFor(t, 5*time.Second, func() bool {
		return session.State().PollingState == PollingFailed
	})

	session.SendEvent(NewOutgoingEvent("42", "click", nil))
	userCall := transport.awaitKind(t, 0, RequestKindUser)
	userCall.succeed(&Response{})

	waitFor(t, 5*time.Second, func() bool {
		return session.State().PollingState == PollingRunning
	})
	// exactly one new poll, not one per recovery signal
	transport.awaitKind(t, 2, RequestKindPoll)
	session.postWait(func() {})
	pollCount := 0
	for i := 0; i < transport.callCount(); i += 1 {
		if transport.call(i).request.Kind == RequestKindPoll {
			pollCount += 1
		}
	}
	assert.Equal(t, 2, pollCount)
}

func TestSingleOutstandingPoll(t *testing.T) {
	session, transport, _, _ := startTestSession(t)

	// a successful user request must not start a second poll while the
	// first is outstanding
	session.SendEvent(NewOutgoingEvent("42", "click", nil))
	userCall := transport.awaitKind(t, 0, RequestKindUser)
	userCall.succeed(&Response{})

	waitFor(t, 5*time.Second, func() bool {
		return session.State().PendingRequestCount == 0
	})
	session.postWait(func() {})
	pollCount := 0
	for i := 0; i < transport.callCount(); i += 1 {
		if transport.call(i).request.Kind == RequestKindPoll {
			pollCount += 1
		}
	}
	assert.Equal(t, 1, pollCount)
}

func TestPollResponseDeliversEventsWhenIdle(t *testing.T) {
	session, transport, _, order := startTestSession(t)
	registerTestAdapter(session, "42", order)

	pollCall := transport.awaitKind(t, 0, RequestKindPoll)
	pollCall.succeed(&Response{
		Events: []*ServerEvent{
			{Target: "42", Type: "pushed"},
		},
	})

	waitFor(t, 5*time.Second, func() bool {
		entries := order.get()
		return 1 <= len(entries) && entries[0] == "42:pushed"
	})
	// and the loop keeps polling
	transport.awaitKind(t, 2, RequestKindPoll)
}
