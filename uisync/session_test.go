package uisync

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestStartupAppliesLocaleAndText(t *testing.T) {
	transport := newFakeTransport()
	session := NewSession(context.Background(), testSessionSettings())
	t.Cleanup(session.Close)
	session.SetTransport(transport)
	session.Start()

	startupCall := transport.awaitCall(t, 0)
	assert.Equal(t, RequestKindStartup, startupCall.request.Kind)
	assert.Equal(t, uint64(0), *startupCall.request.SequenceNumber)
	startupCall.succeed(&Response{
		StartupData: &StartupData{
			UiSessionId:     "ui1",
			ClientSessionId: "client1",
			PollingInterval: 60 * 1000,
			Locale:          "de",
			TextMap: map[string]string{
				"session.expired": "Sitzung abgelaufen",
			},
		},
	})

	waitFor(t, 5*time.Second, func() bool {
		return session.State().PollingState == PollingRunning
	})
	assert.Equal(t, "de", session.State().Locale)
	assert.Equal(t, "ui1", session.State().UiSessionId)
	assert.Equal(t, "Sitzung abgelaufen", session.Text("session.expired"))
	assert.Equal(t, "", session.Text("missing"))
}

func TestSendLogUnsequenced(t *testing.T) {
	session, transport, _, _ := startTestSession(t)

	logIndex := transport.callCount()
	session.SendLog("something odd happened")

	logCall := transport.awaitKind(t, logIndex, RequestKindLog)
	assert.Equal(t, (*uint64)(nil), logCall.request.SequenceNumber)
	assert.Equal(t, "something odd happened", logCall.request.Message)
	// log requests do not hold back user work
	assert.Equal(t, 0, session.State().PendingRequestCount)
	logCall.succeed(&Response{})
}

func TestRedirect(t *testing.T) {
	_, transport, chrome, _ := startTestSession(t)

	pollCall := transport.awaitKind(t, 0, RequestKindPoll)
	pollCall.succeed(&Response{
		RedirectUrl: "https://elsewhere/login",
	})

	waitFor(t, 5*time.Second, func() bool {
		return chrome.redirectedTo() == "https://elsewhere/login"
	})
}

func TestStartupFailedRetry(t *testing.T) {
	transport := newFakeTransport()
	chrome := newTestChrome()
	session := NewSession(context.Background(), testSessionSettings())
	t.Cleanup(session.Close)
	session.SetTransport(transport)
	session.SetChrome(chrome)
	session.Start()

	startupCall := transport.awaitCall(t, 0)
	startupCall.succeed(&Response{
		Error: &ResponseError{Code: ErrorCodeStartupFailed, Message: "no backend"},
	})

	waitFor(t, 5*time.Second, func() bool {
		return 1 <= chrome.fatalCount()
	})
	chrome.choose(0, FatalActionRetry)

	retryCall := transport.awaitKind(t, 1, RequestKindStartup)
	retryCall.succeed(&Response{
		StartupData: &StartupData{
			UiSessionId:     "ui1",
			ClientSessionId: "client1",
			PollingInterval: 60 * 1000,
		},
	})
	waitFor(t, 5*time.Second, func() bool {
		return session.State().PollingState == PollingRunning
	})
}

func TestReloadPageOnStartup(t *testing.T) {
	transport := newFakeTransport()
	chrome := newTestChrome()
	session := NewSession(context.Background(), testSessionSettings())
	t.Cleanup(session.Close)
	session.SetTransport(transport)
	session.SetChrome(chrome)
	session.Start()

	startupCall := transport.awaitCall(t, 0)
	startupCall.succeed(&Response{
		StartupData: &StartupData{
			UiSessionId: "ui1",
			ReloadPage:  true,
		},
	})

	waitFor(t, 5*time.Second, func() bool {
		return chrome.reloads() == 1
	})
	// a page that is about to reload does not start polling
	assert.Equal(t, PollingStopped, session.State().PollingState)
}

func TestRegisterAdapterAndIds(t *testing.T) {
	session, _, _, order := startTestSession(t)

	registerTestAdapter(session, "b", order)
	registerTestAdapter(session, "a", order)

	assert.Equal(t, []string{"a", "b"}, session.AdapterIds())
}
