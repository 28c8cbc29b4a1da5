package uisync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	endTime := time.Now().Add(timeout)
	for {
		if condition() {
			return
		}
		if endTime.Before(time.Now()) {
			t.Fatal("Timeout waiting for condition.")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type fakeOutcome struct {
	response *Response
	err      error
}

type fakeCall struct {
	url     string
	request *Request
	done    chan *fakeOutcome
}

func (self *fakeCall) succeed(response *Response) {
	self.done <- &fakeOutcome{
		response: response,
	}
}

func (self *fakeCall) fail(err error) {
	self.done <- &fakeOutcome{
		err: err,
	}
}

// records every call and lets the test choose when and how each one
// completes, so response arrival order is fully controlled
type fakeTransport struct {
	mutex sync.Mutex
	calls []*fakeCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		calls: []*fakeCall{},
	}
}

func (self *fakeTransport) Send(ctx context.Context, url string, request *Request, timeout time.Duration) (*Response, error) {
	call := &fakeCall{
		url:     url,
		request: request,
		done:    make(chan *fakeOutcome, 1),
	}
	self.mutex.Lock()
	self.calls = append(self.calls, call)
	self.mutex.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case outcome := <-call.done:
		return outcome.response, outcome.err
	}
}

func (self *fakeTransport) callCount() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return len(self.calls)
}

func (self *fakeTransport) call(i int) *fakeCall {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.calls[i]
}

// waits for call i to be issued and returns it
func (self *fakeTransport) awaitCall(t *testing.T, i int) *fakeCall {
	t.Helper()
	waitFor(t, 5*time.Second, func() bool {
		return i < self.callCount()
	})
	return self.call(i)
}

// waits for the next call of the given kind at or after index i
func (self *fakeTransport) awaitKind(t *testing.T, i int, kind RequestKind) *fakeCall {
	t.Helper()
	var call *fakeCall
	waitFor(t, 5*time.Second, func() bool {
		self.mutex.Lock()
		defer self.mutex.Unlock()
		for ; i < len(self.calls); i += 1 {
			if self.calls[i].request.Kind == kind {
				call = self.calls[i]
				return true
			}
		}
		return false
	})
	return call
}

// classified as a network failure by the dispatcher
type testNetworkError struct {
}

func (self *testNetworkError) Error() string {
	return "connection refused"
}

type testChrome struct {
	mutex       sync.Mutex
	reloadCount int
	fatalErrors []*FatalError
	chooseFns   []func(action FatalAction)
	busyShown   bool
	busyCancel  func()
	cancelling  bool
	redirectUrl string
}

func newTestChrome() *testChrome {
	return &testChrome{}
}

func (self *testChrome) ShowBusyIndicator(cancel func()) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.busyShown = true
	self.busyCancel = cancel
}

func (self *testChrome) SetBusyIndicatorCancelling() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.cancelling = true
}

func (self *testChrome) HideBusyIndicator() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.busyShown = false
}

func (self *testChrome) ShowFatalError(fatalError *FatalError, choose func(action FatalAction)) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.fatalErrors = append(self.fatalErrors, fatalError)
	self.chooseFns = append(self.chooseFns, choose)
}

func (self *testChrome) Reload() {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.reloadCount += 1
}

func (self *testChrome) Redirect(url string) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.redirectUrl = url
}

func (self *testChrome) reloads() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.reloadCount
}

func (self *testChrome) fatalCount() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return len(self.fatalErrors)
}

func (self *testChrome) busyIsShown() bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.busyShown
}

func (self *testChrome) isCancelling() bool {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.cancelling
}

// invokes the cancel callback handed to ShowBusyIndicator
func (self *testChrome) cancelBusy() {
	self.mutex.Lock()
	cancel := self.busyCancel
	self.mutex.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (self *testChrome) redirectedTo() string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.redirectUrl
}

// answers the i-th fatal dialog with the given action
func (self *testChrome) choose(i int, action FatalAction) {
	self.mutex.Lock()
	chooseFn := self.chooseFns[i]
	self.mutex.Unlock()
	chooseFn(action)
}

// records applied events in a shared order log. An event of type
// "createChild" creates the adapter named by its "id" property, which
// exercises forward references.
type testAdapter struct {
	id      string
	session *Session
	order   *orderLog
}

func (self *testAdapter) Id() string {
	return self.id
}

func (self *testAdapter) ApplyEvent(event *ServerEvent) error {
	self.order.append(fmt.Sprintf("%s:%s", self.id, event.Type))
	if event.Type == "createChild" {
		childId, _ := event.Properties["id"].(string)
		if _, err := self.session.CreateAdapter(childId); err != nil {
			return err
		}
	}
	return nil
}

func (self *testAdapter) Destroy() {
	self.order.append(fmt.Sprintf("%s:destroy", self.id))
}

type orderLog struct {
	mutex   sync.Mutex
	entries []string
}

func (self *orderLog) append(entry string) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.entries = append(self.entries, entry)
}

func (self *orderLog) get() []string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return append([]string{}, self.entries...)
}

func testSessionSettings() *SessionSettings {
	settings := DefaultSessionSettings("http://test/json")
	settings.BusyIndicatorDelay = 10 * time.Millisecond
	settings.BusyCancellingDelay = 10 * time.Millisecond
	settings.OfflineGraceDelay = 10 * time.Millisecond
	settings.PollingInterval = 1 * time.Second
	settings.ReconnectSettings = &ReconnectSettings{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		BackoffFactor:   1.5,
		Jitter:          0,
		MaxAttempts:     3,
	}
	return settings
}

// a started session with a fake transport and chrome. The startup
// request is already answered and the first poll is outstanding.
func startTestSession(t *testing.T) (*Session, *fakeTransport, *testChrome, *orderLog) {
	t.Helper()

	transport := newFakeTransport()
	chrome := newTestChrome()
	order := &orderLog{}

	session := NewSession(context.Background(), testSessionSettings())
	t.Cleanup(session.Close)
	session.SetTransport(transport)
	session.SetChrome(chrome)
	session.SetAdapterFactory(func(session *Session, id string, data map[string]any) (Adapter, error) {
		return &testAdapter{
			id:      id,
			session: session,
			order:   order,
		}, nil
	})
	session.Start()

	startupCall := transport.awaitCall(t, 0)
	startupCall.succeed(&Response{
		StartupData: &StartupData{
			UiSessionId:     "ui1",
			ClientSessionId: "client1",
			PollingInterval: 60 * 1000,
		},
	})

	waitFor(t, 5*time.Second, func() bool {
		return session.State().Started && session.State().PollingState == PollingRunning
	})
	// the first poll request is outstanding
	transport.awaitKind(t, 0, RequestKindPoll)

	return session, transport, chrome, order
}

// registers a root adapter on the session loop
func registerTestAdapter(session *Session, id string, order *orderLog) *testAdapter {
	adapter := &testAdapter{
		id:      id,
		session: session,
		order:   order,
	}
	session.postWait(func() {
		session.registry.put(adapter)
	})
	return adapter
}
