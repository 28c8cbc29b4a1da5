package uisync

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
)

type SessionEvent string

const (
	SessionEventStarted         SessionEvent = "started"
	SessionEventOffline         SessionEvent = "offline"
	SessionEventOnline          SessionEvent = "online"
	SessionEventReconnecting    SessionEvent = "reconnecting"
	SessionEventReconnectFailed SessionEvent = "reconnectFailed"
	SessionEventTerminated      SessionEvent = "terminated"
	SessionEventProtocolError   SessionEvent = "protocolError"
)

type SessionListenerFunc func(sessionEvent SessionEvent)

type SessionStores struct {
	// per-window scope, dropped with the session instance
	Window Store
	// survives client restarts
	Persistent Store
}

func DefaultSessionStores() *SessionStores {
	return &SessionStores{
		Window:     NewMemoryStore(),
		Persistent: NewMemoryStore(),
	}
}

// the client half of a stateful, single-session synchronization protocol.
// the server holds authoritative ui state, the session sends event batches
// and applies ordered server event batches to the local adapters.
//
// all session state is mutated on a single loop goroutine processing an
// internal task queue, so handler code never runs re-entrantly inside
// another handler.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	// distinguishes concurrent client instances of the same user
	instanceId Id

	settings *SessionSettings

	transport   Transport
	stores      *SessionStores
	chrome      Chrome
	factory     AdapterFactory
	reconnector Reconnector
	auth        *SessionAuth

	tasks chan func()

	// abortable scope for in-flight calls, recreated when going offline
	callCtx    context.Context
	callCancel context.CancelFunc

	registry      *adapterRegistry
	queue         *eventQueue
	sequencer     *requestSequencer
	responseQueue *responseQueue
	poller        *backgroundPoller
	busy          *busyIndicator

	pendingRequestCount int
	// the exact request that failed transiently and must be resent first
	// on recovery
	retryRequest *Request
	// outgoing work merged while offline
	queuedRequest *Request

	offline   bool
	unloading bool
	loggedOut bool
	started   bool

	flushTimer      *time.Timer
	flushDue        time.Time
	flushTimerArmed bool

	uiSessionId     string
	clientSessionId string
	persistent      bool
	pollingInterval time.Duration
	locale          string
	textMap         map[string]string
	inspector       bool

	requestsDoneCallbacks []func()
	// exactly one fatal dialog per distinct error code at a time
	shownFatalCodes map[int]bool
	fatalError      error

	listeners *CallbackList[SessionListenerFunc]
}

func NewSessionWithDefaults(ctx context.Context, url string) *Session {
	return NewSession(ctx, DefaultSessionSettings(url))
}

func NewSession(ctx context.Context, settings *SessionSettings) *Session {
	cancelCtx, cancel := context.WithCancel(ctx)
	callCtx, callCancel := context.WithCancel(cancelCtx)

	session := &Session{
		ctx:             cancelCtx,
		cancel:          cancel,
		instanceId:      NewId(),
		settings:        settings,
		stores:          DefaultSessionStores(),
		chrome:          NewNoopChrome(),
		tasks:           make(chan func(), 1024),
		callCtx:         callCtx,
		callCancel:      callCancel,
		registry:        newAdapterRegistry(),
		queue:           newEventQueue(),
		sequencer:       newRequestSequencer(),
		pollingInterval: settings.PollingInterval,
		textMap:         map[string]string{},
		shownFatalCodes: map[int]bool{},
		listeners:       &CallbackList[SessionListenerFunc]{},
	}
	session.responseQueue = newResponseQueue(session)
	session.poller = newBackgroundPoller(session)
	session.busy = newBusyIndicator(session)

	go session.run()
	return session
}

// collaborators may be replaced before Start

func (self *Session) SetTransport(transport Transport) {
	self.post(func() {
		self.transport = transport
	})
}

func (self *Session) SetStores(stores *SessionStores) {
	self.post(func() {
		self.stores = stores
	})
}

func (self *Session) SetChrome(chrome Chrome) {
	self.post(func() {
		self.chrome = chrome
	})
}

func (self *Session) SetAdapterFactory(factory AdapterFactory) {
	self.post(func() {
		self.factory = factory
	})
}

func (self *Session) SetReconnector(reconnector Reconnector) {
	self.post(func() {
		self.reconnector = reconnector
	})
}

// this gets attached to all requests that need it
func (self *Session) SetAuth(auth *SessionAuth) {
	self.post(func() {
		self.auth = auth
	})
}

func (self *Session) AddListener(listener SessionListenerFunc) func() {
	return self.listeners.add(listener)
}

func (self *Session) InstanceId() Id {
	return self.instanceId
}

func (self *Session) run() {
	for {
		select {
		case <-self.ctx.Done():
			return
		case task := <-self.tasks:
			task()
		}
	}
}

func (self *Session) post(task func()) {
	select {
	case <-self.ctx.Done():
	case self.tasks <- task:
	}
}

func (self *Session) postWait(task func()) {
	done := make(chan struct{})
	self.post(func() {
		defer close(done)
		task()
	})
	select {
	case <-self.ctx.Done():
	case <-done:
	}
}

// runs the transport call off the loop and posts the outcome back
func (self *Session) call(request *Request, timeout time.Duration, callback func(response *Response, err error)) {
	url := requestUrl(self.settings.Url, request.Kind)
	callCtx := self.callCtx
	transport := self.transport
	go func() {
		response, err := transport.Send(callCtx, url, request, timeout)
		self.post(func() {
			callback(response, err)
		})
	}()
}

func (self *Session) Start() {
	self.post(self.start)
}

func (self *Session) start() {
	if self.started || self.loggedOut {
		return
	}
	self.started = true

	if self.transport == nil {
		self.transport = NewHttpTransport(self.settings.TransportSettings, self.auth)
	}
	if self.reconnector == nil {
		self.reconnector = NewBackoffReconnector(
			self.ctx,
			self.reconnectProbe,
			&ReconnectCallbacks{
				OnReconnecting: func() {
					self.notify(SessionEventReconnecting)
				},
				OnReconnectingSucceeded: func() {
					self.post(self.goOnline)
				},
				OnReconnectingFailed: func() {
					// the session stays offline, the strategy keeps probing
					self.notify(SessionEventReconnectFailed)
				},
			},
			self.settings.ReconnectSettings,
		)
	}

	// a persisted client session id survives reloads
	if value, ok := self.stores.Persistent.Load(clientSessionIdKey); ok {
		self.clientSessionId = value
	} else if value, ok := self.stores.Window.Load(clientSessionIdKey); ok {
		self.clientSessionId = value
	}

	if self.auth != nil {
		if claims, err := ParseSessionJwtUnverified(self.auth.BearerJwt); err == nil {
			glog.V(1).Infof("[s]start user=%s tenant=%s\n", claims.UserId, claims.TenantId)
		}
	}

	request := self.sequencer.newRequest(RequestKindStartup)
	request.InstanceId = self.instanceId.String()
	request.ClientSessionId = self.clientSessionId
	request.Version = self.settings.Version
	request.PartId = self.settings.PartId
	request.UserAgent = self.settings.UserAgent
	request.SessionStartupParams = self.settings.SessionStartupParams
	request.ShowBusyIndicator = true
	self.sendRequest(request)
}

func (self *Session) applyStartupData(startupData *StartupData) {
	self.uiSessionId = startupData.UiSessionId
	self.sequencer.uiSessionId = startupData.UiSessionId
	self.persistent = startupData.Persistent

	if startupData.ClientSessionId != "" {
		self.clientSessionId = startupData.ClientSessionId
		self.sessionStore().Store(clientSessionIdKey, startupData.ClientSessionId)
	}
	if 0 < startupData.PollingInterval {
		self.pollingInterval = time.Duration(startupData.PollingInterval) * time.Millisecond
	}
	self.locale = startupData.Locale
	if startupData.TextMap != nil {
		self.textMap = startupData.TextMap
	}
	self.inspector = startupData.Inspector

	// a successful startup clears the one-shot version reload marker
	self.stores.Window.Clear(versionReloadKey)

	if startupData.ReloadPage {
		self.chrome.Reload()
		return
	}

	glog.V(1).Infof("[s]started uiSession=%s\n", self.uiSessionId)
	self.poller.start()
	self.notify(SessionEventStarted)
}

func (self *Session) sessionStore() Store {
	if self.persistent {
		return self.stores.Persistent
	}
	return self.stores.Window
}

// ping the server directly, outside the dispatcher, while offline.
// sequence numbers still come from the session loop.
func (self *Session) reconnectProbe(probeCtx context.Context) error {
	var request *Request
	done := make(chan struct{})
	self.post(func() {
		defer close(done)
		request = self.sequencer.newRequest(RequestKindPing)
		self.sequencer.assignSequenceNumber(request)
	})
	select {
	case <-probeCtx.Done():
		return probeCtx.Err()
	case <-done:
	}

	url := requestUrl(self.settings.Url, RequestKindPing)
	_, err := self.transport.Send(probeCtx, url, request, self.settings.PingRequestTimeout)
	return err
}

// appends an event to the outgoing queue, coalescing older entries the
// event supersedes. The queue flushes after the minimum delay among all
// pending calls.
func (self *Session) SendEvent(event *OutgoingEvent) {
	self.SendEventWithDelay(event, self.settings.DefaultFlushDelay)
}

func (self *Session) SendEventWithDelay(event *OutgoingEvent, delay time.Duration) {
	self.post(func() {
		self.enqueueEvent(event, delay)
	})
}

func (self *Session) enqueueEvent(event *OutgoingEvent, delay time.Duration) {
	if self.loggedOut {
		return
	}
	glog.V(2).Infof("[s]enqueue %s\n", event)
	self.queue.enqueue(event)
	self.armFlushTimer(delay)
}

// a zero-delay event must not be held back by an earlier longer-delay timer
func (self *Session) armFlushTimer(delay time.Duration) {
	due := time.Now().Add(delay)
	if self.flushTimerArmed && !due.Before(self.flushDue) {
		return
	}
	if self.flushTimer != nil {
		self.flushTimer.Stop()
	}
	self.flushDue = due
	self.flushTimerArmed = true
	self.flushTimer = time.AfterFunc(delay, func() {
		self.post(func() {
			self.flushTimerArmed = false
			self.flushEvents()
		})
	})
}

// sends a log message to the server through the unsequenced log channel
func (self *Session) SendLog(message string) {
	self.post(func() {
		request := self.sequencer.newRequest(RequestKindLog)
		request.Message = message
		self.sendRequest(request)
	})
}

// advisory best-effort abort of a long-running server operation.
// the original request's response is still awaited normally.
func (self *Session) sendCancelRequest() {
	request := self.sequencer.newRequest(RequestKindCancel)
	self.sendRequest(request)
}

// registers a callback that fires once no user-initiated request is pending
func (self *Session) WhenRequestsDone(callback func()) {
	self.post(func() {
		if self.pendingRequestCount == 0 {
			safeCallback(callback)
			return
		}
		self.requestsDoneCallbacks = append(self.requestsDoneCallbacks, callback)
	})
}

func (self *Session) fireRequestsDone() {
	callbacks := self.requestsDoneCallbacks
	self.requestsDoneCallbacks = nil
	for _, callback := range callbacks {
		safeCallback(callback)
	}
}

// one-shot, non-cancellable, fire-and-forget. bypasses the normal queue
// because the page may be terminating.
func (self *Session) Unload() {
	self.post(self.unload)
}

func (self *Session) unload() {
	if self.unloading {
		return
	}
	self.unloading = true
	self.loggedOut = true
	self.poller.stop()

	request := self.sequencer.newRequest(RequestKindUnload)
	self.sequencer.assignSequenceNumber(request)

	url := requestUrl(self.settings.Url, RequestKindUnload)
	transport := self.transport
	if transport == nil {
		return
	}
	timeout := self.settings.UnloadTimeout
	// detached from the session context so the request survives Close
	go func() {
		unloadCtx, unloadCancel := context.WithTimeout(context.Background(), timeout)
		defer unloadCancel()
		transport.Send(unloadCtx, url, request, 0)
	}()
}

// creates the client-side adapter for an id announced by the server,
// consuming its cached adapter data. Must be called during event
// application or from a posted task.
func (self *Session) CreateAdapter(adapterId string) (Adapter, error) {
	if adapter, ok := self.registry.get(adapterId); ok {
		return adapter, nil
	}
	if self.factory == nil {
		return nil, fmt.Errorf("no adapter factory")
	}
	data, ok := self.responseQueue.takeAdapterData(adapterId)
	if !ok {
		return nil, fmt.Errorf("no adapter data for %s", adapterId)
	}
	adapter, err := self.factory(self, adapterId, data)
	if err != nil {
		return nil, err
	}
	self.registry.put(adapter)
	return adapter, nil
}

// registers a root adapter created by the presentation layer itself
func (self *Session) RegisterAdapter(adapter Adapter) {
	self.registry.put(adapter)
}

func (self *Session) AdapterIds() []string {
	return self.registry.adapterIds()
}

func (self *Session) handleSessionTerminated() {
	glog.Infof("[s]session terminated\n")
	self.loggedOut = true
	self.poller.stop()
	self.reconnector.Stop()
	self.sessionStore().Clear(clientSessionIdKey)
	self.registry.destroyAll()
	self.notify(SessionEventTerminated)
}

func (self *Session) handleProtocolError(err error) {
	glog.Errorf("[s]%s\n", err)
	self.fatalError = err
	self.loggedOut = true
	self.poller.stop()
	self.notify(SessionEventProtocolError)
	self.showFatal(0, err.Error(), []FatalAction{FatalActionReload})
}

func (self *Session) notify(sessionEvent SessionEvent) {
	for _, listener := range self.listeners.get() {
		func() {
			defer func() {
				recover()
			}()
			listener(sessionEvent)
		}()
	}
}

func (self *Session) Close() {
	self.cancel()
	if self.reconnector != nil {
		self.reconnector.Stop()
	}
	self.registry.destroyAll()
}

// snapshot of the session state observable from outside the loop
type SessionState struct {
	UiSessionId         string
	ClientSessionId     string
	Started             bool
	Offline             bool
	LoggedOut           bool
	PollingState        PollingState
	PendingRequestCount int
	QueuedEventCount    int
	NextSequenceNumber  uint64
	HasRetryRequest     bool
	HasQueuedRequest    bool
	Locale              string
	FatalError          error
}

func (self *Session) State() *SessionState {
	state := &SessionState{}
	self.postWait(func() {
		state.UiSessionId = self.uiSessionId
		state.ClientSessionId = self.clientSessionId
		state.Started = self.started
		state.Offline = self.offline
		state.LoggedOut = self.loggedOut
		state.PollingState = self.poller.state
		state.PendingRequestCount = self.pendingRequestCount
		state.QueuedEventCount = self.queue.size()
		state.NextSequenceNumber = self.sequencer.nextSequenceNumber
		state.HasRetryRequest = self.retryRequest != nil
		state.HasQueuedRequest = self.queuedRequest != nil
		state.Locale = self.locale
		state.FatalError = self.fatalError
	})
	return state
}

// localized text from the startup text map
func (self *Session) Text(key string) string {
	var value string
	self.postWait(func() {
		value = self.textMap[key]
	})
	return value
}
