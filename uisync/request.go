package uisync

import (
	"fmt"
	"time"
)

// request kind state is:
// RequestKindStartup (first sequenced request of a session)
// RequestKindUser (sequenced event batches)
// RequestKindPoll, RequestKindPing, RequestKindCancel (sequenced control requests)
// RequestKindUnload (sequenced, one-shot, fire-and-forget)
// RequestKindLog, RequestKindSync (unsequenced)
type RequestKind string

const (
	RequestKindUser    RequestKind = "user"
	RequestKindStartup RequestKind = "startup"
	RequestKindUnload  RequestKind = "unload"
	RequestKindCancel  RequestKind = "cancel"
	RequestKindPing    RequestKind = "ping"
	RequestKindPoll    RequestKind = "poll"
	RequestKindLog     RequestKind = "log"
	RequestKindSync    RequestKind = "sync"
)

// sequence numbers are omitted only for log and sync requests
func (self RequestKind) Sequenced() bool {
	switch self {
	case RequestKindLog, RequestKindSync:
		return false
	default:
		return true
	}
}

// whether a request of this kind counts against the pending counter.
// flushes of the outgoing queue are held back while the counter is positive.
func (self RequestKind) CountsPending() bool {
	switch self {
	case RequestKindUser, RequestKindStartup:
		return true
	default:
		return false
	}
}

// debug-only query marker appended to the request url
func (self RequestKind) UrlMarker() string {
	switch self {
	case RequestKindUnload:
		return "unload"
	case RequestKindPoll:
		return "poll"
	case RequestKindPing:
		return "ping"
	case RequestKindCancel:
		return "cancel"
	case RequestKindLog:
		return "log"
	case RequestKindSync:
		return "sync"
	case RequestKindUser, RequestKindStartup:
		return ""
	default:
		panic(fmt.Errorf("unknown request kind %s", string(self)))
	}
}

// the timeout policy per kind. Zero means no timeout, since user and
// startup work on the server may legitimately be slow.
func (self RequestKind) Timeout(settings *SessionSettings, pollingInterval time.Duration) time.Duration {
	switch self {
	case RequestKindCancel:
		return settings.CancelRequestTimeout
	case RequestKindPing:
		return settings.PingRequestTimeout
	case RequestKindPoll:
		return pollingInterval + settings.PollTimeoutMargin
	case RequestKindUnload:
		return settings.UnloadTimeout
	case RequestKindUser, RequestKindStartup, RequestKindLog, RequestKindSync:
		return 0
	default:
		panic(fmt.Errorf("unknown request kind %s", string(self)))
	}
}

type Request struct {
	Kind RequestKind `json:"-"`

	UiSessionId    string  `json:"uiSessionId,omitempty"`
	SequenceNumber *uint64 `json:"#,omitempty"`

	Events []*OutgoingEvent `json:"events,omitempty"`

	Startup               bool `json:"startup,omitempty"`
	Unload                bool `json:"unload,omitempty"`
	Cancel                bool `json:"cancel,omitempty"`
	Ping                  bool `json:"ping,omitempty"`
	PollForBackgroundJobs bool `json:"pollForBackgroundJobs,omitempty"`
	Log                   bool `json:"log,omitempty"`
	SyncResponseQueue     bool `json:"syncResponseQueue,omitempty"`

	Message string `json:"message,omitempty"`

	ShowBusyIndicator bool `json:"showBusyIndicator,omitempty"`

	PartId               int            `json:"partId,omitempty"`
	InstanceId           string         `json:"instanceId,omitempty"`
	ClientSessionId      string         `json:"clientSessionId,omitempty"`
	Version              string         `json:"version,omitempty"`
	UserAgent            *UserAgent     `json:"userAgent,omitempty"`
	SessionStartupParams map[string]any `json:"sessionStartupParams,omitempty"`
}

func (self *Request) String() string {
	if self.SequenceNumber != nil {
		return fmt.Sprintf("%s#%d", string(self.Kind), *self.SequenceNumber)
	}
	return string(self.Kind)
}

// assigns monotonic sequence numbers and assembles request payloads.
// owned by the session and mutated only on the session loop.
type requestSequencer struct {
	uiSessionId        string
	nextSequenceNumber uint64
}

func newRequestSequencer() *requestSequencer {
	return &requestSequencer{}
}

func (self *requestSequencer) newRequest(kind RequestKind) *Request {
	request := &Request{
		Kind:        kind,
		UiSessionId: self.uiSessionId,
	}
	switch kind {
	case RequestKindStartup:
		request.Startup = true
	case RequestKindUnload:
		request.Unload = true
	case RequestKindCancel:
		request.Cancel = true
	case RequestKindPing:
		request.Ping = true
	case RequestKindPoll:
		request.PollForBackgroundJobs = true
	case RequestKindLog:
		request.Log = true
	case RequestKindSync:
		request.SyncResponseQueue = true
	case RequestKindUser:
	default:
		panic(fmt.Errorf("unknown request kind %s", string(kind)))
	}
	return request
}

// sequence numbers are assigned at send time, not enqueue time.
// a request that was already sent once keeps its number on resend.
func (self *requestSequencer) assignSequenceNumber(request *Request) {
	if !request.Kind.Sequenced() {
		return
	}
	if request.SequenceNumber != nil {
		// resend of a retained request
		return
	}
	sequenceNumber := self.nextSequenceNumber
	self.nextSequenceNumber += 1
	request.SequenceNumber = &sequenceNumber
}

// the url carries a debug-only query marker matching the request kind
func requestUrl(url string, kind RequestKind) string {
	marker := kind.UrlMarker()
	if marker == "" {
		return url
	}
	return fmt.Sprintf("%s?%s", url, marker)
}
