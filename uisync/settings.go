package uisync

import (
	"time"
)

type SessionSettings struct {
	// base url of the session endpoint, e.g. https://app.example.com/json
	Url string

	Version string
	PartId  int

	UserAgent            *UserAgent
	SessionStartupParams map[string]any

	// delay between enqueue and flush when the caller does not pass one
	DefaultFlushDelay time.Duration

	CancelRequestTimeout time.Duration
	PingRequestTimeout   time.Duration
	// added to the server polling interval to get the poll request timeout
	PollTimeoutMargin time.Duration
	// fallback until the startup response supplies one
	PollingInterval time.Duration

	BusyIndicatorDelay time.Duration
	// delay before the busy indicator flips to the non-cancellable
	// "cancelling" state after a cancel action
	BusyCancellingDelay time.Duration

	// delay before reconnecting starts after going offline,
	// so that a page unload does not flash an offline state
	OfflineGraceDelay time.Duration

	UnloadTimeout time.Duration

	// keep adapter data cached after adapter creation
	ExportAdapterData bool

	ReconnectSettings *ReconnectSettings
	TransportSettings *HttpTransportSettings
}

func DefaultSessionSettings(url string) *SessionSettings {
	return &SessionSettings{
		Url:                  url,
		DefaultFlushDelay:    0,
		CancelRequestTimeout: 5 * time.Second,
		PingRequestTimeout:   5 * time.Second,
		PollTimeoutMargin:    15 * time.Second,
		PollingInterval:      60 * time.Second,
		BusyIndicatorDelay:   500 * time.Millisecond,
		BusyCancellingDelay:  3 * time.Second,
		OfflineGraceDelay:    1 * time.Second,
		UnloadTimeout:        5 * time.Second,
		ReconnectSettings:    DefaultReconnectSettings(),
		TransportSettings:    DefaultHttpTransportSettings(),
	}
}

type UserAgent struct {
	DeviceType  string `json:"deviceType,omitempty"`
	Touch       bool   `json:"touch,omitempty"`
	Standalone  bool   `json:"standalone,omitempty"`
	BrowserInfo string `json:"browserInfo,omitempty"`
}
