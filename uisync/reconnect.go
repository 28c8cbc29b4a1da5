package uisync

import (
	"context"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/golang/glog"
)

type ReconnectSettings struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	BackoffFactor   float64
	// fraction of the interval added as random jitter
	Jitter float64
	// attempts before the failed callback fires.
	// retrying continues at MaxInterval after that.
	MaxAttempts int
}

func DefaultReconnectSettings() *ReconnectSettings {
	return &ReconnectSettings{
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		BackoffFactor:   2.0,
		Jitter:          0.25,
		MaxAttempts:     5,
	}
}

// backoff/retry loop that probes the server while the session is offline
type Reconnector interface {
	Start()
	Stop()
}

type ReconnectCallbacks struct {
	OnReconnecting          func()
	OnReconnectingSucceeded func()
	OnReconnectingFailed    func()
}

// default reconnection strategy: capped exponential backoff probing with
// a short liveness request. After MaxAttempts the failed callback fires
// and probing continues at the maximum interval, since the session stays
// offline indefinitely until the server answers again.
type backoffReconnector struct {
	ctx    context.Context
	cancel context.CancelFunc

	probe     func(ctx context.Context) error
	callbacks *ReconnectCallbacks
	settings  *ReconnectSettings

	stateLock sync.Mutex
	runCancel context.CancelFunc
}

func NewBackoffReconnector(
	ctx context.Context,
	probe func(ctx context.Context) error,
	callbacks *ReconnectCallbacks,
	settings *ReconnectSettings,
) *backoffReconnector {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &backoffReconnector{
		ctx:       cancelCtx,
		cancel:    cancel,
		probe:     probe,
		callbacks: callbacks,
		settings:  settings,
	}
}

func (self *backoffReconnector) Start() {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.runCancel != nil {
		// already reconnecting
		return
	}
	runCtx, runCancel := context.WithCancel(self.ctx)
	self.runCancel = runCancel
	go self.run(runCtx)
}

func (self *backoffReconnector) Stop() {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.runCancel != nil {
		self.runCancel()
		self.runCancel = nil
	}
}

func (self *backoffReconnector) run(runCtx context.Context) {
	defer self.Stop()

	safeCallback(self.callbacks.OnReconnecting)

	interval := self.settings.InitialInterval
	for attempt := 0; ; attempt += 1 {
		err := self.probe(runCtx)
		if err == nil {
			glog.Infof("[rc]reconnected after %d attempts\n", attempt+1)
			safeCallback(self.callbacks.OnReconnectingSucceeded)
			return
		}
		if runCtx.Err() != nil {
			return
		}
		glog.V(1).Infof("[rc]probe error = %s\n", err)

		if attempt+1 == self.settings.MaxAttempts {
			glog.Infof("[rc]reconnect failed after %d attempts\n", attempt+1)
			safeCallback(self.callbacks.OnReconnectingFailed)
		}

		select {
		case <-runCtx.Done():
			return
		case <-time.After(self.jittered(interval)):
		}

		interval = time.Duration(float64(interval) * self.settings.BackoffFactor)
		if self.settings.MaxInterval < interval {
			interval = self.settings.MaxInterval
		}
	}
}

func (self *backoffReconnector) jittered(interval time.Duration) time.Duration {
	if self.settings.Jitter <= 0 {
		return interval
	}
	jitter := time.Duration(mathrand.Float64() * self.settings.Jitter * float64(interval))
	return interval + jitter
}
