package uisync

import (
	"sync"
)

// makes a copy of the list on update
type CallbackList[T any] struct {
	mutex       sync.Mutex
	callbackIds []Id
	callbacks   []T
}

func (self *CallbackList[T]) get() []T {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.callbacks
}

// returns a function to remove the callback
func (self *CallbackList[T]) add(callback T) func() {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	callbackId := NewId()
	nextCallbackIds := append([]Id{}, self.callbackIds...)
	nextCallbackIds = append(nextCallbackIds, callbackId)
	nextCallbacks := append([]T{}, self.callbacks...)
	nextCallbacks = append(nextCallbacks, callback)
	self.callbackIds = nextCallbackIds
	self.callbacks = nextCallbacks

	return func() {
		self.remove(callbackId)
	}
}

func (self *CallbackList[T]) remove(callbackId Id) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	i := -1
	for j, id := range self.callbackIds {
		if id == callbackId {
			i = j
			break
		}
	}
	if i < 0 {
		// not present
		return
	}
	nextCallbackIds := append([]Id{}, self.callbackIds[:i]...)
	nextCallbackIds = append(nextCallbackIds, self.callbackIds[i+1:]...)
	nextCallbacks := append([]T{}, self.callbacks[:i]...)
	nextCallbacks = append(nextCallbacks, self.callbacks[i+1:]...)
	self.callbackIds = nextCallbackIds
	self.callbacks = nextCallbacks
}

// note all callbacks are wrapped to check for nil and recover from errors
func safeCallback(callback func()) {
	if callback == nil {
		return
	}
	defer func() {
		recover()
	}()
	callback()
}
