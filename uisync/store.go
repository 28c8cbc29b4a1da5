package uisync

import (
	"os"
	"path/filepath"
	"sync"
)

const (
	clientSessionIdKey = "uisync.clientSessionId"
	versionReloadKey   = "uisync.versionReloadAttempted"
)

// key-value persistence for session identifiers across reloads.
// the persistent scope survives client restarts, the window scope does not.
type Store interface {
	Load(key string) (value string, ok bool)
	Store(key string, value string)
	Clear(key string)
}

// per-window scope
type MemoryStore struct {
	stateLock sync.Mutex
	values    map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: map[string]string{},
	}
}

func (self *MemoryStore) Load(key string) (string, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	value, ok := self.values[key]
	return value, ok
}

func (self *MemoryStore) Store(key string, value string) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	self.values[key] = value
}

func (self *MemoryStore) Clear(key string) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	delete(self.values, key)
}

// persistent scope, one file per key
type FileStore struct {
	dirPath string
}

func NewFileStore(dirPath string) (*FileStore, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, err
	}
	return &FileStore{
		dirPath: dirPath,
	}, nil
}

func (self *FileStore) Load(key string) (string, bool) {
	valueBytes, err := os.ReadFile(filepath.Join(self.dirPath, key))
	if err != nil {
		return "", false
	}
	return string(valueBytes), true
}

func (self *FileStore) Store(key string, value string) {
	os.WriteFile(filepath.Join(self.dirPath, key), []byte(value), 0600)
}

func (self *FileStore) Clear(key string) {
	os.Remove(filepath.Join(self.dirPath, key))
}
