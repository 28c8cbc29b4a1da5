package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/uiplane/uisync/uisync"
)

// yaml config for values that are annoying to pass on every invocation
type CtlConfig struct {
	Url     string `yaml:"url"`
	Version string `yaml:"version,omitempty"`
	PartId  int    `yaml:"part_id,omitempty"`
	Jwt     string `yaml:"jwt,omitempty"`
	// directory for the persistent session store.
	// empty means in-memory only.
	StorageDir string `yaml:"storage_dir,omitempty"`
}

func DefaultCtlConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".uisyncctl.yml")
}

func LoadCtlConfig(path string) (*CtlConfig, error) {
	config := &CtlConfig{}
	configBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(configBytes, config); err != nil {
		return nil, fmt.Errorf("malformed config %s: %s", path, err)
	}
	return config, nil
}

// command line wins over config file
func (self *CtlConfig) merge(url string, jwt string) {
	if url != "" {
		self.Url = url
	}
	if jwt != "" {
		self.Jwt = jwt
	}
}

// prompts without echo when no jwt was given anywhere
func (self *CtlConfig) resolveJwt() (string, error) {
	if self.Jwt != "" {
		return self.Jwt, nil
	}
	fmt.Fprint(os.Stderr, "JWT: ")
	jwtBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(jwtBytes), nil
}

func (self *CtlConfig) stores() (*uisync.SessionStores, error) {
	stores := uisync.DefaultSessionStores()
	if self.StorageDir != "" {
		fileStore, err := uisync.NewFileStore(self.StorageDir)
		if err != nil {
			return nil, err
		}
		stores.Persistent = fileStore
	}
	return stores, nil
}
