package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/uiplane/uisync/uisync"
)

const UiSyncCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `UI sync control.

Watches or drives a ui session against a sync endpoint. The jwt can come
from --jwt, the config file, or a no-echo prompt.

Usage:
    uisyncctl session [--config=<config>] [--url=<url>] [--jwt=<jwt>]
    uisyncctl send [--config=<config>] [--url=<url>] [--jwt=<jwt>]
        --target=<target>
        --type=<type>
        [<property>...]
    uisyncctl ping [--config=<config>] [--url=<url>]
    uisyncctl claims [--jwt=<jwt>]

Options:
    -h --help           Show this screen.
    --version           Show version.
    --config=<config>   Config file [default: ~/.uisyncctl.yml].
    --url=<url>         Sync endpoint url.
    --jwt=<jwt>         Session JWT.
    --target=<target>   Adapter id the event is addressed to.
    --type=<type>       Event type.

A <property> is a key=value pair attached to the event.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], UiSyncCtlVersion)
	if err != nil {
		panic(err)
	}

	if session_, _ := opts.Bool("session"); session_ {
		runSession(opts)
	} else if send_, _ := opts.Bool("send"); send_ {
		send(opts)
	} else if ping_, _ := opts.Bool("ping"); ping_ {
		ping(opts)
	} else if claims_, _ := opts.Bool("claims"); claims_ {
		claims(opts)
	}
}

func loadConfig(opts docopt.Opts) *CtlConfig {
	configPath, _ := opts.String("--config")
	if configPath == "" || configPath == "~/.uisyncctl.yml" {
		configPath = DefaultCtlConfigPath()
	}
	config, err := LoadCtlConfig(configPath)
	if err != nil {
		Err.Fatalf("%s", err)
	}
	url, _ := opts.String("--url")
	jwt, _ := opts.String("--jwt")
	config.merge(url, jwt)
	if config.Url == "" {
		Err.Fatalf("No url given. Use --url or the config file.")
	}
	return config
}

func newCtlSession(ctx context.Context, config *CtlConfig) *uisync.Session {
	settings := uisync.DefaultSessionSettings(config.Url)
	settings.Version = config.Version
	settings.PartId = config.PartId

	session := uisync.NewSession(ctx, settings)

	jwt, err := config.resolveJwt()
	if err != nil {
		Err.Fatalf("%s", err)
	}
	if jwt != "" {
		session.SetAuth(&uisync.SessionAuth{BearerJwt: jwt})
	}

	stores, err := config.stores()
	if err != nil {
		Err.Fatalf("%s", err)
	}
	session.SetStores(stores)

	session.SetAdapterFactory(func(session *uisync.Session, id string, data map[string]any) (uisync.Adapter, error) {
		return newPrintAdapter(id, data), nil
	})
	session.AddListener(func(sessionEvent uisync.SessionEvent) {
		Out.Printf("* %s", sessionEvent)
	})
	// by convention the server addresses the page-level adapter as "root"
	session.RegisterAdapter(newPrintAdapter("root", nil))

	return session
}

// run a session and print everything the server pushes until interrupted
func runSession(opts docopt.Opts) {
	config := loadConfig(opts)

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := newCtlSession(cancelCtx, config)
	defer session.Close()
	session.Start()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	session.Unload()
	// give the unload request a moment to leave
	time.Sleep(1 * time.Second)
}

// send one event and print the response events
func send(opts docopt.Opts) {
	config := loadConfig(opts)

	target, _ := opts.String("--target")
	eventType, _ := opts.String("--type")
	properties := parseProperties(opts)

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := newCtlSession(cancelCtx, config)
	defer session.Close()
	session.Start()

	session.SendEvent(uisync.NewOutgoingEvent(target, eventType, properties))
	awaitDrained(session, 30*time.Second)

	session.Unload()
	time.Sleep(1 * time.Second)
}

// blocks until the event has been flushed, sent, and answered.
// the first state snapshot is ordered after the enqueue, so a drained
// session can only be observed once the response was applied.
func awaitDrained(session *uisync.Session, timeout time.Duration) {
	endTime := time.Now().Add(timeout)
	for {
		state := session.State()
		if state.QueuedEventCount == 0 &&
			state.PendingRequestCount == 0 &&
			!state.HasRetryRequest &&
			!state.HasQueuedRequest {
			return
		}
		if endTime.Before(time.Now()) {
			Err.Fatalf("Timeout waiting for the response.")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// liveness check against the endpoint, no session required
func ping(opts docopt.Opts) {
	config := loadConfig(opts)

	transport := uisync.NewHttpTransportWithDefaults()

	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	startTime := time.Now()
	request := &uisync.Request{
		Kind: uisync.RequestKindPing,
		Ping: true,
	}
	_, err := transport.Send(cancelCtx, config.Url, request, 0)
	if err != nil {
		Err.Fatalf("%s", err)
	}
	Out.Printf("ok %s", time.Since(startTime))
}

// print the claims of a session jwt
func claims(opts docopt.Opts) {
	config := &CtlConfig{}
	jwt, _ := opts.String("--jwt")
	config.merge("", jwt)
	jwtStr, err := config.resolveJwt()
	if err != nil {
		Err.Fatalf("%s", err)
	}

	sessionClaims, err := uisync.ParseSessionJwtUnverified(jwtStr)
	if err != nil {
		Err.Fatalf("Invalid JWT (%s).", err)
	}
	Out.Printf("user_id:   %s", sessionClaims.UserId)
	Out.Printf("user_name: %s", sessionClaims.UserName)
	Out.Printf("tenant_id: %s", sessionClaims.TenantId)
}

func parseProperties(opts docopt.Opts) map[string]any {
	properties := map[string]any{}
	if pairs, ok := opts["<property>"].([]string); ok {
		for _, pair := range pairs {
			key, value, found := strings.Cut(pair, "=")
			if !found {
				Err.Fatalf("Invalid property %q, expected key=value.", pair)
			}
			properties[key] = value
		}
	}
	return properties
}

// prints applied server events as json lines
type printAdapter struct {
	id string
}

func newPrintAdapter(id string, data map[string]any) *printAdapter {
	if data != nil {
		dataJson, _ := json.Marshal(data)
		Out.Printf("+ %s %s", id, dataJson)
	}
	return &printAdapter{
		id: id,
	}
}

func (self *printAdapter) Id() string {
	return self.id
}

func (self *printAdapter) ApplyEvent(event *uisync.ServerEvent) error {
	eventJson, err := json.Marshal(event)
	if err != nil {
		return err
	}
	Out.Printf("< %s", eventJson)
	return nil
}

func (self *printAdapter) Destroy() {
	Out.Printf("- %s", self.id)
}
