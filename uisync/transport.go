package uisync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
)

type HttpTransportSettings struct {
	ConnectTimeout time.Duration
	TlsTimeout     time.Duration
	// connection-phase failures are retried this many times
	// before the failure surfaces to the dispatcher
	RetryCount int
	RetryDelay time.Duration
}

func DefaultHttpTransportSettings() *HttpTransportSettings {
	return &HttpTransportSettings{
		ConnectTimeout: 5 * time.Second,
		TlsTimeout:     5 * time.Second,
		RetryCount:     1,
		RetryDelay:     500 * time.Millisecond,
	}
}

// fire-and-forget call abstraction under the dispatcher.
// a zero timeout means the call has no deadline. canceling the context
// aborts the call.
type Transport interface {
	Send(ctx context.Context, url string, request *Request, timeout time.Duration) (*Response, error)
}

type HttpTransport struct {
	settings *HttpTransportSettings
	auth     *SessionAuth

	client *http.Client
}

func NewHttpTransportWithDefaults() *HttpTransport {
	return NewHttpTransport(DefaultHttpTransportSettings(), nil)
}

func NewHttpTransport(settings *HttpTransportSettings, auth *SessionAuth) *HttpTransport {
	// see https://medium.com/@nate510/don-t-use-go-s-default-http-client-4804cb19f779
	dialer := &net.Dialer{
		Timeout: settings.ConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: settings.TlsTimeout,
	}
	return &HttpTransport{
		settings: settings,
		auth:     auth,
		client: &http.Client{
			Transport: transport,
		},
	}
}

func (self *HttpTransport) Send(ctx context.Context, url string, request *Request, timeout time.Duration) (*Response, error) {
	requestBodyBytes, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	if 0 < timeout {
		var callCancel context.CancelFunc
		callCtx, callCancel = context.WithTimeout(ctx, timeout)
		defer callCancel()
	}

	var responseBodyBytes []byte
	for attempt := 0; ; attempt += 1 {
		responseBodyBytes, err = self.post(callCtx, url, requestBodyBytes)
		if err == nil {
			break
		}
		if callCtx.Err() != nil {
			// aborted or timed out, do not retry
			return nil, err
		}
		var statusErr *HttpStatusError
		if errors.As(err, &statusErr) {
			// the server answered. a repeated POST would apply twice.
			return nil, err
		}
		if self.settings.RetryCount <= attempt {
			return nil, err
		}
		glog.V(1).Infof("[t]retry %s = %s\n", request, err)
		select {
		case <-callCtx.Done():
			return nil, callCtx.Err()
		case <-time.After(self.settings.RetryDelay):
		}
	}

	response := &Response{}
	if err := json.Unmarshal(responseBodyBytes, response); err != nil {
		return nil, newProtocolError("malformed response body: %s", err)
	}
	return response, nil
}

func (self *HttpTransport) post(ctx context.Context, url string, requestBodyBytes []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(requestBodyBytes))
	if err != nil {
		return nil, err
	}

	req.Header.Add("Content-Type", "application/json")

	if self.auth != nil && self.auth.BearerJwt != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", self.auth.BearerJwt))
	}

	r, err := self.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)

	if http.StatusOK != r.StatusCode {
		// the response body is the error message
		errorMessage := strings.TrimSpace(string(responseBodyBytes))
		return nil, &HttpStatusError{
			StatusCode: r.StatusCode,
			Message:    errorMessage,
		}
	}

	if err != nil {
		return nil, err
	}

	return responseBodyBytes, nil
}

// the server answered but refused the request
type HttpStatusError struct {
	StatusCode int
	Message    string
}

func (self *HttpStatusError) Error() string {
	return fmt.Sprintf("response status %d: %s", self.StatusCode, self.Message)
}

// a canceled call means the session aborted it on purpose,
// not that the network failed
func isAbortError(err error) bool {
	return errors.Is(err, context.Canceled)
}

// network-classified failures (timeout, connection refused, abort at the
// socket level) are recoverable through the offline flow. An answer from
// the server, even a refusal or a garbled body, is not a network failure.
func isNetworkError(err error) bool {
	var statusErr *HttpStatusError
	if errors.As(err, &statusErr) {
		return false
	}
	var protocolErr *ProtocolError
	if errors.As(err, &protocolErr) {
		return false
	}
	return true
}
