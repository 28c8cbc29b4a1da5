package uisync

import (
	"fmt"
)

// known application error codes from the server
const (
	ErrorCodeStartupFailed   = 5
	ErrorCodeSessionTimeout  = 10
	ErrorCodeUiProcessing    = 20
	ErrorCodeUnsafeUpload    = 30
	ErrorCodeRejectedUpload  = 31
	ErrorCodeVersionMismatch = 40
)

// application error carried in the response error field.
// not retried automatically.
type SessionError struct {
	Code    int
	Message string
}

func (self *SessionError) Error() string {
	return fmt.Sprintf("session error %d: %s", self.Code, self.Message)
}

// a desynchronization between client and server that cannot be safely
// auto-repaired. fatal for the current session.
type ProtocolError struct {
	Message string
}

func (self *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", self.Message)
}

func newProtocolError(format string, a ...any) *ProtocolError {
	return &ProtocolError{
		Message: fmt.Sprintf(format, a...),
	}
}
