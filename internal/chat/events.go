package chat

import "github.com/coder/websocket"

// Event is the closed set of session notifications fanned out to
// subscribers. Dispatch is synchronous on the goroutine that observed the
// underlying transport event.
type Event interface {
	chatEvent()
}

// Connected fires once per successful open, after the auth frame and the
// queued backlog have been written.
type Connected struct{}

// Disconnected fires on every close, normal or not. Code is the websocket
// close status, or -1 when the connection died without a close frame.
type Disconnected struct {
	Code   websocket.StatusCode
	Reason string
}

// MessageReceived carries one well-formed inbound frame, verbatim.
type MessageReceived struct {
	Frame Frame
}

// SessionError reports a transport-level error that was not a clean close.
type SessionError struct {
	Err error
}

// ConnectionFailed is terminal: reconnect attempts are exhausted and this
// session will make no further ones. The owner must build a new session to
// retry.
type ConnectionFailed struct{}

func (Connected) chatEvent()        {}
func (Disconnected) chatEvent()     {}
func (MessageReceived) chatEvent()  {}
func (SessionError) chatEvent()     {}
func (ConnectionFailed) chatEvent() {}

// Frame is one inbound message. Raw holds the full payload; Type is the
// discriminator subscribers switch on (e.g. "room_message").
type Frame struct {
	Type string
	Raw  []byte
}
