package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stellarlinkco/myalex/internal/auth"
	"github.com/tidwall/gjson"
)

// State is the connection lifecycle phase.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

const (
	defaultPingInterval = 30 * time.Second
	defaultMaxAttempts  = 5
	dialTimeout         = 15 * time.Second
	writeTimeout        = 5 * time.Second
)

// Options carries injection points; zero values select production defaults.
type Options struct {
	Dialer               Dialer
	PingInterval         time.Duration
	MaxReconnectAttempts int

	// AfterFunc schedules the reconnect delay and returns a stop handle.
	// Tests substitute a manual scheduler.
	AfterFunc func(d time.Duration, fn func()) (stop func())
}

// Session maintains one logical chat connection for an authenticated user:
// it reconnects on abnormal closes with exponential backoff, buffers
// outbound frames while disconnected, and fans inbound frames out to
// subscribers. Identity is immutable; build a new session to change it.
type Session struct {
	user         auth.User
	url          string
	dial         Dialer
	afterFunc    func(time.Duration, func()) func()
	pingInterval time.Duration
	maxAttempts  int

	mu            sync.Mutex
	state         State
	conn          Transport
	queue         [][]byte
	attempts      int
	expo          *backoff.ExponentialBackOff
	stopReconnect func()
	listeners     map[int]func(Event)
	nextListener  int
	destroyed     bool
	done          chan struct{}
}

// NewSession starts connecting immediately and returns without waiting for
// the connection to open.
func NewSession(user auth.User, url string, opts Options) *Session {
	dial := opts.Dialer
	if dial == nil {
		dial = DialWebSocket
	}
	afterFunc := opts.AfterFunc
	if afterFunc == nil {
		afterFunc = func(d time.Duration, fn func()) func() {
			t := time.AfterFunc(d, fn)
			return func() { t.Stop() }
		}
	}
	pingInterval := opts.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	maxAttempts := opts.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = time.Second
	expo.RandomizationFactor = 0
	expo.Multiplier = 2
	expo.MaxInterval = time.Minute

	s := &Session{
		user:         user,
		url:          url,
		dial:         dial,
		afterFunc:    afterFunc,
		pingInterval: pingInterval,
		maxAttempts:  maxAttempts,
		state:        StateConnecting,
		expo:         expo,
		listeners:    make(map[int]func(Event)),
		done:         make(chan struct{}),
	}

	go s.connect()
	go s.pingLoop()
	return s
}

// State reports the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a listener for all session events and returns its
// handle for Unsubscribe. Each listener sees each event exactly once.
func (s *Session) Subscribe(fn func(Event)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextListener++
	id := s.nextListener
	s.listeners[id] = fn
	return id
}

func (s *Session) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

func (s *Session) emit(ev Event) {
	s.mu.Lock()
	listeners := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

func (s *Session) connect() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.mu.Unlock()

	log.Printf("[chat] connecting to %s...", s.url)
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	conn, err := s.dial(ctx, s.url)
	cancel()
	if err != nil {
		// No disconnected event for a connection that never opened.
		log.Printf("[chat] connection failed to initialize: %v", err)
		s.scheduleReconnect()
		return
	}
	s.onOpen(conn)
}

// onOpen performs the open transition: reset the retry budget, send the
// auth frame, drain the backlog in FIFO order, then announce. The drain
// happens before Send callers can observe the open state, so queued frames
// always precede frames submitted after the transition.
func (s *Session) onOpen(conn Transport) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "session destroyed")
		return
	}
	s.conn = conn
	s.state = StateOpen
	s.attempts = 0
	s.expo.Reset()

	backlog := s.queue
	s.queue = nil

	if err := s.writeLocked(s.authFrame()); err != nil {
		log.Printf("[chat] auth frame write failed: %v", err)
	}
	for _, data := range backlog {
		if err := s.writeLocked(data); err != nil {
			log.Printf("[chat] queued frame write failed: %v", err)
		}
	}
	s.mu.Unlock()

	log.Printf("[chat] connected")
	s.emit(Connected{})
	go s.readLoop(conn)
}

func (s *Session) authFrame() []byte {
	data, _ := json.Marshal(map[string]any{
		"type":        "auth",
		"userId":      s.user.ID,
		"displayName": s.user.DisplayName,
		"profile":     s.user.Profile,
	})
	return data
}

func (s *Session) readLoop(conn Transport) {
	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			s.handleClose(conn, err)
			return
		}

		if !gjson.ValidBytes(data) {
			log.Printf("[chat] failed to parse message, dropping frame")
			continue
		}
		s.emit(MessageReceived{Frame: Frame{
			Type: gjson.GetBytes(data, "type").String(),
			Raw:  data,
		}})
	}
}

func (s *Session) handleClose(conn Transport, err error) {
	s.mu.Lock()
	if s.conn != conn {
		// A newer connection already replaced this one.
		s.mu.Unlock()
		return
	}
	s.conn = nil
	destroyed := s.destroyed

	code := websocket.CloseStatus(err)
	reason := ""
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		reason = ce.Reason
	}
	normal := code == websocket.StatusNormalClosure
	if normal || destroyed {
		s.state = StateClosed
	}
	s.mu.Unlock()

	if destroyed {
		return
	}

	log.Printf("[chat] disconnected: code=%d reason=%q", code, reason)
	if code == -1 {
		s.emit(SessionError{Err: err})
	}
	s.emit(Disconnected{Code: code, Reason: reason})

	if !normal {
		s.scheduleReconnect()
	}
}

func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	if s.attempts >= s.maxAttempts {
		s.state = StateFailed
		s.mu.Unlock()
		log.Printf("[chat] max reconnection attempts reached")
		s.emit(ConnectionFailed{})
		return
	}

	delay := s.expo.NextBackOff()
	s.state = StateReconnecting
	log.Printf("[chat] reconnecting in %s...", delay)
	s.stopReconnect = s.afterFunc(delay, func() {
		s.mu.Lock()
		if s.destroyed {
			s.mu.Unlock()
			return
		}
		s.attempts++
		s.stopReconnect = nil
		s.mu.Unlock()
		s.connect()
	})
	s.mu.Unlock()
}

// writeLocked transmits one frame; callers hold s.mu and have verified the
// connection.
func (s *Session) writeLocked(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, data)
}

// Send transmits the payload immediately when the connection is open,
// otherwise appends it to the unbounded in-memory queue drained on the next
// open transition.
func (s *Session) Send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateOpen && s.conn != nil {
		return s.writeLocked(data)
	}
	s.queue = append(s.queue, data)
	return nil
}

func (s *Session) JoinRoom(roomID string) error {
	return s.Send(map[string]any{
		"type":   "join_room",
		"roomId": roomID,
		"userId": s.user.ID,
	})
}

func (s *Session) LeaveRoom(roomID string) error {
	return s.Send(map[string]any{
		"type":   "leave_room",
		"roomId": roomID,
		"userId": s.user.ID,
	})
}

func (s *Session) SendMessage(roomID, content string) error {
	return s.Send(map[string]any{
		"type":        "room_message",
		"roomId":      roomID,
		"userId":      s.user.ID,
		"displayName": s.user.DisplayName,
		"content":     content,
		"timestamp":   time.Now().UnixMilli(),
		"messageId":   uuid.NewString(),
	})
}

// pingLoop keeps the connection alive while open. Pings are best-effort:
// never queued, failures ignored.
func (s *Session) pingLoop() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if s.state == StateOpen && s.conn != nil {
				_ = s.writeLocked([]byte(`{"type":"ping"}`))
			}
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

// Destroy closes the transport with a normal code (suppressing reconnects),
// cancels any pending reconnect timer and drops all listeners. Safe to call
// more than once.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	stop := s.stopReconnect
	s.stopReconnect = nil
	conn := s.conn
	s.conn = nil
	s.state = StateClosed
	s.queue = nil
	s.listeners = make(map[int]func(Event))
	close(s.done)
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "session closed")
	}
}
