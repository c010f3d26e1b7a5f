// Package chat implements the client-side live chat session against a
// deployed agent: connection lifecycle, streamed reply assembly, and the
// send/close/reset surface used by terminal and test frontends.
package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agent-hr/agenthr/internal/protocol"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the session transcript. Content of the last
// assistant message is mutated in place while a reply is streaming; everything
// else is immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Status is the current connection state of a session.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Conn is the minimal websocket surface the session needs. Satisfied by
// *gorilla/websocket.Conn via wsConn; tests substitute scripted fakes.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a chat connection to the given URL.
type Dialer func(url string) (Conn, error)

// Event describes a state change delivered to the optional event handler.
// Handlers run on the session's event path and must not call back into the
// session.
type Event struct {
	Kind   string // "status", "user", "chunk", "done", "error", "reset"
	Text   string
	Status Status
}

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the default gorilla dialer.
func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dial = d }
}

// WithEventHandler registers a handler invoked after every observable state
// change.
func WithEventHandler(fn func(Event)) Option {
	return func(s *Session) { s.onEvent = fn }
}

// Session is the live chat controller for one deployment. All state is owned
// by the session and mutated under one lock; frames are applied strictly in
// arrival order by a single reader goroutine per connection.
type Session struct {
	baseURL string
	dial    Dialer
	onEvent func(Event)

	mu             sync.Mutex
	deploymentID   string
	conn           Conn
	gen            int // activation generation, fences stale reader goroutines
	status         Status
	messages       []Message
	streaming      bool
	conversationID string
	lastErr        string
}

// NewSession creates a session against the gateway at baseURL
// (e.g. "ws://localhost:8080"). The session starts idle; call Open to
// activate it.
func NewSession(baseURL string, opts ...Option) *Session {
	s := &Session{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dial:    defaultDial,
		status:  StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultDial(url string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return wsConn{c}, nil
}

// wsConn adapts *websocket.Conn to the Conn interface.
type wsConn struct {
	*websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.Conn.ReadMessage()
	return data, err
}

// Open activates the session against a deployment. Any previous connection is
// closed unconditionally first, so there is never more than one live
// connection per session. The transcript survives reactivation; only an
// explicit ResetConversation clears it.
func (s *Session) Open(deploymentID string) error {
	s.mu.Lock()
	s.closeConnLocked()
	s.gen++
	gen := s.gen
	s.deploymentID = deploymentID
	s.streaming = false
	s.setStatusLocked(StatusConnecting)
	url := fmt.Sprintf("%s/api/deployments/%s/ws", s.baseURL, deploymentID)
	s.mu.Unlock()

	conn, err := s.dial(url)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// Superseded by another Open or Close while dialing.
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		s.lastErr = fmt.Sprintf("connection failed: %v", err)
		s.setStatusLocked(StatusError)
		return err
	}
	s.conn = conn
	s.setStatusLocked(StatusConnected)
	go s.readLoop(conn, gen)
	return nil
}

// readLoop consumes inbound frames until the connection dies. The generation
// check drops anything that races a reactivation.
func (s *Session) readLoop(conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.connLost(gen, err)
			return
		}
		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.applyFrameLocked(data)
		s.mu.Unlock()
	}
}

// connLost records the end of a connection. Server-initiated closes land in
// disconnected; transport faults land in error with a visible message. Either
// way the current turn is over but the transcript is untouched.
func (s *Session) connLost(gen int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.conn = nil
	s.streaming = false
	if err == io.EOF || websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		s.setStatusLocked(StatusDisconnected)
		return
	}
	s.lastErr = fmt.Sprintf("connection lost: %v", err)
	s.setStatusLocked(StatusError)
}

// applyFrameLocked folds one inbound frame into the transcript. Malformed
// frames are logged and dropped; a chunk that arrives when the transcript tail
// is not an assistant message is dropped as well, since the only legitimate
// order is user message, assistant placeholder, then chunks.
func (s *Session) applyFrameLocked(data []byte) {
	var f protocol.InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("WARN: dropping malformed chat frame: %v", err)
		return
	}

	switch f.Type {
	case protocol.TypeChunk:
		n := len(s.messages)
		if n == 0 || s.messages[n-1].Role != RoleAssistant {
			log.Printf("WARN: dropping stray chunk frame (no assistant message in flight)")
			return
		}
		s.messages[n-1].Content += f.Content
		s.emit(Event{Kind: "chunk", Text: f.Content})

	case protocol.TypeDone:
		s.streaming = false
		if f.ConversationID != nil {
			s.conversationID = *f.ConversationID
		}
		s.emit(Event{Kind: "done"})

	case protocol.TypeError:
		s.streaming = false
		msg := f.Error
		if msg == "" {
			msg = "agent returned an error"
		}
		s.lastErr = msg
		s.emit(Event{Kind: "error", Text: msg})

	default:
		log.Printf("WARN: dropping chat frame with unknown type %q", f.Type)
	}
}

// Send submits a user message. It is a no-op, with no state mutation, when the
// trimmed text is empty, a reply is still streaming, or the session is not
// connected. Reports whether the message was accepted.
func (s *Session) Send(text string) bool {
	trimmed := strings.TrimSpace(text)

	s.mu.Lock()
	if trimmed == "" || s.streaming || s.status != StatusConnected {
		s.mu.Unlock()
		return false
	}

	now := time.Now()
	s.messages = append(s.messages,
		Message{ID: newMessageID(), Role: RoleUser, Content: trimmed, CreatedAt: now},
		Message{ID: newMessageID(), Role: RoleAssistant, CreatedAt: now},
	)
	s.streaming = true
	frame := protocol.Message(trimmed, s.conversationID)
	conn := s.conn
	s.emit(Event{Kind: "user", Text: trimmed})
	s.mu.Unlock()

	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("ERROR: failed to send chat message: %v", err)
	}
	return true
}

// Close tears down the connection and reports disconnected. Transcript,
// conversation id, and error text are kept so a reopened session resumes
// where it left off.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeConnLocked()
	s.gen++
	s.streaming = false
	if s.status != StatusIdle {
		s.setStatusLocked(StatusDisconnected)
	}
}

// ResetConversation starts a fresh conversation: empty transcript, no
// conversation id, no error. The connection is not touched.
func (s *Session) ResetConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.conversationID = ""
	s.lastErr = ""
	s.streaming = false
	s.emit(Event{Kind: "reset"})
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Streaming reports whether an assistant reply is currently unterminated.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// ConversationID returns the backend-issued conversation token, empty until
// the first done frame carries one.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// LastError returns the most recent user-visible error text, empty if none.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) closeConnLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Session) setStatusLocked(st Status) {
	s.status = st
	s.emit(Event{Kind: "status", Status: st})
}

func (s *Session) emit(ev Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

func newMessageID() string {
	return "msg_" + uuid.New().String()[:8]
}
