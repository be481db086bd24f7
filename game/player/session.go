package player

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kasuganosora/bondageclub/server/model"
	"go.uber.org/zap"
)

// Transport constants advertised in the Engine.IO handshake.
const (
	PingInterval   = 50 * time.Second
	PingTimeout    = 30 * time.Second
	ConnectTimeout = 5 * time.Second
	MaxPayload     = 180000

	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
)

// Session is one connected socket. The account bound to it lives here and
// nowhere else; dropping the session drops the binding.
type Session struct {
	ID         string // socket id
	RemoteAddr string // ip:port of the peer
	IP         string // client IP used for rate limiting

	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	account   *model.Account
	logger    *zap.Logger
}

// NewSession creates a Session and starts its write goroutine when conn is set.
func NewSession(id, remoteAddr, ip string, conn *websocket.Conn, logger *zap.Logger) *Session {
	s := &Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		IP:         ip,
		Conn:       conn,
		SendChan:   make(chan []byte, sendChanBuf),
		Done:       make(chan struct{}),
		logger:     logger,
	}
	if conn != nil {
		go s.writePump()
	}
	return s
}

// writePump drains SendChan to the WebSocket and sends Engine.IO pings.
// On Close it flushes what is already queued, tells the client the server
// disconnected it, then closes the connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data := <-s.SendChan:
			if err := s.write(data); err != nil {
				s.log().Warn("ws write error", zap.String("socket_id", s.ID), zap.Error(err))
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.write(pingFrame); err != nil {
				s.Close()
				return
			}
		case <-s.Done:
			s.flush()
			_ = s.write(disconnectFrame)
			_ = s.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeDeadline))
			return
		}
	}
}

func (s *Session) write(data []byte) error {
	_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) flush() {
	for {
		select {
		case data := <-s.SendChan:
			if s.write(data) != nil {
				return
			}
		default:
			return
		}
	}
}

// Emit encodes a Socket.IO event and queues it. Drops if the socket is gone
// or its queue is full.
func (s *Session) Emit(event string, data any) {
	frame, err := EncodeEvent(event, data)
	if err != nil {
		s.log().Error("encode event failed",
			zap.String("socket_id", s.ID),
			zap.String("event", event),
			zap.Error(err))
		return
	}
	s.SendRaw(frame)
}

// SendRaw queues a pre-encoded frame non-blocking.
func (s *Session) SendRaw(data []byte) {
	if s.IsClosed() {
		return
	}
	select {
	case s.SendChan <- data:
	case <-s.Done:
	default:
		if !s.IsClosed() {
			s.log().Warn("send channel full, dropping frame", zap.String("socket_id", s.ID))
		}
	}
}

// Close disconnects the socket. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.Done) })
}

// IsClosed returns true once the session has been closed.
func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// Connected is the inverse of IsClosed.
func (s *Session) Connected() bool { return !s.IsClosed() }

// Attach binds acc to this socket and stamps it with the socket id.
func (s *Session) Attach(acc *model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc.ID = s.ID
	s.account = acc
}

// Detach removes and returns the bound account.
func (s *Session) Detach() *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account
	s.account = nil
	return acc
}

// Account returns a copy of the bound account, or nil.
func (s *Session) Account() *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return nil
	}
	return s.account.Clone()
}

// WithAccount runs fn on the bound account under the session lock.
// It reports false when no account is bound.
func (s *Session) WithAccount(fn func(acc *model.Account)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return false
	}
	fn(s.account)
	return true
}

// MemberNumber returns the bound account's member number.
func (s *Session) MemberNumber() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return 0, false
	}
	return s.account.MemberNumber, true
}

func (s *Session) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}
