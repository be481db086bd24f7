package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/bondageclub/server/config"
	"github.com/kasuganosora/bondageclub/server/game/player"
	"go.uber.org/zap"
)

// Engine.IO handshake errors, returned as JSON before a session exists.
const (
	errCodeTransportUnknown    = 0
	errCodeUnknownSID          = 1
	errCodeBadHandshakeMethod  = 2
	errCodeBadRequest          = 3
	errCodeForbidden           = 4
	errCodeUnsupportedProtocol = 5
)

const invalidNamespace = "Invalid namespace"

// frameSource yields inbound Engine.IO frames for one socket. Next blocks until
// a frame arrives, the transport fails, or deadline passes.
type frameSource interface {
	Next(deadline time.Time) ([]byte, error)
}

// Handler is the Gin handler for /socket.io/. It serves the WebSocket
// transport and the HTTP long-polling transport.
type Handler struct {
	sm       *player.SessionManager
	router   *Router
	logger   *zap.Logger
	allowed  []string
	upgrader websocket.Upgrader

	pollMu sync.Mutex
	polls  map[string]*pollTransport // engine sid → polling transport
}

// NewHandler creates a new Socket.IO Handler.
// sec.AllowedOrigins controls which origins are accepted on both transports.
// An empty slice permits all origins.
func NewHandler(sec config.SecurityConfig, sm *player.SessionManager, router *Router, logger *zap.Logger) *Handler {
	h := &Handler{
		sm:      sm,
		router:  router,
		logger:  logger,
		allowed: sec.AllowedOrigins,
		polls:   make(map[string]*pollTransport),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return h.originAllowed(r.Header.Get("Origin"))
		},
	}
	return h
}

func (h *Handler) originAllowed(origin string) bool {
	if len(h.allowed) == 0 {
		return true
	}
	for _, o := range h.allowed {
		if o == origin {
			return true
		}
	}
	return false
}

func engineError(c *gin.Context, status, code int, message string) {
	c.JSON(status, gin.H{"code": code, "message": message})
}

// ServeSocketIO handles /socket.io/?EIO=4&transport=websocket|polling.
func (h *Handler) ServeSocketIO(c *gin.Context) {
	if c.Request.Method == http.MethodOptions {
		h.preflight(c)
		return
	}
	if c.Query("EIO") != "4" {
		engineError(c, http.StatusBadRequest, errCodeUnsupportedProtocol, "Unsupported protocol version")
		return
	}
	switch c.Query("transport") {
	case "websocket":
		if c.Query("sid") != "" {
			// Polling sessions advertise no upgrades.
			engineError(c, http.StatusBadRequest, errCodeBadRequest, "Bad request")
			return
		}
		h.serveWebSocket(c)
	case "polling":
		h.servePolling(c)
	default:
		engineError(c, http.StatusBadRequest, errCodeTransportUnknown, "Transport unknown")
	}
}

func (h *Handler) serveWebSocket(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		engineError(c, http.StatusBadRequest, errCodeBadHandshakeMethod, "Bad handshake method")
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(player.MaxPayload)

	sess := player.NewSession(uuid.NewString(), c.Request.RemoteAddr, c.ClientIP(), conn, h.logger)
	sess.SendRaw(player.EncodeOpen(uuid.NewString()))

	// Blocks until the connection closes.
	h.readPump(sess, wsSource{conn})
}

type wsSource struct{ conn *websocket.Conn }

func (w wsSource) Next(deadline time.Time) ([]byte, error) {
	_ = w.conn.SetReadDeadline(deadline)
	_, raw, err := w.conn.ReadMessage()
	return raw, err
}

// readPump reads frames until the socket closes. Events are handled inline,
// so one socket's events run in arrival order.
func (h *Handler) readPump(s *player.Session, src frameSource) {
	defer h.handleDisconnect(s)

	deadline := time.Now().Add(player.ConnectTimeout)
	connected := false

	for {
		raw, err := src.Next(deadline)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.String("socket_id", s.ID),
					zap.Error(err))
			}
			return
		}
		if connected {
			deadline = time.Now().Add(player.PingInterval + player.PingTimeout)
		}

		pkt, err := player.DecodePacket(raw)
		if errors.Is(err, player.ErrBinaryUnsupported) {
			h.logger.Info("binary packet rejected", zap.String("socket_id", s.ID))
			return
		}
		if err != nil {
			h.logger.Debug("dropping packet",
				zap.String("socket_id", s.ID),
				zap.Error(err))
			continue
		}

		switch pkt.Engine {
		case player.EngineClose:
			return
		case player.EnginePing:
			s.SendRaw(player.PongFrame())
			continue
		case player.EngineMessage:
		default:
			continue
		}

		switch pkt.Socket {
		case player.SocketConnect:
			if pkt.Namespace != player.DefaultNamespace {
				s.SendRaw(player.EncodeConnectError(pkt.Namespace, invalidNamespace))
				continue
			}
			if connected {
				continue
			}
			connected = true
			deadline = time.Now().Add(player.PingInterval + player.PingTimeout)
			h.sm.Register(s)
			s.SendRaw(player.EncodeConnect(s.ID))
			h.logger.Info("socket connected",
				zap.String("socket_id", s.ID),
				zap.String("addr", s.RemoteAddr))
			h.router.Connect(s)
		case player.SocketDisconnect:
			return
		case player.SocketEvent:
			if !connected || pkt.Namespace != player.DefaultNamespace {
				continue
			}
			h.router.Dispatch(s, pkt)
		}
	}
}

// handleDisconnect releases the session after the connection closes.
func (h *Handler) handleDisconnect(s *player.Session) {
	s.Close()
	h.sm.Unregister(s)
	h.logger.Info("socket disconnected",
		zap.String("socket_id", s.ID),
		zap.String("addr", s.RemoteAddr))
}
