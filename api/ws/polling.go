package ws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kasuganosora/bondageclub/server/game/player"
	"go.uber.org/zap"
)

const (
	contentTypeText = "text/plain; charset=UTF-8"
	contentTypeHTML = "text/html; charset=UTF-8"

	pollInboundBuf = 16
	// pollCloseGrace keeps a closed session addressable so the client can
	// fetch its final frames.
	pollCloseGrace = 10 * time.Second
)

var (
	errPollClosed  = errors.New("polling session closed")
	errPollTimeout = errors.New("polling session timed out")
)

// pollTransport carries one socket over HTTP long-polling. POST bodies feed
// the read loop through in; GET requests drain the session's SendChan.
type pollTransport struct {
	sess    *player.Session
	in      chan []byte
	getting atomic.Bool

	flushOnce sync.Once
	flushed   chan struct{} // closed once the close packet was delivered
}

func newPollTransport(sess *player.Session) *pollTransport {
	return &pollTransport{
		sess:    sess,
		in:      make(chan []byte, pollInboundBuf),
		flushed: make(chan struct{}),
	}
}

func (p *pollTransport) Next(deadline time.Time) ([]byte, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case raw := <-p.in:
		return raw, nil
	case <-p.sess.Done:
		return nil, errPollClosed
	case <-timer.C:
		return nil, errPollTimeout
	}
}

// pingLoop queues a heartbeat every PingInterval; the WebSocket transport does
// the same from its write pump.
func (p *pollTransport) pingLoop() {
	ticker := time.NewTicker(player.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.sess.SendRaw(player.PingFrame())
		case <-p.sess.Done:
			return
		}
	}
}

// collect waits for at least one outbound frame, then takes whatever else is
// queued up to MaxPayload. closed reports that the session is gone and every
// queued frame has been taken.
func (p *pollTransport) collect(ctx context.Context) (frames [][]byte, closed bool) {
	timer := time.NewTimer(player.PingInterval + player.PingTimeout)
	defer timer.Stop()
	select {
	case f := <-p.sess.SendChan:
		frames = append(frames, f)
	case <-p.sess.Done:
	case <-timer.C:
		return [][]byte{player.NoopFrame()}, false
	case <-ctx.Done():
		return nil, false
	}

	size := 0
	for _, f := range frames {
		size += len(f) + 1
	}
	for size < player.MaxPayload {
		select {
		case f := <-p.sess.SendChan:
			frames = append(frames, f)
			size += len(f) + 1
		default:
			return frames, p.sess.IsClosed() && len(p.sess.SendChan) == 0
		}
	}
	return frames, false
}

func (p *pollTransport) serveGet(c *gin.Context) {
	if !p.getting.CompareAndSwap(false, true) {
		// Overlapping polls break the protocol; the session ends.
		p.sess.Close()
		engineError(c, http.StatusBadRequest, errCodeBadRequest, "Bad request")
		return
	}
	defer p.getting.Store(false)

	frames, closed := p.collect(c.Request.Context())
	if frames == nil && !closed {
		return
	}
	if closed {
		frames = append(frames, player.DisconnectFrame(), player.CloseFrame())
		p.flushOnce.Do(func() { close(p.flushed) })
	}
	c.Data(http.StatusOK, contentTypeText, bytes.Join(frames, []byte{player.RecordSeparator}))
}

func (p *pollTransport) servePost(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, player.MaxPayload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			p.sess.Close()
			engineError(c, http.StatusRequestEntityTooLarge, errCodeBadRequest, "Payload too large")
			return
		}
		engineError(c, http.StatusBadRequest, errCodeBadRequest, "Bad request")
		return
	}
	for _, frame := range bytes.Split(body, []byte{player.RecordSeparator}) {
		if len(frame) == 0 {
			continue
		}
		select {
		case p.in <- frame:
		case <-p.sess.Done:
			engineError(c, http.StatusBadRequest, errCodeUnknownSID, "Session ID unknown")
			return
		case <-c.Request.Context().Done():
			return
		}
	}
	c.Data(http.StatusOK, contentTypeHTML, []byte("ok"))
}

// servePolling routes handshake, poll and post requests of the polling
// transport.
func (h *Handler) servePolling(c *gin.Context) {
	if !h.cors(c) {
		engineError(c, http.StatusForbidden, errCodeForbidden, "Forbidden")
		return
	}
	sid := c.Query("sid")
	if sid == "" {
		if c.Request.Method != http.MethodGet {
			engineError(c, http.StatusBadRequest, errCodeBadHandshakeMethod, "Bad handshake method")
			return
		}
		h.openPolling(c)
		return
	}

	h.pollMu.Lock()
	p := h.polls[sid]
	h.pollMu.Unlock()
	if p == nil {
		engineError(c, http.StatusBadRequest, errCodeUnknownSID, "Session ID unknown")
		return
	}
	switch c.Request.Method {
	case http.MethodGet:
		p.serveGet(c)
	case http.MethodPost:
		p.servePost(c)
	default:
		engineError(c, http.StatusBadRequest, errCodeBadRequest, "Bad request")
	}
}

func (h *Handler) openPolling(c *gin.Context) {
	engineSID := uuid.NewString()
	sess := player.NewSession(uuid.NewString(), c.Request.RemoteAddr, c.ClientIP(), nil, h.logger)
	p := newPollTransport(sess)

	h.pollMu.Lock()
	h.polls[engineSID] = p
	h.pollMu.Unlock()

	go p.pingLoop()
	go func() {
		h.readPump(sess, p)
		select {
		case <-p.flushed:
		case <-time.After(pollCloseGrace):
		}
		h.pollMu.Lock()
		delete(h.polls, engineSID)
		h.pollMu.Unlock()
	}()

	h.logger.Debug("polling session opened",
		zap.String("engine_sid", engineSID),
		zap.String("addr", sess.RemoteAddr))
	c.Data(http.StatusOK, contentTypeText, player.EncodeOpen(engineSID))
}

// cors writes the permissive CORS headers browsers need for cross-origin
// polling. It reports false when the origin is not allowed.
func (h *Handler) cors(c *gin.Context) bool {
	origin := c.GetHeader("Origin")
	if origin == "" {
		return true
	}
	if !h.originAllowed(origin) {
		return false
	}
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Vary", "Origin")
	return true
}

func (h *Handler) preflight(c *gin.Context) {
	if !h.cors(c) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.Header("Access-Control-Allow-Methods", strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", "))
	if hdr := c.GetHeader("Access-Control-Request-Headers"); hdr != "" {
		c.Header("Access-Control-Allow-Headers", hdr)
	}
	c.Status(http.StatusNoContent)
}
