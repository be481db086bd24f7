// Package integration drives a fully wired server over real Socket.IO
// connections.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/bondageclub/server/api"
	"github.com/kasuganosora/bondageclub/server/config"
	"github.com/kasuganosora/bondageclub/server/db/sqlstore"
	"github.com/kasuganosora/bondageclub/server/game/account"
	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/kasuganosora/bondageclub/server/scheduler"
	"github.com/kasuganosora/bondageclub/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminKey guards the admin routes of the test server.
const AdminKey = "integration-admin"

// TestServer wraps a real HTTP server with the account stack wired together.
type TestServer struct {
	Store  *sqlstore.Store
	SM     *player.SessionManager
	Svc    *account.Service
	Sched  *scheduler.Scheduler
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	WSURL  string // ws://127.0.0.1:<port>/socket.io/?EIO=4&transport=websocket
	cancel context.CancelFunc
}

// Options tweak the server under test.
type Options struct {
	MaxIPAccountPerDay  int
	MaxIPAccountPerHour int
}

// NewTestServer creates a fully wired server for integration testing.
// It mirrors the dependency wiring in main.go.
func NewTestServer(t *testing.T, opts Options) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if opts.MaxIPAccountPerDay == 0 {
		opts.MaxIPAccountPerDay = 100
	}
	if opts.MaxIPAccountPerHour == 0 {
		opts.MaxIPAccountPerHour = 100
	}

	// ---- Infrastructure ----
	store := testutil.SetupTestStore(t)
	logger := zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())

	sec := config.SecurityConfig{
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
		AllowedOrigins: []string{},
	}

	// ---- Accounts ----
	alloc, err := account.BootstrapAllocator(ctx, store)
	require.NoError(t, err)
	sm := player.NewSessionManager(logger)
	svc := account.NewService(store, sm, alloc, account.Config{
		MaxIPAccountPerDay:  opts.MaxIPAccountPerDay,
		MaxIPAccountPerHour: opts.MaxIPAccountPerHour,
		LoginInterval:       5 * time.Millisecond,
	}, logger, account.WithHasher(account.NewBcryptHasher(bcrypt.MinCost)))

	sched := scheduler.New(logger)

	// ---- HTTP ----
	engine := api.NewEngine(ctx, api.Deps{
		Server:   config.ServerConfig{AdminKey: AdminKey},
		Security: sec,
		Store:    store,
		Sessions: sm,
		Accounts: svc,
		Sched:    sched,
		Logger:   logger,
	})
	server := httptest.NewServer(engine)
	url := server.URL
	wsURL := "ws" + strings.TrimPrefix(url, "http") + api.SocketPath + "?EIO=4&transport=websocket"

	ts := &TestServer{
		Store:  store,
		SM:     sm,
		Svc:    svc,
		Sched:  sched,
		Server: server,
		URL:    url,
		WSURL:  wsURL,
		cancel: cancel,
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close shuts down the test server.
func (ts *TestServer) Close() {
	ts.Sched.Stop()
	ts.SM.CloseAllSessions()
	ts.Server.Close()
	ts.cancel()
}

// Get sends a GET request with an optional admin key.
func (ts *TestServer) Get(t *testing.T, path, adminKey string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	if adminKey != "" {
		req.Header.Set("X-Admin-Key", adminKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// --- Socket.IO client ---

// Event is one received Socket.IO event.
type Event struct {
	Name    string
	Payload json.RawMessage
}

// Decode unmarshals the payload into v.
func (e Event) Decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(e.Payload, v), "payload: %s", e.Payload)
}

// String returns the payload as a JSON string value.
func (e Event) String(t *testing.T) string {
	t.Helper()
	var s string
	e.Decode(t, &s)
	return s
}

// SIOClient is a minimal Socket.IO v5 client over one WebSocket.
// Uses a background readLoop to avoid gorilla/websocket's SetReadDeadline bug.
type SIOClient struct {
	Conn   *websocket.Conn
	SID    string
	t      *testing.T
	readCh chan readResult
	closed atomic.Bool
}

type readResult struct {
	data []byte
	err  error
}

// Dial opens the WebSocket and completes the Engine.IO handshake, without
// joining the namespace.
func (ts *TestServer) Dial(t *testing.T) *SIOClient {
	t.Helper()
	return ts.DialHeader(t, nil)
}

// DialHeader is Dial with extra handshake headers.
func (ts *TestServer) DialHeader(t *testing.T, header http.Header) *SIOClient {
	t.Helper()
	dialer := websocket.Dialer{}
	conn, resp, err := dialer.Dial(ts.WSURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	c := &SIOClient{Conn: conn, t: t, readCh: make(chan readResult, 256)}
	go c.readLoop()
	t.Cleanup(c.Close)

	open := c.recvFrame(5 * time.Second)
	require.Equal(t, byte(player.EngineOpen), open[0], "first frame: %s", open)
	var hs player.OpenPayload
	require.NoError(t, json.Unmarshal(open[1:], &hs))
	c.SID = hs.SID
	return c
}

// Connect dials, joins the default namespace and consumes the greeting.
func (ts *TestServer) Connect(t *testing.T) *SIOClient {
	t.Helper()
	return ts.ConnectHeader(t, nil)
}

// ConnectHeader is Connect with extra handshake headers.
func (ts *TestServer) ConnectHeader(t *testing.T, header http.Header) *SIOClient {
	t.Helper()
	c := ts.DialHeader(t, header)
	c.WriteRaw("40")
	ack := c.recvFrame(5 * time.Second)
	require.True(t, strings.HasPrefix(string(ack), "40{"), "connect ack: %s", ack)
	greet := c.Expect(account.EventMessage, 5*time.Second)
	require.Equal(t, account.MsgWelcome, greet.String(t))
	return c
}

func (c *SIOClient) readLoop() {
	for {
		_, data, err := c.Conn.ReadMessage()
		c.readCh <- readResult{data, err}
		if err != nil {
			return
		}
	}
}

// WriteRaw sends a raw Engine.IO frame.
func (c *SIOClient) WriteRaw(frame string) {
	c.t.Helper()
	require.NoError(c.t, c.Conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// Emit sends a Socket.IO event.
func (c *SIOClient) Emit(event string, payload any) {
	c.t.Helper()
	frame, err := player.EncodeEvent(event, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.Conn.WriteMessage(websocket.TextMessage, frame))
}

// recvFrame returns the next frame that is not a server ping. Pings are
// answered.
func (c *SIOClient) recvFrame(timeout time.Duration) []byte {
	c.t.Helper()
	data, err := c.RecvFrame(timeout)
	require.NoError(c.t, err, "WS recv failed")
	return data
}

// RecvFrame is recvFrame returning the error instead of failing the test.
func (c *SIOClient) RecvFrame(timeout time.Duration) ([]byte, error) {
	deadline := time.After(timeout)
	for {
		select {
		case res := <-c.readCh:
			if res.err != nil {
				return nil, res.err
			}
			if len(res.data) == 1 && res.data[0] == player.EnginePing {
				_ = c.Conn.WriteMessage(websocket.TextMessage, []byte{player.EnginePong})
				continue
			}
			return res.data, nil
		case <-deadline:
			return nil, fmt.Errorf("read timeout after %s", timeout)
		}
	}
}

// Recv returns the next Socket.IO event.
func (c *SIOClient) Recv(timeout time.Duration) (Event, error) {
	for {
		data, err := c.RecvFrame(timeout)
		if err != nil {
			return Event{}, err
		}
		pkt, err := player.DecodePacket(data)
		if err != nil {
			return Event{}, err
		}
		if pkt.Engine == player.EngineMessage && pkt.Socket == player.SocketDisconnect {
			return Event{}, errDisconnected
		}
		if pkt.Engine != player.EngineMessage || pkt.Socket != player.SocketEvent {
			continue
		}
		return Event{Name: pkt.Event, Payload: pkt.Payload}, nil
	}
}

var errDisconnected = fmt.Errorf("server disconnected the socket")

// Expect reads events until one named event arrives.
func (c *SIOClient) Expect(event string, timeout time.Duration) Event {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.t.Fatalf("timed out waiting for event %q", event)
		}
		ev, err := c.Recv(remaining)
		if err != nil {
			c.t.Fatalf("recv failed while waiting for %q: %v", event, err)
		}
		if ev.Name == event {
			return ev
		}
	}
}

// ExpectNone asserts that no event arrives within d.
func (c *SIOClient) ExpectNone(d time.Duration) {
	c.t.Helper()
	ev, err := c.Recv(d)
	if err == nil {
		c.t.Fatalf("unexpected event %q: %s", ev.Name, ev.Payload)
	}
}

// WaitClosed blocks until the server closes the socket.
func (c *SIOClient) WaitClosed(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("socket still open after %s", timeout)
		}
		if _, err := c.RecvFrame(remaining); err != nil {
			if strings.HasPrefix(err.Error(), "read timeout") {
				return err
			}
			return nil
		}
	}
}

// Close closes the WebSocket connection.
func (c *SIOClient) Close() {
	if c.closed.CompareAndSwap(false, true) {
		_ = c.Conn.Close()
	}
}

// --- Account helpers ---

// Create registers an account and returns its member number.
func (c *SIOClient) Create(t *testing.T, name, password string) uint32 {
	t.Helper()
	c.Emit(account.EventAccountCreate, map[string]string{
		"AccountName": name,
		"Password":    password,
		"Name":        name,
	})
	ev := c.Expect(account.EventCreationResponse, 5*time.Second)
	var resp struct {
		ServerAnswer string
		MemberNumber uint32
	}
	ev.Decode(t, &resp)
	require.Equal(t, account.MsgAccountCreated, resp.ServerAnswer, "payload: %s", ev.Payload)
	c.Expect(account.EventServerInfo, 5*time.Second)
	return resp.MemberNumber
}

// Login logs in and returns the LoginResponse payload.
func (c *SIOClient) Login(t *testing.T, name, password string) Event {
	t.Helper()
	c.Emit(account.EventAccountLogin, map[string]string{"AccountName": name, "Password": password})
	return c.Expect(account.EventLoginResponse, 5*time.Second)
}

var testCounter uint64

// UniqueName returns a short alphanumeric account name.
func UniqueName(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s%d%d", prefix, time.Now().UnixNano()%100000, n)
}
