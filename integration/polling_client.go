package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kasuganosora/bondageclub/server/api"
	"github.com/kasuganosora/bondageclub/server/game/account"
	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/stretchr/testify/require"
)

// PollClient is a minimal Socket.IO v5 client over HTTP long-polling.
type PollClient struct {
	SID     string
	ts      *TestServer
	t       *testing.T
	pending [][]byte
}

// PollURL is the polling endpoint, with sid when it is not empty.
func (ts *TestServer) PollURL(sid string) string {
	u := ts.URL + api.SocketPath + "?EIO=4&transport=polling"
	if sid != "" {
		u += "&sid=" + sid
	}
	return u
}

// OpenPolling performs the polling handshake without joining the namespace.
func (ts *TestServer) OpenPolling(t *testing.T) *PollClient {
	t.Helper()
	resp := ts.Get(t, strings.TrimPrefix(ts.PollURL(""), ts.URL), "")
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "handshake: %s", body)
	require.Equal(t, byte(player.EngineOpen), body[0], "handshake: %s", body)

	var hs player.OpenPayload
	require.NoError(t, json.Unmarshal(body[1:], &hs))
	return &PollClient{SID: hs.SID, ts: ts, t: t}
}

// ConnectPolling opens a polling session, joins the namespace and consumes
// the greeting.
func (ts *TestServer) ConnectPolling(t *testing.T) *PollClient {
	t.Helper()
	p := ts.OpenPolling(t)
	p.Post("40")
	greet := p.Expect(account.EventMessage, 5*time.Second)
	require.Equal(t, account.MsgWelcome, greet.String(t))
	return p
}

// Post sends frames in one request body.
func (p *PollClient) Post(frames ...string) {
	p.t.Helper()
	body := strings.Join(frames, string(player.RecordSeparator))
	resp, err := http.Post(p.ts.PollURL(p.SID), "text/plain;charset=UTF-8", strings.NewReader(body))
	require.NoError(p.t, err)
	out, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(p.t, http.StatusOK, resp.StatusCode, "post: %s", out)
	require.Equal(p.t, "ok", string(out))
}

// Emit sends a Socket.IO event.
func (p *PollClient) Emit(event string, payload any) {
	p.t.Helper()
	frame, err := player.EncodeEvent(event, payload)
	require.NoError(p.t, err)
	p.Post(string(frame))
}

func (p *PollClient) poll(timeout time.Duration) error {
	client := http.Client{Timeout: timeout}
	resp, err := client.Get(p.ts.PollURL(p.SID))
	if err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("poll status %d: %s", resp.StatusCode, body)
	}
	p.pending = append(p.pending, bytes.Split(body, []byte{player.RecordSeparator})...)
	return nil
}

// Recv returns the next Socket.IO event. Server pings are answered.
func (p *PollClient) Recv(timeout time.Duration) (Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		for len(p.pending) > 0 {
			frame := p.pending[0]
			p.pending = p.pending[1:]
			pkt, err := player.DecodePacket(frame)
			if err != nil {
				return Event{}, err
			}
			switch {
			case pkt.Engine == player.EnginePing:
				p.Post(string(player.EnginePong))
			case pkt.Engine == player.EngineClose:
				return Event{}, errDisconnected
			case pkt.Engine == player.EngineMessage && pkt.Socket == player.SocketDisconnect:
				return Event{}, errDisconnected
			case pkt.Engine == player.EngineMessage && pkt.Socket == player.SocketEvent:
				return Event{Name: pkt.Event, Payload: pkt.Payload}, nil
			}
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Event{}, fmt.Errorf("read timeout after %s", timeout)
		}
		if err := p.poll(remaining); err != nil {
			return Event{}, err
		}
	}
}

// Expect reads events until one named event arrives.
func (p *PollClient) Expect(event string, timeout time.Duration) Event {
	p.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.t.Fatalf("timed out waiting for event %q", event)
		}
		ev, err := p.Recv(remaining)
		if err != nil {
			p.t.Fatalf("recv failed while waiting for %q: %v", event, err)
		}
		if ev.Name == event {
			return ev
		}
	}
}
