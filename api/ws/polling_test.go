package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pollContext(method, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/socket.io/?EIO=4&transport=polling&sid=s", strings.NewReader(body))
	return c, w
}

func TestPollTransport_CollectBatchesQueuedFrames(t *testing.T) {
	p := newPollTransport(newSession("a"))
	p.sess.SendRaw([]byte("42[\"a\"]"))
	p.sess.SendRaw([]byte("42[\"b\"]"))

	frames, closed := p.collect(context.Background())
	assert.False(t, closed)
	assert.Equal(t, [][]byte{[]byte("42[\"a\"]"), []byte("42[\"b\"]")}, frames)
}

func TestPollTransport_CollectDrainsBeforeReportingClose(t *testing.T) {
	p := newPollTransport(newSession("a"))
	p.sess.SendRaw([]byte("42[\"bye\"]"))
	p.sess.Close()

	frames, closed := p.collect(context.Background())
	assert.True(t, closed)
	assert.Equal(t, [][]byte{[]byte("42[\"bye\"]")}, frames)
}

func TestPollTransport_CollectStopsWhenRequestEnds(t *testing.T) {
	p := newPollTransport(newSession("a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames, closed := p.collect(ctx)
	assert.Nil(t, frames)
	assert.False(t, closed)
}

func TestPollTransport_GetJoinsFrames(t *testing.T) {
	p := newPollTransport(newSession("a"))
	p.sess.SendRaw([]byte("2"))
	p.sess.SendRaw([]byte("42[\"x\"]"))

	c, w := pollContext(http.MethodGet, "")
	p.serveGet(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2\x1e42[\"x\"]", w.Body.String())
	assert.False(t, p.getting.Load())
}

func TestPollTransport_GetAfterCloseEndsSession(t *testing.T) {
	p := newPollTransport(newSession("a"))
	p.sess.SendRaw([]byte("42[\"ForceDisconnect\"]"))
	p.sess.Close()

	c, w := pollContext(http.MethodGet, "")
	p.serveGet(c)
	assert.Equal(t, "42[\"ForceDisconnect\"]\x1e41\x1e1", w.Body.String())
	select {
	case <-p.flushed:
	default:
		t.Fatal("flushed not signalled")
	}
}

func TestPollTransport_OverlappingGetClosesSession(t *testing.T) {
	p := newPollTransport(newSession("a"))
	p.getting.Store(true)

	c, w := pollContext(http.MethodGet, "")
	p.serveGet(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":3,"message":"Bad request"}`, w.Body.String())
	assert.True(t, p.sess.IsClosed())
}

func TestPollTransport_PostFeedsReadLoop(t *testing.T) {
	p := newPollTransport(newSession("a"))

	c, w := pollContext(http.MethodPost, "3\x1e42[\"AccountQuery\",{}]")
	p.servePost(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	deadline := time.Now().Add(time.Second)
	first, err := p.Next(deadline)
	require.NoError(t, err)
	assert.Equal(t, "3", string(first))
	second, err := p.Next(deadline)
	require.NoError(t, err)
	assert.Equal(t, "42[\"AccountQuery\",{}]", string(second))
}

func TestPollTransport_PostTooLargeClosesSession(t *testing.T) {
	p := newPollTransport(newSession("a"))

	c, w := pollContext(http.MethodPost, "4"+strings.Repeat("x", player.MaxPayload))
	p.servePost(c)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.True(t, p.sess.IsClosed())
}

func TestPollTransport_NextErrors(t *testing.T) {
	p := newPollTransport(newSession("a"))
	_, err := p.Next(time.Now().Add(10 * time.Millisecond))
	assert.ErrorIs(t, err, errPollTimeout)

	p.sess.Close()
	_, err = p.Next(time.Now().Add(time.Second))
	assert.ErrorIs(t, err, errPollClosed)
}
