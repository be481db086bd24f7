package account

import (
	"context"
	"errors"
	"reflect"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/kasuganosora/bondageclub/server/model"
	"go.uber.org/zap"
)

type loginTicket struct {
	sess        *player.Session
	accountName string // uppercased
	password    string
}

// LoginQueue holds queued logins in arrival order. The ticket slice and the
// pending set are guarded by one lock and always hold the same socket ids.
type LoginQueue struct {
	mu      sync.Mutex
	tickets []*loginTicket
	pending map[string]struct{}
}

func NewLoginQueue() *LoginQueue {
	return &LoginQueue{pending: make(map[string]struct{})}
}

// push appends t unless its socket already waits. start reports whether the
// queue was empty, meaning no runner is active.
func (q *LoginQueue) push(t *loginTicket) (length int, start, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.pending[t.sess.ID]; dup {
		return len(q.tickets), false, false
	}
	start = len(q.tickets) == 0
	q.tickets = append(q.tickets, t)
	q.pending[t.sess.ID] = struct{}{}
	return len(q.tickets), start, true
}

// head drops tickets whose socket went away and returns the first live one,
// or nil once the queue is empty.
func (q *LoginQueue) head() *loginTicket {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.tickets) > 0 {
		t := q.tickets[0]
		if t.sess.Connected() {
			return t
		}
		q.removeHead()
	}
	return nil
}

// pop removes the processed head and returns how many tickets remain.
func (q *LoginQueue) pop() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tickets) > 0 {
		q.removeHead()
	}
	return len(q.tickets)
}

func (q *LoginQueue) removeHead() {
	delete(q.pending, q.tickets[0].sess.ID)
	q.tickets[0] = nil
	q.tickets = q.tickets[1:]
}

// Len returns the number of queued logins.
func (q *LoginQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tickets)
}

// Login validates the credentials' shape and queues the attempt. Shape errors
// are answered on CreationResponse, which is what clients listen for.
func (s *Service) Login(sess *player.Session, req *LoginRequest) {
	if !ValidAccountName(req.AccountName) {
		sess.Emit(EventCreationResponse, MsgInvalidAccountName)
		return
	}
	if !ValidPassword(req.Password) {
		sess.Emit(EventCreationResponse, MsgInvalidPassword)
		return
	}

	length, start, ok := s.queue.push(&loginTicket{
		sess:        sess,
		accountName: strings.ToUpper(req.AccountName),
		password:    req.Password,
	})
	if !ok {
		return
	}
	if length > s.cfg.LoginQueueNotice {
		sess.Emit(EventLoginQueue, length)
	}
	if start {
		go s.runLoginQueue()
	}
}

// runLoginQueue processes tickets one at a time until the queue drains.
// Only one runner exists: a new one starts only when push finds the queue empty.
func (s *Service) runLoginQueue() {
	for {
		t := s.queue.head()
		if t == nil {
			return
		}
		s.processLoginSafe(t)
		if s.queue.pop() == 0 {
			return
		}
		time.Sleep(s.cfg.LoginInterval)
	}
}

func (s *Service) processLoginSafe(t *loginTicket) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in login",
				zap.String("socket_id", t.sess.ID),
				zap.Any("recover", r),
				zap.String("stack", string(debug.Stack())))
		}
	}()
	s.processLogin(context.Background(), t)
}

func (s *Service) processLogin(ctx context.Context, t *loginTicket) {
	sess := t.sess
	reply := func(v any) { sess.Emit(EventLoginResponse, v) }

	acc, err := s.store.FindAccount(ctx, t.accountName)
	if !sess.Connected() {
		return
	}
	if errors.Is(err, model.ErrNotFound) {
		reply(MsgInvalidNamePassword)
		return
	}
	if err != nil {
		s.logger.Error("login lookup failed", append(s.sessionFields(sess), zap.Error(err))...)
		reply(MsgLoginServerError)
		return
	}

	ok, err := s.hasher.Verify(acc.Password, strings.ToUpper(t.password))
	if !sess.Connected() {
		return
	}
	if err != nil {
		s.logger.Error("password verify failed", append(s.sessionFields(sess), zap.Error(err))...)
		reply(MsgLoginServerError)
		return
	}
	if !ok {
		reply(MsgInvalidNamePassword)
		return
	}

	if old := s.sm.ByMemberNumber(acc.MemberNumber); old != nil && old != sess {
		old.Emit(EventForceDisconnect, MsgDuplicatedLogin)
		old.Close()
		s.logger.Info("duplicate login evicted",
			zap.Uint32("member_number", acc.MemberNumber),
			zap.String("old_socket_id", old.ID),
			zap.String("socket_id", sess.ID))
	}

	acc.LastLogin = Millis(s.now())
	if err := s.store.UpdateAccount(ctx, acc.AccountName, map[string]any{"LastLogin": acc.LastLogin}); err != nil {
		s.logger.Warn("last login update failed", append(s.sessionFields(sess), zap.Error(err))...)
	}
	if !sess.Connected() {
		return
	}

	acc.Environment = model.EnvironmentProd
	acc.Lovership = lovershipList(acc.Lovership)
	sess.Attach(acc)

	out := acc.Sanitized()
	if s.cfg.ExposeCredentials {
		out = acc.Clone()
	}
	reply(out)
	s.SendServerInfo(sess)
	s.logger.Info("account logged in", append(s.sessionFields(sess), zap.String("account_name", acc.AccountName))...)
}

// lovershipList normalises the stored Lovership value to a list; older
// documents hold a single record.
func lovershipList(v any) any {
	if v == nil {
		return []any{}
	}
	// Store drivers may hand back their own named slice types.
	if reflect.ValueOf(v).Kind() == reflect.Slice {
		return v
	}
	return []any{v}
}
