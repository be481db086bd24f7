// Package account implements the account lifecycle served over the socket:
// creation, the serialised login queue, profile updates, beeps and directory
// queries.
package account

import (
	"context"
	"time"

	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/kasuganosora/bondageclub/server/model"
	"go.uber.org/zap"
)

// Store is the subset of the account collection the service needs.
type Store interface {
	MemberNumberSource
	FindAccount(ctx context.Context, accountName string) (*model.Account, error)
	HasEmail(ctx context.Context, accountName string) (bool, error)
	InsertAccount(ctx context.Context, acc *model.Account) error
	UpdateAccount(ctx context.Context, accountName string, set map[string]any) error
}

// Config tunes the service.
type Config struct {
	MaxIPAccountPerDay  int
	MaxIPAccountPerHour int
	// ExposeCredentials keeps Password and Email in LoginResponse.
	ExposeCredentials bool
	// LoginInterval is the pause between two queued logins.
	LoginInterval time.Duration
	// LoginQueueNotice is the queue length above which LoginQueue is sent.
	LoginQueueNotice int
}

const (
	defaultLoginInterval    = 50 * time.Millisecond
	defaultLoginQueueNotice = 16
)

// Service owns the process-wide account state. Locks are always taken in the
// order allocator, login queue, creation records.
type Service struct {
	store   Store
	sm      *player.SessionManager
	alloc   *Allocator
	limiter *CreationLimiter
	queue   *LoginQueue
	hasher  Hasher
	now     Clock
	cfg     Config
	logger  *zap.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(s *Service) { s.now = c } }

// WithHasher replaces the bcrypt hasher.
func WithHasher(h Hasher) Option { return func(s *Service) { s.hasher = h } }

// NewService wires the account service.
func NewService(store Store, sm *player.SessionManager, alloc *Allocator, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	if cfg.LoginInterval <= 0 {
		cfg.LoginInterval = defaultLoginInterval
	}
	if cfg.LoginQueueNotice <= 0 {
		cfg.LoginQueueNotice = defaultLoginQueueNotice
	}
	s := &Service{
		store:  store,
		sm:     sm,
		alloc:  alloc,
		queue:  NewLoginQueue(),
		hasher: NewBcryptHasher(HashCost),
		now:    time.Now,
		cfg:    cfg,
		logger: logger,
	}
	for _, o := range opts {
		o(s)
	}
	s.limiter = NewCreationLimiter(cfg.MaxIPAccountPerDay, cfg.MaxIPAccountPerHour, s.now)
	return s
}

// Handle dispatches a decoded request from sess.
func (s *Service) Handle(ctx context.Context, sess *player.Session, req Request) {
	switch r := req.(type) {
	case *CreateRequest:
		s.Create(ctx, sess, r)
	case *LoginRequest:
		s.Login(sess, r)
	case *UpdateRequest:
		s.Update(ctx, sess, r)
	case *BeepRequest:
		s.Beep(sess, r)
	case *QueryRequest:
		s.Query(ctx, sess, r)
	default:
		s.logger.Warn("unhandled account request", zap.String("event", req.Event()))
	}
}

// Welcome greets a freshly connected socket.
func (s *Service) Welcome(sess *player.Session) {
	sess.Emit(EventMessage, MsgWelcome)
}

// ServerInfo reports the current time and the number of connected sockets.
func (s *Service) ServerInfo() model.ServerInfo {
	return model.ServerInfo{
		Time:          Millis(s.now()),
		OnlinePlayers: s.sm.Count(),
	}
}

// SendServerInfo emits ServerInfo to one socket.
func (s *Service) SendServerInfo(sess *player.Session) {
	sess.Emit(EventServerInfo, s.ServerInfo())
}

// BroadcastServerInfo emits ServerInfo to every connected socket.
func (s *Service) BroadcastServerInfo() {
	s.sm.Broadcast(EventServerInfo, s.ServerInfo())
}

// Stats is a point-in-time view used by the admin endpoints.
type Stats struct {
	OnlineSockets    int    `json:"online_sockets"`
	OnlineAccounts   int    `json:"online_accounts"`
	LoginQueue       int    `json:"login_queue"`
	NextMemberNumber uint32 `json:"next_member_number"`
	CreationRecords  int    `json:"creation_records"`
}

func (s *Service) Stats() Stats {
	return Stats{
		OnlineSockets:    s.sm.Count(),
		OnlineAccounts:   len(s.sm.Online()),
		LoginQueue:       s.queue.Len(),
		NextMemberNumber: s.alloc.Next(),
		CreationRecords:  s.limiter.Len(),
	}
}

func (s *Service) sessionFields(sess *player.Session) []zap.Field {
	fields := []zap.Field{zap.String("socket_id", sess.ID), zap.String("addr", sess.RemoteAddr)}
	if n, ok := sess.MemberNumber(); ok {
		fields = append(fields, zap.Uint32("member_number", n))
	}
	return fields
}
