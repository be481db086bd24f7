package account

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/kasuganosora/bondageclub/server/model"
	"github.com/kasuganosora/bondageclub/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var testHasher = NewBcryptHasher(bcrypt.MinCost)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// faultyStore injects errors in front of a real store.
type faultyStore struct {
	Store
	findErr   error
	insertErr error
	updateErr error
	emailErr  error
}

func (f *faultyStore) FindAccount(ctx context.Context, name string) (*model.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Store.FindAccount(ctx, name)
}

func (f *faultyStore) InsertAccount(ctx context.Context, acc *model.Account) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.Store.InsertAccount(ctx, acc)
}

func (f *faultyStore) UpdateAccount(ctx context.Context, name string, set map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.Store.UpdateAccount(ctx, name, set)
}

func (f *faultyStore) HasEmail(ctx context.Context, name string) (bool, error) {
	if f.emailErr != nil {
		return false, f.emailErr
	}
	return f.Store.HasEmail(ctx, name)
}

type testEnv struct {
	svc   *Service
	store Store
	sm    *player.SessionManager
	alloc *Allocator
	clock *fakeClock
}

func newTestEnv(t *testing.T, store Store, cfg Config) *testEnv {
	t.Helper()
	if store == nil {
		store = testutil.SetupTestStore(t)
	}
	if cfg.MaxIPAccountPerDay == 0 {
		cfg.MaxIPAccountPerDay = 100
	}
	if cfg.MaxIPAccountPerHour == 0 {
		cfg.MaxIPAccountPerHour = 100
	}
	if cfg.LoginInterval == 0 {
		cfg.LoginInterval = time.Millisecond
	}
	alloc, err := BootstrapAllocator(context.Background(), store)
	require.NoError(t, err)
	sm := player.NewSessionManager(zap.NewNop())
	clock := newFakeClock()
	svc := NewService(store, sm, alloc, cfg, zap.NewNop(), WithClock(clock.Now), WithHasher(testHasher))
	return &testEnv{svc: svc, store: store, sm: sm, alloc: alloc, clock: clock}
}

// connect registers a fresh socket without a network connection; frames stay
// on SendChan for the test to read.
func (e *testEnv) connect(id, ip string) *player.Session {
	s := player.NewSession(id, ip+":50000", ip, nil, zap.NewNop())
	e.sm.Register(s)
	return s
}

// seed stores an account directly, bypassing creation.
func (e *testEnv) seed(t *testing.T, name, password string, member uint32, mutate func(*model.Account)) {
	t.Helper()
	hash, err := testHasher.Hash(strings.ToUpper(password))
	require.NoError(t, err)
	acc := &model.Account{
		AccountName:    strings.ToUpper(name),
		Name:           name,
		Password:       hash,
		Email:          name + "@example.com",
		MemberNumber:   member,
		ItemPermission: model.DefaultItemPermission,
		Money:          model.DefaultMoney,
		FriendList:     []uint32{},
		WhiteList:      []uint32{},
		BlackList:      []uint32{},
	}
	if mutate != nil {
		mutate(acc)
	}
	require.NoError(t, e.store.InsertAccount(context.Background(), acc))
}

// login runs a login through the queue and waits for its LoginResponse.
func (e *testEnv) login(t *testing.T, s *player.Session, name, password string) json.RawMessage {
	t.Helper()
	e.svc.Handle(context.Background(), s, &LoginRequest{AccountName: name, Password: password})
	return expectEvent(t, s, EventLoginResponse)
}

func nextPacket(t *testing.T, s *player.Session) player.Packet {
	t.Helper()
	select {
	case raw := <-s.SendChan:
		p, err := player.DecodePacket(raw)
		require.NoError(t, err)
		return p
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a frame on %s", s.ID)
		return player.Packet{}
	}
}

func expectEvent(t *testing.T, s *player.Session, event string) json.RawMessage {
	t.Helper()
	p := nextPacket(t, s)
	require.Equal(t, event, p.Event, "payload: %s", p.Payload)
	return p.Payload
}

func expectString(t *testing.T, s *player.Session, event, want string) {
	t.Helper()
	var got string
	require.NoError(t, json.Unmarshal(expectEvent(t, s, event), &got))
	require.Equal(t, want, got)
}

func expectSilence(t *testing.T, s *player.Session) {
	t.Helper()
	select {
	case raw := <-s.SendChan:
		t.Fatalf("unexpected frame on %s: %s", s.ID, raw)
	case <-time.After(50 * time.Millisecond):
	}
}
