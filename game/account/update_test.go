package account

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kasuganosora/bondageclub/server/model"
	"github.com/kasuganosora/bondageclub/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeUpdate(t *testing.T, payload string) *UpdateRequest {
	t.Helper()
	req, err := DecodeRequest(EventAccountUpdate, json.RawMessage(payload))
	require.NoError(t, err)
	return req.(*UpdateRequest)
}

func TestUpdate_AppliesWhitelistedFields(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	env.seed(t, "alice", "secret", 1, func(a *model.Account) { a.FriendList = []uint32{7} })
	s := env.connect("s", "10.0.0.1")
	env.login(t, s, "alice", "secret")
	ctx := context.Background()

	env.svc.Update(ctx, s, decodeUpdate(t, `{
		"Name": "Lady",
		"FriendList": [2, 3, 2],
		"Ownership": {"Name": "Bob", "MemberNumber": 2, "Stage": 1, "Start": 100},
		"Appearance": [{"Group": "Hat", "Color": "#fff"}],
		"MapData": {"X": 1},
		"ChatRoom": {"Name": "lobby"},
		"Money": 99999
	}`))

	bound := s.Account()
	require.NotNil(t, bound)
	assert.Equal(t, "Lady", bound.Name)
	assert.Equal(t, []uint32{2, 3}, bound.FriendList, "lists are replaced and deduplicated")
	assert.Equal(t, &model.Ownership{Name: "Bob", MemberNumber: 2, Stage: 1, Start: 100}, bound.Ownership)
	assert.Equal(t, map[string]any{"X": int64(1)}, bound.MapData)
	assert.Equal(t, model.DefaultMoney, bound.Money, "fields outside the whitelist are ignored")

	stored, err := env.store.FindAccount(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "Lady", stored.Name)
	assert.Equal(t, []uint32{2, 3}, stored.FriendList)
	assert.True(t, stored.OwnedBy(2))
	assert.Equal(t, []any{map[string]any{"Group": "Hat", "Color": "#fff"}}, stored.Appearance)
	assert.Nil(t, stored.MapData, "MapData stays in memory")
	assert.Equal(t, model.DefaultMoney, stored.Money)
}

func TestUpdate_WithoutSessionIsSilent(t *testing.T) {
	store := &faultyStore{Store: testutil.SetupTestStore(t), updateErr: errors.New("must not be called")}
	env := newTestEnv(t, store, Config{})
	s := env.connect("s", "10.0.0.1")

	env.svc.Update(context.Background(), s, decodeUpdate(t, `{"Title":"x"}`))
	expectSilence(t, s)
}

func TestUpdate_StoreErrorKeepsMemoryChange(t *testing.T) {
	store := &faultyStore{Store: testutil.SetupTestStore(t)}
	env := newTestEnv(t, store, Config{})
	env.seed(t, "alice", "secret", 1, nil)
	s := env.connect("s", "10.0.0.1")
	env.login(t, s, "alice", "secret")
	expectEvent(t, s, EventServerInfo)

	store.updateErr = errors.New("timeout")
	env.svc.Update(context.Background(), s, decodeUpdate(t, `{"Description":"hi"}`))
	assert.Equal(t, "hi", s.Account().Description)
	expectSilence(t, s)
}

// setRecorder captures the field sets written by UpdateAccount.
type setRecorder struct {
	Store
	sets []map[string]any
}

func (r *setRecorder) UpdateAccount(ctx context.Context, name string, set map[string]any) error {
	r.sets = append(r.sets, set)
	return r.Store.UpdateAccount(ctx, name, set)
}

func TestUpdate_PartialKeepsOtherFields(t *testing.T) {
	store := &setRecorder{Store: testutil.SetupTestStore(t)}
	env := newTestEnv(t, store, Config{})
	env.seed(t, "alice", "secret", 1, func(a *model.Account) { a.Description = "x" })
	s := env.connect("s", "10.0.0.1")
	env.login(t, s, "alice", "secret")
	store.sets = nil

	env.svc.Update(context.Background(), s, decodeUpdate(t, `{"Title":"t"}`))

	require.Len(t, store.sets, 1)
	assert.Equal(t, map[string]any{"Title": "t"}, store.sets[0])
	stored, err := env.store.FindAccount(context.Background(), "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "x", stored.Description)
	assert.Equal(t, "t", stored.Title)
}
