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

type friendResult struct {
	Query  string
	Result []model.ServerFriendInfo
}

func TestQuery_OnlineFriends(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	env.seed(t, "player", "secret", 1, func(a *model.Account) { a.FriendList = []uint32{2, 3, 4} })
	// Mutual friend and owned by the player: listed twice.
	env.seed(t, "sub", "secret", 2, func(a *model.Account) {
		a.FriendList = []uint32{1}
		a.Ownership = &model.Ownership{MemberNumber: 1}
	})
	// One-sided friendship is not reported.
	env.seed(t, "stranger", "secret", 3, nil)
	// Mutual friend, not online.
	env.seed(t, "offline", "secret", 4, func(a *model.Account) { a.FriendList = []uint32{1} })

	ctx := context.Background()
	p := env.connect("p", "10.0.0.1")
	for _, name := range []string{"player", "sub", "stranger"} {
		s := p
		if name != "player" {
			s = env.connect(name, "10.0.0.2")
		}
		env.login(t, s, name, "secret")
		expectEvent(t, s, EventServerInfo)
	}

	env.svc.Query(ctx, p, &QueryRequest{Query: QueryOnlineFriends})
	var got friendResult
	require.NoError(t, json.Unmarshal(expectEvent(t, p, EventAccountQueryResult), &got))
	assert.Equal(t, QueryOnlineFriends, got.Query)
	assert.ElementsMatch(t, []model.ServerFriendInfo{
		{Type: FriendTypeSubmissive, MemberNumber: 2, MemberName: "sub"},
		{Type: FriendTypeFriend, MemberNumber: 2, MemberName: "sub"},
	}, got.Result)
}

func TestQuery_OnlineFriendsEmptyIsArray(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	env.seed(t, "player", "secret", 1, nil)
	p := env.connect("p", "10.0.0.1")
	env.login(t, p, "player", "secret")
	expectEvent(t, p, EventServerInfo)

	env.svc.Query(context.Background(), p, &QueryRequest{Query: QueryOnlineFriends})
	assert.JSONEq(t, `{"Query":"OnlineFriends","Result":[]}`, string(expectEvent(t, p, EventAccountQueryResult)))
}

func TestQuery_EmailStatus(t *testing.T) {
	store := &faultyStore{Store: testutil.SetupTestStore(t)}
	env := newTestEnv(t, store, Config{})
	env.seed(t, "player", "secret", 1, nil)
	p := env.connect("p", "10.0.0.1")
	env.login(t, p, "player", "secret")
	expectEvent(t, p, EventServerInfo)
	ctx := context.Background()

	// The probe looks at the "mail" key, which account documents never carry.
	env.svc.Query(ctx, p, &QueryRequest{Query: QueryEmailStatus})
	assert.JSONEq(t, `{"Query":"EmailStatus","Result":false}`, string(expectEvent(t, p, EventAccountQueryResult)))

	require.NoError(t, store.UpdateAccount(ctx, "PLAYER", map[string]any{"mail": "p@example.com"}))
	env.svc.Query(ctx, p, &QueryRequest{Query: QueryEmailStatus})
	assert.JSONEq(t, `{"Query":"EmailStatus","Result":true}`, string(expectEvent(t, p, EventAccountQueryResult)))

	store.emailErr = errors.New("timeout")
	env.svc.Query(ctx, p, &QueryRequest{Query: QueryEmailStatus})
	expectString(t, p, EventAccountQueryResult, MsgServerError)
}

func TestQuery_UnknownOrAnonymousIsSilent(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	env.seed(t, "player", "secret", 1, nil)
	anon := env.connect("anon", "10.0.0.1")
	env.svc.Query(context.Background(), anon, &QueryRequest{Query: QueryOnlineFriends})
	expectSilence(t, anon)

	p := env.connect("p", "10.0.0.1")
	env.login(t, p, "player", "secret")
	expectEvent(t, p, EventServerInfo)
	env.svc.Query(context.Background(), p, &QueryRequest{Query: "ChatRooms"})
	expectSilence(t, p)
}
