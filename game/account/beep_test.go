package account

import (
	"encoding/json"
	"testing"

	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/kasuganosora/bondageclub/server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// beepPair logs in an owner (member 1) and a target (member 2) whose friend
// list and ownership are set by mutate.
func beepPair(t *testing.T, mutate func(*model.Account)) (env *testEnv, owner, target *player.Session) {
	t.Helper()
	env = newTestEnv(t, nil, Config{})
	env.seed(t, "owner", "secret", 1, nil)
	env.seed(t, "target", "secret", 2, mutate)
	owner = env.connect("owner", "10.0.0.1")
	target = env.connect("target", "10.0.0.2")
	env.login(t, owner, "owner", "secret")
	expectEvent(t, owner, EventServerInfo)
	env.login(t, target, "target", "secret")
	expectEvent(t, target, EventServerInfo)
	return env, owner, target
}

func ownedFriend(a *model.Account) {
	a.FriendList = []uint32{1}
	a.Ownership = &model.Ownership{Name: "owner", MemberNumber: 1}
}

func TestBeep_Relayed(t *testing.T) {
	env, owner, target := beepPair(t, ownedFriend)

	env.svc.Beep(owner, &BeepRequest{MemberNumber: 2, BeepType: strPtr(BeepTypeLeash), Message: json.RawMessage(`"come"`)})

	var got map[string]any
	require.NoError(t, json.Unmarshal(expectEvent(t, target, EventAccountBeep), &got))
	assert.Equal(t, map[string]any{
		"MemberNumber": float64(1),
		"MemberName":   "owner",
		"BeepType":     "Leash",
		"Message":      "come",
	}, got)
	expectSilence(t, owner)
}

func TestBeep_UntypedWithoutMessage(t *testing.T) {
	env, owner, target := beepPair(t, ownedFriend)

	env.svc.Beep(owner, &BeepRequest{MemberNumber: 2})
	var got model.Beep
	require.NoError(t, json.Unmarshal(expectEvent(t, target, EventAccountBeep), &got))
	assert.Nil(t, got.BeepType)
	assert.Equal(t, uint32(1), got.MemberNumber)
}

func TestBeep_Dropped(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		env, owner, target := beepPair(t, ownedFriend)
		env.svc.Beep(owner, &BeepRequest{MemberNumber: 2, BeepType: strPtr("Poke")})
		expectSilence(t, target)
	})
	t.Run("not a friend", func(t *testing.T) {
		env, owner, target := beepPair(t, func(a *model.Account) {
			a.Ownership = &model.Ownership{MemberNumber: 1}
		})
		env.svc.Beep(owner, &BeepRequest{MemberNumber: 2})
		expectSilence(t, target)
	})
	t.Run("not the owner", func(t *testing.T) {
		env, owner, target := beepPair(t, func(a *model.Account) { a.FriendList = []uint32{1} })
		env.svc.Beep(owner, &BeepRequest{MemberNumber: 2})
		expectSilence(t, target)
	})
	t.Run("owned by someone else", func(t *testing.T) {
		env, owner, target := beepPair(t, func(a *model.Account) {
			a.FriendList = []uint32{1}
			a.Ownership = &model.Ownership{Name: "other", MemberNumber: 99}
		})
		env.svc.Beep(owner, &BeepRequest{MemberNumber: 2, BeepType: strPtr(BeepTypeLeash)})
		expectSilence(t, target)
	})
	t.Run("target offline", func(t *testing.T) {
		env, owner, target := beepPair(t, ownedFriend)
		target.Close()
		env.svc.Beep(owner, &BeepRequest{MemberNumber: 2})
		expectSilence(t, owner)
	})
	t.Run("caller not logged in", func(t *testing.T) {
		env, _, target := beepPair(t, ownedFriend)
		anon := env.connect("anon", "10.0.0.3")
		env.svc.Beep(anon, &BeepRequest{MemberNumber: 2})
		expectSilence(t, target)
	})
}
