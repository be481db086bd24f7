package account

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest(EventAccountCreate, json.RawMessage(`{"AccountName":"alice","Password":"pw","Name":"Alice"}`))
	require.NoError(t, err)
	assert.Equal(t, &CreateRequest{AccountName: "alice", Password: "pw", Name: "Alice"}, req)

	req, err = DecodeRequest(EventAccountBeep, json.RawMessage(`{"MemberNumber":7,"BeepType":"Leash","Message":{"x":1}}`))
	require.NoError(t, err)
	beep := req.(*BeepRequest)
	assert.Equal(t, uint32(7), beep.MemberNumber)
	require.NotNil(t, beep.BeepType)
	assert.Equal(t, BeepTypeLeash, *beep.BeepType)
	assert.JSONEq(t, `{"x":1}`, string(beep.Message))

	req, err = DecodeRequest(EventAccountUpdate, json.RawMessage(`{"Title":"t","Unknown":1,"FriendList":[1,2]}`))
	require.NoError(t, err)
	upd := req.(*UpdateRequest)
	require.NotNil(t, upd.Title)
	assert.Equal(t, "t", *upd.Title)
	assert.Equal(t, []uint32{1, 2}, *upd.FriendList)
	assert.Nil(t, upd.Name)
}

func TestDecodeRequest_Invalid(t *testing.T) {
	cases := map[string]struct {
		event   string
		payload string
	}{
		"not an object":       {EventAccountLogin, `"alice"`},
		"missing payload":     {EventAccountQuery, ``},
		"missing password":    {EventAccountLogin, `{"AccountName":"alice"}`},
		"missing name":        {EventAccountCreate, `{"AccountName":"a","Password":"b"}`},
		"wrong type":          {EventAccountBeep, `{"MemberNumber":"seven"}`},
		"negative member":     {EventAccountBeep, `{"MemberNumber":-1}`},
		"missing query":       {EventAccountQuery, `{}`},
		"bad update list":     {EventAccountUpdate, `{"FriendList":"x"}`},
		"unknown event":       {"ChatRoomJoin", `{}`},
		"permission overflow": {EventAccountUpdate, `{"ItemPermission":300}`},
		"lowercase login":     {EventAccountLogin, `{"accountname":"alice","password":"pw"}`},
		"camel case create":   {EventAccountCreate, `{"accountName":"a","Password":"b","Name":"c"}`},
		"upper case beep":     {EventAccountBeep, `{"MEMBERNUMBER":7}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRequest(tc.event, json.RawMessage(tc.payload))
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestDecodeRequest_KeysMatchExactly(t *testing.T) {
	req, err := DecodeRequest(EventAccountLogin, json.RawMessage(`{"accountname":"bob","AccountName":"alice","Password":"pw"}`))
	require.NoError(t, err)
	assert.Equal(t, &LoginRequest{AccountName: "alice", Password: "pw"}, req)

	req, err = DecodeRequest(EventAccountUpdate, json.RawMessage(
		`{"title":"ignored","Description":"d","Ownership":{"name":"x","MemberNumber":2}}`))
	require.NoError(t, err)
	upd := req.(*UpdateRequest)
	assert.Nil(t, upd.Title)
	require.NotNil(t, upd.Description)
	assert.Equal(t, "d", *upd.Description)
	require.NotNil(t, upd.Ownership)
	assert.Equal(t, "", upd.Ownership.Name)
	assert.Equal(t, uint32(2), upd.Ownership.MemberNumber)
}

func TestErrorEvent(t *testing.T) {
	assert.Equal(t, EventCreationResponse, ErrorEvent(EventAccountCreate))
	for _, ev := range []string{EventAccountLogin, EventAccountUpdate, EventAccountBeep, EventAccountQuery} {
		assert.Equal(t, EventLoginResponse, ErrorEvent(ev))
	}
}

func TestDecodeOpaque_NumbersStayIntegral(t *testing.T) {
	v, err := decodeOpaque(json.RawMessage(`{"a":[1,2.5,{"b":9007199254740993}]}`))
	require.NoError(t, err)
	m := v.(map[string]any)
	list := m["a"].([]any)
	assert.Equal(t, int64(1), list[0])
	assert.Equal(t, 2.5, list[1])
	assert.Equal(t, int64(9007199254740993), list[2].(map[string]any)["b"])
}
