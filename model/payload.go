package model

import (
	"encoding/json"
	"errors"
)

// Store sentinels. Drivers map their own errors onto these.
var (
	ErrNotFound  = errors.New("account not found")
	ErrDuplicate = errors.New("account already exists")
)

// CreationSuccess is the CreationResponse payload for a new account.
type CreationSuccess struct {
	ServerAnswer string `json:"ServerAnswer"`
	OnlineID     string `json:"OnlineID"`
	MemberNumber uint32 `json:"MemberNumber"`
}

// ServerInfo is broadcast on login and periodically.
type ServerInfo struct {
	Time          int64 `json:"Time"`
	OnlinePlayers int   `json:"OnlinePlayers"`
}

// Beep is relayed to the target of an AccountBeep.
type Beep struct {
	MemberNumber uint32          `json:"MemberNumber"`
	MemberName   string          `json:"MemberName"`
	BeepType     *string         `json:"BeepType"`
	Message      json.RawMessage `json:"Message"`
}

// ServerFriendInfo is one OnlineFriends entry.
type ServerFriendInfo struct {
	Type         string `json:"Type"`
	MemberNumber uint32 `json:"MemberNumber"`
	MemberName   string `json:"MemberName"`
}

// QueryResult answers an AccountQuery.
type QueryResult struct {
	Query  string `json:"Query"`
	Result any    `json:"Result"`
}
