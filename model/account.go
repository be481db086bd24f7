package model

import "slices"

// Default values for freshly created accounts.
const (
	DefaultItemPermission uint8  = 2
	DefaultMoney          uint32 = 100
	EnvironmentProd              = "PROD"
)

// Ownership links a submissive account to its owner.
type Ownership struct {
	Name         string `json:"Name" bson:"Name"`
	MemberNumber uint32 `json:"MemberNumber" bson:"MemberNumber"`
	Stage        uint8  `json:"Stage" bson:"Stage"`
	Start        int64  `json:"Start" bson:"Start"`
}

// Account is the persisted player document. Keys are PascalCase both on the
// wire and in the store. Fields typed any hold client payloads that the server
// stores and relays without interpreting them.
type Account struct {
	ID             string `json:"ID,omitempty" bson:"-"` // socket id while online
	AccountName    string `json:"AccountName" bson:"AccountName"`
	Name           string `json:"Name" bson:"Name"`
	Password       string `json:"Password,omitempty" bson:"Password"`
	Email          string `json:"Email,omitempty" bson:"Email"`
	MemberNumber   uint32 `json:"MemberNumber" bson:"MemberNumber"`
	ItemPermission uint8  `json:"ItemPermission" bson:"ItemPermission"`
	Money          uint32 `json:"Money" bson:"Money"`
	Creation       int64  `json:"Creation" bson:"Creation"`
	LastLogin      int64  `json:"LastLogin" bson:"LastLogin"`
	Environment    string `json:"Environment" bson:"Environment"`

	FriendList []uint32 `json:"FriendList" bson:"FriendList"`
	WhiteList  []uint32 `json:"WhiteList" bson:"WhiteList"`
	BlackList  []uint32 `json:"BlackList" bson:"BlackList"`

	Ownership *Ownership `json:"Ownership,omitempty" bson:"Ownership,omitempty"`
	Lovership any        `json:"Lovership,omitempty" bson:"Lovership,omitempty"`
	Lover     string     `json:"Lover,omitempty" bson:"Lover,omitempty"`

	Description string `json:"Description,omitempty" bson:"Description,omitempty"`
	Title       string `json:"Title,omitempty" bson:"Title,omitempty"`

	InventoryData           any `json:"InventoryData,omitempty" bson:"InventoryData,omitempty"`
	Appearance              any `json:"Appearance,omitempty" bson:"Appearance,omitempty"`
	ArousalSettings         any `json:"ArousalSettings,omitempty" bson:"ArousalSettings,omitempty"`
	OnlineSharedSettings    any `json:"OnlineSharedSettings,omitempty" bson:"OnlineSharedSettings,omitempty"`
	Game                    any `json:"Game,omitempty" bson:"Game,omitempty"`
	MapData                 any `json:"MapData,omitempty" bson:"MapData,omitempty"`
	LabelColor              any `json:"LabelColor,omitempty" bson:"LabelColor,omitempty"`
	BlockItems              any `json:"BlockItems,omitempty" bson:"BlockItems,omitempty"`
	LimitedItems            any `json:"LimitedItems,omitempty" bson:"LimitedItems,omitempty"`
	FavoriteItems           any `json:"FavoriteItems,omitempty" bson:"FavoriteItems,omitempty"`
	Skill                   any `json:"Skill,omitempty" bson:"Skill,omitempty"`
	Nickname                any `json:"Nickname,omitempty" bson:"Nickname,omitempty"`
	Crafting                any `json:"Crafting,omitempty" bson:"Crafting,omitempty"`
	Reputation              any `json:"Reputation,omitempty" bson:"Reputation,omitempty"`
	Log                     any `json:"Log,omitempty" bson:"Log,omitempty"`
	DelayedAppearanceUpdate any `json:"DelayedAppearanceUpdate,omitempty" bson:"DelayedAppearanceUpdate,omitempty"`
	DelayedSkillUpdate      any `json:"DelayedSkillUpdate,omitempty" bson:"DelayedSkillUpdate,omitempty"`
	DelayedGameUpdate       any `json:"DelayedGameUpdate,omitempty" bson:"DelayedGameUpdate,omitempty"`
}

// Normalize restores set semantics on the member lists after decoding.
func (a *Account) Normalize() {
	a.FriendList = MemberSet(a.FriendList)
	a.WhiteList = MemberSet(a.WhiteList)
	a.BlackList = MemberSet(a.BlackList)
}

// Clone returns a copy whose member lists and ownership can be read without
// holding the owner's lock. Opaque payloads are shared; they are replaced,
// never mutated in place.
func (a *Account) Clone() *Account {
	c := *a
	c.FriendList = slices.Clone(a.FriendList)
	c.WhiteList = slices.Clone(a.WhiteList)
	c.BlackList = slices.Clone(a.BlackList)
	if a.Ownership != nil {
		o := *a.Ownership
		c.Ownership = &o
	}
	return &c
}

// Sanitized returns a copy without credentials, suitable for LoginResponse.
func (a *Account) Sanitized() *Account {
	c := a.Clone()
	c.Password = ""
	c.Email = ""
	return c
}

// HasFriend reports whether n is on the friend list.
func (a *Account) HasFriend(n uint32) bool {
	return slices.Contains(a.FriendList, n)
}

// OwnedBy reports whether the account's ownership record names n.
func (a *Account) OwnedBy(n uint32) bool {
	return a.Ownership != nil && a.Ownership.MemberNumber == n
}

// MemberSet removes duplicates while keeping first-seen order. A nil input
// yields an empty, non-nil slice so lists encode as [] rather than null.
func MemberSet(in []uint32) []uint32 {
	out := make([]uint32, 0, len(in))
	seen := make(map[uint32]struct{}, len(in))
	for _, n := range in {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
