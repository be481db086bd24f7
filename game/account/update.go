package account

import (
	"context"
	"encoding/json"

	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/kasuganosora/bondageclub/server/model"
	"go.uber.org/zap"
)

type opaqueField struct {
	key    string
	raw    json.RawMessage
	assign func(acc *model.Account, v any)
	// memoryOnly fields are kept on the bound account but never persisted.
	memoryOnly bool
}

func (r *UpdateRequest) opaqueFields() []opaqueField {
	return []opaqueField{
		{key: "InventoryData", raw: r.InventoryData, assign: func(a *model.Account, v any) { a.InventoryData = v }},
		{key: "ArousalSettings", raw: r.ArousalSettings, assign: func(a *model.Account, v any) { a.ArousalSettings = v }},
		{key: "OnlineSharedSettings", raw: r.OnlineSharedSettings, assign: func(a *model.Account, v any) { a.OnlineSharedSettings = v }},
		{key: "Game", raw: r.Game, assign: func(a *model.Account, v any) { a.Game = v }},
		{key: "MapData", raw: r.MapData, assign: func(a *model.Account, v any) { a.MapData = v }, memoryOnly: true},
		{key: "LabelColor", raw: r.LabelColor, assign: func(a *model.Account, v any) { a.LabelColor = v }},
		{key: "Appearance", raw: r.Appearance, assign: func(a *model.Account, v any) { a.Appearance = v }},
		{key: "Reputation", raw: r.Reputation, assign: func(a *model.Account, v any) { a.Reputation = v }},
		{key: "BlockItems", raw: r.BlockItems, assign: func(a *model.Account, v any) { a.BlockItems = v }},
		{key: "LimitedItems", raw: r.LimitedItems, assign: func(a *model.Account, v any) { a.LimitedItems = v }},
		{key: "FavoriteItems", raw: r.FavoriteItems, assign: func(a *model.Account, v any) { a.FavoriteItems = v }},
		{key: "Skill", raw: r.Skill, assign: func(a *model.Account, v any) { a.Skill = v }},
		{key: "Nickname", raw: r.Nickname, assign: func(a *model.Account, v any) { a.Nickname = v }},
		{key: "Crafting", raw: r.Crafting, assign: func(a *model.Account, v any) { a.Crafting = v }},
		{key: "Log", raw: r.Log, assign: func(a *model.Account, v any) { a.Log = v }},
	}
}

type decodedField struct {
	opaqueField
	value any
}

// Update applies the whitelisted fields of req to the bound account and
// persists them with a single $set. Without a bound account it does nothing.
func (s *Service) Update(ctx context.Context, sess *player.Session, req *UpdateRequest) {
	if _, ok := sess.MemberNumber(); !ok {
		return
	}

	var opaque []decodedField
	for _, f := range req.opaqueFields() {
		if !present(f.raw) {
			continue
		}
		v, err := decodeOpaque(f.raw)
		if err != nil {
			s.logger.Debug("skipping undecodable field",
				append(s.sessionFields(sess), zap.String("field", f.key), zap.Error(err))...)
			continue
		}
		opaque = append(opaque, decodedField{opaqueField: f, value: v})
	}
	if present(req.ChatRoom) {
		s.logger.Debug("ignoring ChatRoom update", s.sessionFields(sess)...)
	}

	set := make(map[string]any)
	var accountName string
	bound := sess.WithAccount(func(acc *model.Account) {
		accountName = acc.AccountName
		if req.Name != nil {
			acc.Name = *req.Name
			set["Name"] = acc.Name
		}
		if req.ItemPermission != nil {
			acc.ItemPermission = *req.ItemPermission
			set["ItemPermission"] = acc.ItemPermission
		}
		if req.FriendList != nil {
			acc.FriendList = model.MemberSet(*req.FriendList)
			set["FriendList"] = acc.FriendList
		}
		if req.WhiteList != nil {
			acc.WhiteList = model.MemberSet(*req.WhiteList)
			set["WhiteList"] = acc.WhiteList
		}
		if req.BlackList != nil {
			acc.BlackList = model.MemberSet(*req.BlackList)
			set["BlackList"] = acc.BlackList
		}
		if req.Creation != nil {
			acc.Creation = *req.Creation
			set["Creation"] = acc.Creation
		}
		if req.LastLogin != nil {
			acc.LastLogin = *req.LastLogin
			set["LastLogin"] = acc.LastLogin
		}
		if req.Ownership != nil {
			o := *req.Ownership
			acc.Ownership = &o
			set["Ownership"] = o
		}
		if req.Description != nil {
			acc.Description = *req.Description
			set["Description"] = acc.Description
		}
		if req.Title != nil {
			acc.Title = *req.Title
			set["Title"] = acc.Title
		}
		for _, f := range opaque {
			f.assign(acc, f.value)
			if !f.memoryOnly {
				set[f.key] = f.value
			}
		}
	})
	if !bound || len(set) == 0 {
		return
	}

	if err := s.store.UpdateAccount(ctx, accountName, set); err != nil {
		s.logger.Error("account update failed", append(s.sessionFields(sess), zap.Error(err))...)
	}
}
