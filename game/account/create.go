package account

import (
	"context"
	"errors"
	"strings"

	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/kasuganosora/bondageclub/server/model"
	"go.uber.org/zap"
)

// Create registers a new account and binds it to sess. Every failure is
// answered on CreationResponse with a literal reason.
func (s *Service) Create(ctx context.Context, sess *player.Session, req *CreateRequest) {
	reply := func(v any) { sess.Emit(EventCreationResponse, v) }

	switch {
	case !ValidAccountName(req.AccountName):
		reply(MsgInvalidAccountName)
		return
	case !ValidPassword(req.Password):
		reply(MsgInvalidPassword)
		return
	case !ValidCharacterName(req.Name):
		reply(MsgInvalidCharacterName)
		return
	case !ValidEmail(req.Email):
		reply(MsgInvalidEmail)
		return
	}

	if !s.limiter.Allow(sess.IP) {
		s.logger.Info("account creation rate limited", append(s.sessionFields(sess), zap.String("ip", sess.IP))...)
		reply(MsgAccountsPerDayExceeded)
		return
	}

	accountName := strings.ToUpper(req.AccountName)
	_, err := s.store.FindAccount(ctx, accountName)
	switch {
	case err == nil:
		reply(MsgAccountExists)
		return
	case !errors.Is(err, model.ErrNotFound):
		s.logger.Error("account lookup failed", append(s.sessionFields(sess), zap.Error(err))...)
		reply(MsgServerError)
		return
	}

	hash, err := s.hasher.Hash(strings.ToUpper(req.Password))
	if err != nil {
		s.logger.Error("password hash failed", append(s.sessionFields(sess), zap.Error(err))...)
		reply(MsgServerError)
		return
	}

	now := Millis(s.now())
	acc := &model.Account{
		AccountName:    accountName,
		Name:           req.Name,
		Password:       hash,
		Email:          req.Email,
		ItemPermission: model.DefaultItemPermission,
		Money:          model.DefaultMoney,
		Environment:    model.EnvironmentProd,
		FriendList:     []uint32{},
		WhiteList:      []uint32{},
		BlackList:      []uint32{},
		Creation:       now,
		LastLogin:      now,
	}
	n, err := s.alloc.Allocate(func(n uint32) error {
		acc.MemberNumber = n
		return s.store.InsertAccount(ctx, acc)
	})
	if errors.Is(err, model.ErrDuplicate) {
		reply(MsgAccountExists)
		return
	}
	if err != nil {
		s.logger.Error("account insert failed", append(s.sessionFields(sess), zap.Error(err))...)
		reply(MsgServerError)
		return
	}

	sess.Attach(acc)
	s.logger.Info("account created", append(s.sessionFields(sess), zap.String("account_name", accountName))...)
	reply(model.CreationSuccess{
		ServerAnswer: MsgAccountCreated,
		OnlineID:     accountName,
		MemberNumber: n,
	})
	s.SendServerInfo(sess)
}
