package account

import (
	"context"

	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/kasuganosora/bondageclub/server/model"
	"go.uber.org/zap"
)

// Query answers AccountQuery. Unknown queries get no reply.
func (s *Service) Query(ctx context.Context, sess *player.Session, req *QueryRequest) {
	acc := sess.Account()
	if acc == nil {
		return
	}
	switch req.Query {
	case QueryOnlineFriends:
		sess.Emit(EventAccountQueryResult, model.QueryResult{
			Query:  QueryOnlineFriends,
			Result: s.onlineFriends(acc),
		})
	case QueryEmailStatus:
		has, err := s.store.HasEmail(ctx, acc.AccountName)
		if err != nil {
			s.logger.Error("email status lookup failed", append(s.sessionFields(sess), zap.Error(err))...)
			sess.Emit(EventAccountQueryResult, MsgServerError)
			return
		}
		sess.Emit(EventAccountQueryResult, model.QueryResult{Query: QueryEmailStatus, Result: has})
	}
}

// onlineFriends lists online submissives and mutual friends of player. An
// account that is both appears twice.
func (s *Service) onlineFriends(player *model.Account) []model.ServerFriendInfo {
	out := []model.ServerFriendInfo{}
	for _, other := range s.sm.Online() {
		a := other.Account()
		if a == nil {
			continue
		}
		if a.OwnedBy(player.MemberNumber) {
			out = append(out, model.ServerFriendInfo{
				Type:         FriendTypeSubmissive,
				MemberNumber: a.MemberNumber,
				MemberName:   a.Name,
			})
		}
		if a.HasFriend(player.MemberNumber) && player.HasFriend(a.MemberNumber) {
			out = append(out, model.ServerFriendInfo{
				Type:         FriendTypeFriend,
				MemberNumber: a.MemberNumber,
				MemberName:   a.Name,
			})
		}
	}
	return out
}
