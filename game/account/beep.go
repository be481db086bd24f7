package account

import (
	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/kasuganosora/bondageclub/server/model"
)

// Beep relays a beep to an online member. The target must list the caller as
// a friend and name the caller in its ownership record; anything else is
// dropped without a reply.
func (s *Service) Beep(sess *player.Session, req *BeepRequest) {
	caller := sess.Account()
	if caller == nil {
		return
	}
	if req.BeepType != nil && *req.BeepType != BeepTypeLeash {
		return
	}
	target := s.sm.ByMemberNumber(req.MemberNumber)
	if target == nil {
		return
	}
	t := target.Account()
	if t == nil || !t.HasFriend(caller.MemberNumber) || !t.OwnedBy(caller.MemberNumber) {
		return
	}
	target.Emit(EventAccountBeep, model.Beep{
		MemberNumber: caller.MemberNumber,
		MemberName:   caller.Name,
		BeepType:     req.BeepType,
		Message:      req.Message,
	})
}
