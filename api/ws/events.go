package ws

import (
	"context"
	"encoding/json"

	"github.com/kasuganosora/bondageclub/server/game/account"
	"github.com/kasuganosora/bondageclub/server/game/player"
)

// RegisterAccountHandlers wires the account events and the connect greeting.
// A payload that does not decode is answered with "Invalid request data" on
// the event's error channel.
func RegisterAccountHandlers(r *Router, svc *account.Service) {
	r.OnConnect(func(_ context.Context, s *player.Session) {
		svc.Welcome(s)
	})
	for _, event := range account.Events {
		event := event
		r.On(event, func(ctx context.Context, s *player.Session, payload json.RawMessage) error {
			req, err := account.DecodeRequest(event, payload)
			if err != nil {
				s.Emit(account.ErrorEvent(event), account.MsgInvalidRequest)
				return nil
			}
			svc.Handle(ctx, s, req)
			return nil
		})
	}
}
