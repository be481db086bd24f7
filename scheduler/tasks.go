package scheduler

import (
	"context"
	"time"

	"github.com/kasuganosora/bondageclub/server/game/account"
	"go.uber.org/zap"
)

// Task names.
const (
	TaskServerInfo      = "server_info"
	TaskLoginQueueGauge = "login_queue_gauge"
)

const gaugeInterval = time.Minute

// RegisterAccountTasks schedules the periodic ServerInfo broadcast and the
// account gauge log line.
func RegisterAccountTasks(s *Scheduler, svc *account.Service, infoInterval time.Duration, logger *zap.Logger) {
	s.AddTicker(TaskServerInfo, infoInterval, func(context.Context) {
		svc.BroadcastServerInfo()
	})
	s.AddTicker(TaskLoginQueueGauge, gaugeInterval, func(context.Context) {
		st := svc.Stats()
		logger.Debug("account gauges",
			zap.Int("online_sockets", st.OnlineSockets),
			zap.Int("online_accounts", st.OnlineAccounts),
			zap.Int("login_queue", st.LoginQueue),
			zap.Uint32("next_member_number", st.NextMemberNumber),
			zap.Int("creation_records", st.CreationRecords))
	})
}
