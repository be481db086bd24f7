// Package rest serves the plain HTTP endpoints next to the Socket.IO transport.
package rest

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/bondageclub/server/game/account"
	"github.com/kasuganosora/bondageclub/server/game/player"
	"github.com/kasuganosora/bondageclub/server/scheduler"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	svc    *account.Service
	sm     *player.SessionManager
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	svc *account.Service,
	sm *player.SessionManager,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{svc: svc, sm: sm, sched: sched, logger: logger}
}

// Metrics returns account service gauges.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	st := h.svc.Stats()
	c.JSON(http.StatusOK, gin.H{
		"online_sockets":     st.OnlineSockets,
		"online_accounts":    st.OnlineAccounts,
		"login_queue":        st.LoginQueue,
		"next_member_number": st.NextMemberNumber,
		"creation_records":   st.CreationRecords,
		"scheduler_tasks":    h.sched.ListTickers(),
	})
}

type playerInfo struct {
	SocketID     string `json:"socket_id"`
	Addr         string `json:"addr"`
	MemberNumber uint32 `json:"member_number"`
	AccountName  string `json:"account_name"`
	Name         string `json:"name"`
}

// ListPlayers returns a snapshot of all logged-in sockets.
// GET /api/admin/players
func (h *AdminHandler) ListPlayers(c *gin.Context) {
	sessions := h.sm.Online()
	result := make([]playerInfo, 0, len(sessions))
	for _, s := range sessions {
		acc := s.Account()
		if acc == nil {
			continue
		}
		result = append(result, playerInfo{
			SocketID:     s.ID,
			Addr:         s.RemoteAddr,
			MemberNumber: acc.MemberNumber,
			AccountName:  acc.AccountName,
			Name:         acc.Name,
		})
	}
	c.JSON(http.StatusOK, gin.H{"players": result, "count": len(result)})
}

// KickPlayer disconnects the socket bound to a member number. No event is
// sent before the close.
// POST /api/admin/kick/:member
func (h *AdminHandler) KickPlayer(c *gin.Context) {
	n, err := strconv.ParseUint(c.Param("member"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member number"})
		return
	}
	s := h.sm.ByMemberNumber(uint32(n))
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not online"})
		return
	}
	s.Close()
	h.logger.Info("admin kicked player",
		zap.Uint64("member_number", n),
		zap.String("socket_id", s.ID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListSchedulerTasks returns the registered periodic tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// If adminKey is empty all admin endpoints answer 503, so the server cannot
// be deployed without protection by accident.
func AdminAuth(adminKey string) gin.HandlerFunc {
	want := []byte(adminKey)
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key"})
			return
		}
		got := []byte(c.GetHeader("X-Admin-Key"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
