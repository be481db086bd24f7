// Package api assembles the HTTP surface: the Socket.IO endpoint, the public
// probes and the admin group.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/bondageclub/server/api/rest"
	apows "github.com/kasuganosora/bondageclub/server/api/ws"
	"github.com/kasuganosora/bondageclub/server/config"
	"github.com/kasuganosora/bondageclub/server/game/account"
	"github.com/kasuganosora/bondageclub/server/game/player"
	mw "github.com/kasuganosora/bondageclub/server/middleware"
	"github.com/kasuganosora/bondageclub/server/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SocketPath is where Socket.IO clients connect.
const SocketPath = "/socket.io/"

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Server   config.ServerConfig
	Security config.SecurityConfig
	Store    apirest.Pinger
	Sessions *player.SessionManager
	Accounts *account.Service
	Sched    *scheduler.Scheduler
	Logger   *zap.Logger
}

// NewEngine wires the routes. ctx bounds background work started by the
// middleware.
func NewEngine(ctx context.Context, d Deps) *gin.Engine {
	r := gin.New()
	// Client IPs key the creation limiter and the admin whitelist, so forwarded
	// headers count only from configured proxies.
	var proxies []string
	if len(d.Security.TrustedProxies) > 0 {
		proxies = d.Security.TrustedProxies
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		d.Logger.Error("invalid trusted proxy list, forwarded headers ignored",
			zap.Strings("trusted_proxies", proxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(mw.TraceID(), mw.Logger(d.Logger, "/health", SocketPath), mw.Recovery(d.Logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(d.Security.RateLimitRPS), d.Security.RateLimitBurst))

	r.GET("/", apirest.ClientIP)
	r.GET("/health", apirest.Health(d.Store))

	// ---- Socket.IO ----
	wsRouter := apows.NewRouter(d.Logger)
	apows.RegisterAccountHandlers(wsRouter, d.Accounts)
	wsH := apows.NewHandler(d.Security, d.Sessions, wsRouter, d.Logger)
	r.GET(SocketPath, wsH.ServeSocketIO)
	r.POST(SocketPath, wsH.ServeSocketIO)
	r.OPTIONS(SocketPath, wsH.ServeSocketIO)

	// ---- Admin ----
	adminH := apirest.NewAdminHandler(d.Accounts, d.Sessions, d.Sched, d.Logger)
	adminG := r.Group("/api/admin")
	adminG.Use(mw.IPWhitelist(d.Server.AdminIPs), apirest.AdminAuth(d.Server.AdminKey))
	adminG.GET("/metrics", adminH.Metrics)
	adminG.GET("/players", adminH.ListPlayers)
	adminG.POST("/kick/:member", adminH.KickPlayer)
	adminG.GET("/scheduler", adminH.ListSchedulerTasks)

	return r
}
