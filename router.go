package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"support-chat/internal/handlers"
	"support-chat/internal/middleware"
	"support-chat/internal/observability"
	"support-chat/internal/support"
	"support-chat/internal/telemetry"
	"support-chat/internal/ws"
)

type routerDeps struct {
	serviceName    string
	logger         zerolog.Logger
	service        *support.Service
	hub            *ws.Hub
	admins         middleware.AdminResolver
	limiter        middleware.Limiter
	audit          *telemetry.AuditEmitter
	store          handlers.Pinger
	allowedOrigins []string
	trustedProxies []string
	debugRoutes    bool
}

func newRouter(d routerDeps) (*gin.Engine, error) {
	router := gin.New()
	// ClientIP only honours X-Forwarded-For from these peers
	if err := router.SetTrustedProxies(d.trustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	// otelgin must run before RequestLogger so the span is on the request context
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(d.serviceName))
	router.Use(middleware.RequestLogger(d.logger))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.CORS(d.allowedOrigins))

	supportHandler := handlers.NewSupportHandler(d.service, d.audit)
	supportWS := ws.NewSupportWebSocketHandler(d.hub, d.service)
	adminAuth := middleware.AdminAuth(d.admins)

	router.GET("/healthz", handlers.Health(d.store))
	router.GET("/metrics", observability.MetricsHandler())

	visitor := router.Group("/support", middleware.VisitorToken(), middleware.RateLimit(d.limiter, d.logger))
	visitor.POST("/chat", supportHandler.StartVisitorChat)
	visitor.POST("/messages", supportHandler.PostVisitorMessage)
	visitor.GET("/messages", supportHandler.GetVisitorMessages)

	admin := router.Group("/admin/support", adminAuth)
	admin.GET("/chats", supportHandler.ListChats)
	admin.GET("/chats/:chat_id", supportHandler.GetChat)
	admin.POST("/chats/:chat_id/messages", supportHandler.PostAdminMessage)
	admin.POST("/chats/:chat_id/takeover", supportHandler.TakeOverChat)
	admin.GET("/chats/:chat_id/messages", supportHandler.GetAdminMessages)

	router.GET("/ws/support/visitor", middleware.VisitorToken(), supportWS.HandleVisitor)
	router.GET("/ws/admin/support", adminAuth, supportWS.HandleAdminLobby)
	router.GET("/ws/admin/support/chats/:chat_id", adminAuth, supportWS.HandleAdminChat)

	handlers.RegisterDebugRoutes(router.Group("", adminAuth), d.audit, d.debugRoutes)

	return router, nil
}
