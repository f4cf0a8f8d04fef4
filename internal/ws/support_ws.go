package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"support-chat/internal/middleware"
	"support-chat/internal/models"
	"support-chat/internal/observability"
	"support-chat/internal/support"
)

// ChatLookup is the part of the support service the socket handlers need.
type ChatLookup interface {
	FindVisitorChat(ctx context.Context, visitorToken string) (models.Chat, error)
	GetChat(ctx context.Context, caller support.Caller, chatID string) (models.Chat, error)
}

// SupportWebSocketHandler handles visitor and admin support sockets.
type SupportWebSocketHandler struct {
	hub   *Hub
	chats ChatLookup
}

// NewSupportWebSocketHandler constructs a SupportWebSocketHandler.
func NewSupportWebSocketHandler(hub *Hub, chats ChatLookup) *SupportWebSocketHandler {
	return &SupportWebSocketHandler{hub: hub, chats: chats}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleVisitor streams the visitor's own chat. Runs behind
// middleware.VisitorToken.
func (h *SupportWebSocketHandler) HandleVisitor(c *gin.Context) {
	chat, err := h.chats.FindVisitorChat(c.Request.Context(), c.GetString(middleware.VisitorTokenKey))
	if err != nil {
		abortLookup(c, err)
		return
	}
	h.serve(c, ChatRoom(chat.ID), KindVisitor, "")
}

// HandleAdminLobby streams chat-list updates. Runs behind middleware.AdminAuth.
func (h *SupportWebSocketHandler) HandleAdminLobby(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	if !caller.IsAdmin() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	h.serve(c, LobbyRoom, KindAdminLobby, caller.AdminID)
}

// HandleAdminChat streams one chat thread. Runs behind middleware.AdminAuth.
func (h *SupportWebSocketHandler) HandleAdminChat(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	chat, err := h.chats.GetChat(c.Request.Context(), caller, c.Param("chat_id"))
	if err != nil {
		abortLookup(c, err)
		return
	}
	h.serve(c, ChatRoom(chat.ID), KindAdminChat, caller.AdminID)
}

func (h *SupportWebSocketHandler) serve(c *gin.Context, room, kind, adminID string) {
	ctx, span := otel.Tracer("support-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := c.GetString(middleware.RequestIDKey)
	if requestID == "" {
		requestID = observability.RequestIDFromRequest(c.Request)
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		Kind:        kind,
		AdminID:     adminID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          c.ClientIP(),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(room, conn, info)

	observability.IncWSActive(kind)
	h.publish(ctx, room, "ws_connect", info, "")

	// the request context ends with the handler; the read loop outlives it
	eventCtx := context.WithoutCancel(ctx)
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(room, conn)
			observability.DecWSActive(kind)
			h.publish(eventCtx, room, "ws_disconnect", info, closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.publish(eventCtx, room, "ws_error", info, closeReason)
				}
				return
			}
		}
	}()
}

func (h *SupportWebSocketHandler) publish(ctx context.Context, room, event string, info ConnInfo, reason string) {
	observability.IncWSEvent(info.Kind, event)
	_ = observability.PublishEvent(ctx, wsRoutingKey(info.Kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   wsPayload(room, event, info, reason),
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

func abortLookup(c *gin.Context, err error) {
	switch {
	case errors.Is(err, support.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, support.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
	case errors.Is(err, support.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
	}
}
