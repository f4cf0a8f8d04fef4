package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"support-chat/internal/middleware"
	"support-chat/internal/models"
	"support-chat/internal/support"
	"support-chat/internal/telemetry"
)

// SupportService is the support-chat core as seen by the HTTP layer.
type SupportService interface {
	GetOrCreateChat(ctx context.Context, visitorToken string) (models.Chat, error)
	SendMessageAsVisitor(ctx context.Context, visitorToken, text string) (models.Message, error)
	ListMessagesForVisitor(ctx context.Context, visitorToken string, pageSize int, cursor string) (models.MessagePage, error)
	ListChats(ctx context.Context, caller support.Caller) ([]models.ChatSummary, error)
	GetChat(ctx context.Context, caller support.Caller, chatID string) (models.Chat, error)
	SendMessageAsAdmin(ctx context.Context, caller support.Caller, chatID, text string) (support.AdminReply, error)
	TakeOverChat(ctx context.Context, caller support.Caller, chatID string) (models.Chat, error)
	ListMessagesForAdmin(ctx context.Context, caller support.Caller, chatID string, pageSize int, cursor string) (models.MessagePage, error)
}

// SupportHandler serves the visitor and admin support-chat endpoints.
type SupportHandler struct {
	svc   SupportService
	audit *telemetry.AuditEmitter
}

func NewSupportHandler(svc SupportService, audit *telemetry.AuditEmitter) *SupportHandler {
	return &SupportHandler{svc: svc, audit: audit}
}

type sendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// StartVisitorChat returns the visitor's chat, creating it on first call.
func (h *SupportHandler) StartVisitorChat(c *gin.Context) {
	chat, err := h.svc.GetOrCreateChat(c.Request.Context(), c.GetString(middleware.VisitorTokenKey))
	if err != nil {
		writeError(c, err, "could not start chat")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID, "chat": chat})
}

// PostVisitorMessage appends a visitor message to the visitor's chat.
func (h *SupportHandler) PostVisitorMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.SendMessageAsVisitor(c.Request.Context(), c.GetString(middleware.VisitorTokenKey), req.Text)
	if err != nil {
		writeError(c, err, "failed to store message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetVisitorMessages returns one newest-first page of the visitor's thread.
func (h *SupportHandler) GetVisitorMessages(c *gin.Context) {
	limit, ok := pageSizeParam(c)
	if !ok {
		return
	}

	page, err := h.svc.ListMessagesForVisitor(c.Request.Context(), c.GetString(middleware.VisitorTokenKey), limit, c.Query("cursor"))
	if err != nil {
		writeError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListChats returns every support chat, most recently active first.
func (h *SupportHandler) ListChats(c *gin.Context) {
	chats, err := h.svc.ListChats(c.Request.Context(), middleware.CallerFromContext(c))
	if err != nil {
		writeError(c, err, "failed to load chats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *SupportHandler) GetChat(c *gin.Context) {
	chat, err := h.svc.GetChat(c.Request.Context(), middleware.CallerFromContext(c), c.Param("chat_id"))
	if err != nil {
		writeError(c, err, "failed to load chat")
		return
	}
	c.JSON(http.StatusOK, chat)
}

// PostAdminMessage stores an admin reply. The first reply to an unclaimed
// chat is audited as a claim.
func (h *SupportHandler) PostAdminMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chatID := c.Param("chat_id")
	reply, err := h.svc.SendMessageAsAdmin(c.Request.Context(), middleware.CallerFromContext(c), chatID, req.Text)
	if err != nil {
		writeError(c, err, "failed to store message")
		return
	}

	if reply.Claimed {
		h.audit.Emit(c.Request.Context(), telemetry.AuditRecord{
			Text:      "support chat claimed by first reply",
			Action:    telemetry.ActionClaim,
			ChatID:    chatID,
			RequestID: requestIDFromContext(c),
			UserID:    adminIDFromContext(c),
		})
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": reply.Message,
		"chat":    reply.Chat,
		"claimed": reply.Claimed,
	})
}

// TakeOverChat makes the caller the chat's respondent.
func (h *SupportHandler) TakeOverChat(c *gin.Context) {
	chatID := c.Param("chat_id")
	chat, err := h.svc.TakeOverChat(c.Request.Context(), middleware.CallerFromContext(c), chatID)
	if err != nil {
		writeError(c, err, "failed to take over chat")
		return
	}

	h.audit.Emit(c.Request.Context(), telemetry.AuditRecord{
		Text:      "support chat taken over",
		Action:    telemetry.ActionTakeOver,
		ChatID:    chatID,
		RequestID: requestIDFromContext(c),
		UserID:    adminIDFromContext(c),
	})
	c.JSON(http.StatusOK, chat)
}

// GetAdminMessages returns one newest-first page of any chat's thread.
func (h *SupportHandler) GetAdminMessages(c *gin.Context) {
	limit, ok := pageSizeParam(c)
	if !ok {
		return
	}

	page, err := h.svc.ListMessagesForAdmin(c.Request.Context(), middleware.CallerFromContext(c), c.Param("chat_id"), limit, c.Query("cursor"))
	if err != nil {
		writeError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, page)
}

// pageSizeParam reads ?limit=. Absent means the service default.
func pageSizeParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	return limit, true
}
