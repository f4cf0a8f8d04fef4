package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"support-chat/internal/mocks"
	"support-chat/internal/models"
	"support-chat/internal/support"
	"support-chat/internal/telemetry"
)

var _ SupportService = (*mocks.SupportServiceMock)(nil)
var _ SupportService = (*support.Service)(nil)

func setupSupportRouter(handler *SupportHandler, adminID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	visitor := r.Group("/support", func(c *gin.Context) {
		c.Set("visitorToken", "tok-abc")
		c.Next()
	})
	visitor.POST("/chat", handler.StartVisitorChat)
	visitor.POST("/messages", handler.PostVisitorMessage)
	visitor.GET("/messages", handler.GetVisitorMessages)

	admin := r.Group("/admin/support", func(c *gin.Context) {
		if adminID != "" {
			c.Set("adminID", adminID)
		}
		c.Next()
	})
	admin.GET("/chats", handler.ListChats)
	admin.GET("/chats/:chat_id", handler.GetChat)
	admin.POST("/chats/:chat_id/messages", handler.PostAdminMessage)
	admin.POST("/chats/:chat_id/takeover", handler.TakeOverChat)
	admin.GET("/chats/:chat_id/messages", handler.GetAdminMessages)
	return r
}

func TestStartVisitorChatSuccess(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	router := setupSupportRouter(NewSupportHandler(svc, nil), "")

	svc.On("GetOrCreateChat", mock.Anything, "tok-abc").Return(models.Chat{ID: "C1"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/support/chat", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "C1", resp["chat_id"])
	assert.NotContains(t, rec.Body.String(), "tok-abc")
	svc.AssertExpectations(t)
}

func TestPostVisitorMessageSuccess(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	router := setupSupportRouter(NewSupportHandler(svc, nil), "")

	svc.On("SendMessageAsVisitor", mock.Anything, "tok-abc", "Hi, is this available?").
		Return(models.Message{ID: "M1", ChatID: "C1", Sender: models.SenderVisitor, Text: "Hi, is this available?"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/support/messages", bytes.NewBufferString(`{"text":"Hi, is this available?"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestPostVisitorMessageWithoutChat(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	router := setupSupportRouter(NewSupportHandler(svc, nil), "")

	svc.On("SendMessageAsVisitor", mock.Anything, "tok-abc", "hello").Return(models.Message{}, support.ErrNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/support/messages", bytes.NewBufferString(`{"text":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Chat not found")
	svc.AssertExpectations(t)
}

func TestPostVisitorMessageMissingText(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	router := setupSupportRouter(NewSupportHandler(svc, nil), "")

	req := httptest.NewRequest(http.MethodPost, "/support/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "SendMessageAsVisitor", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetVisitorMessagesPassesPaging(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	router := setupSupportRouter(NewSupportHandler(svc, nil), "")

	page := models.MessagePage{Messages: []models.Message{{ID: "M2"}, {ID: "M1"}}, ContinueCursor: "next", IsDone: true}
	svc.On("ListMessagesForVisitor", mock.Anything, "tok-abc", 10, "abc").Return(page, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/support/messages?limit=10&cursor=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.MessagePage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "M2", resp.Messages[0].ID)
	assert.Equal(t, "next", resp.ContinueCursor)
	assert.True(t, resp.IsDone)
	svc.AssertExpectations(t)
}

func TestGetVisitorMessagesInvalidLimit(t *testing.T) {
	router := setupSupportRouter(NewSupportHandler(new(mocks.SupportServiceMock), nil), "")

	req := httptest.NewRequest(http.MethodGet, "/support/messages?limit=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetVisitorMessagesBadCursor(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	router := setupSupportRouter(NewSupportHandler(svc, nil), "")

	svc.On("ListMessagesForVisitor", mock.Anything, "tok-abc", 0, "%%%").
		Return(models.MessagePage{}, fmt.Errorf("%w: malformed cursor", support.ErrInvalidArgument)).Once()

	req := httptest.NewRequest(http.MethodGet, "/support/messages?cursor=%25%25%25", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestListChatsSuccess(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	router := setupSupportRouter(NewSupportHandler(svc, nil), "U1")

	svc.On("ListChats", mock.Anything, support.Admin("U1")).Return([]models.ChatSummary{{Chat: models.Chat{ID: "C1"}}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/admin/support/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]models.ChatSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["chats"], 1)
	svc.AssertExpectations(t)
}

func TestListChatsUnauthorized(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	router := setupSupportRouter(NewSupportHandler(svc, nil), "")

	svc.On("ListChats", mock.Anything, support.Anonymous()).Return(([]models.ChatSummary)(nil), support.ErrUnauthorized).Once()

	req := httptest.NewRequest(http.MethodGet, "/admin/support/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertExpectations(t)
}

func TestListChatsStoreFailure(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	router := setupSupportRouter(NewSupportHandler(svc, nil), "U1")

	svc.On("ListChats", mock.Anything, support.Admin("U1")).
		Return(([]models.ChatSummary)(nil), fmt.Errorf("list chats: %w: %w", support.ErrBackingStore, assert.AnError)).Once()

	req := httptest.NewRequest(http.MethodGet, "/admin/support/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	svc.AssertExpectations(t)
}

func TestGetChatNotFound(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	router := setupSupportRouter(NewSupportHandler(svc, nil), "U1")

	svc.On("GetChat", mock.Anything, support.Admin("U1"), "missing").Return(models.Chat{}, support.ErrNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/admin/support/chats/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestPostAdminMessageAuditsClaim(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	publisher := new(mocks.PublisherMock)
	audit := telemetry.NewAuditEmitter(publisher, "audit.support", "support-chat", "test")
	router := setupSupportRouter(NewSupportHandler(svc, audit), "U1")

	respondent := "U1"
	svc.On("SendMessageAsAdmin", mock.Anything, support.Admin("U1"), "C1", "Yes it is!").Return(support.AdminReply{
		Message: models.Message{ID: "M2", ChatID: "C1", Sender: models.SenderAdmin, SenderID: &respondent, Text: "Yes it is!"},
		Chat:    models.Chat{ID: "C1", RespondentID: &respondent},
		Claimed: true,
	}, nil).Once()
	publisher.On("Publish", mock.Anything, "audit.support", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.Payload.Action == telemetry.ActionClaim && env.Payload.ChatID == "C1" && env.UserID != nil && *env.UserID == "U1"
	})).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/admin/support/chats/C1/messages", bytes.NewBufferString(`{"text":"Yes it is!"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Message models.Message `json:"message"`
		Claimed bool           `json:"claimed"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Claimed)
	assert.Equal(t, "M2", resp.Message.ID)
	svc.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestPostAdminMessageNoAuditWhenAlreadyClaimed(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	publisher := new(mocks.PublisherMock)
	audit := telemetry.NewAuditEmitter(publisher, "audit.support", "support-chat", "test")
	router := setupSupportRouter(NewSupportHandler(svc, audit), "U1")

	svc.On("SendMessageAsAdmin", mock.Anything, support.Admin("U1"), "C1", "again").
		Return(support.AdminReply{Message: models.Message{ID: "M3"}, Claimed: false}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/admin/support/chats/C1/messages", bytes.NewBufferString(`{"text":"again"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	svc.AssertExpectations(t)
}

func TestTakeOverChatAudits(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	publisher := new(mocks.PublisherMock)
	audit := telemetry.NewAuditEmitter(publisher, "audit.support", "support-chat", "test")
	router := setupSupportRouter(NewSupportHandler(svc, audit), "U2")

	respondent := "U2"
	svc.On("TakeOverChat", mock.Anything, support.Admin("U2"), "C1").Return(models.Chat{ID: "C1", RespondentID: &respondent}, nil).Once()
	publisher.On("Publish", mock.Anything, "audit.support", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.Payload.Action == telemetry.ActionTakeOver && env.Payload.ChatID == "C1"
	})).Return(assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/admin/support/chats/C1/takeover", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var chat models.Chat
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&chat))
	require.NotNil(t, chat.RespondentID)
	assert.Equal(t, "U2", *chat.RespondentID)
	svc.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestTakeOverMissingChat(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	publisher := new(mocks.PublisherMock)
	audit := telemetry.NewAuditEmitter(publisher, "audit.support", "support-chat", "test")
	router := setupSupportRouter(NewSupportHandler(svc, audit), "U2")

	svc.On("TakeOverChat", mock.Anything, support.Admin("U2"), "nope").Return(models.Chat{}, support.ErrNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/admin/support/chats/nope/takeover", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetAdminMessagesDefaultLimit(t *testing.T) {
	svc := new(mocks.SupportServiceMock)
	router := setupSupportRouter(NewSupportHandler(svc, nil), "U1")

	svc.On("ListMessagesForAdmin", mock.Anything, support.Admin("U1"), "C1", 0, "").
		Return(models.MessagePage{Messages: []models.Message{}, IsDone: true}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/admin/support/chats/C1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
