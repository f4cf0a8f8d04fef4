package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat/internal/identity"
	"support-chat/internal/middleware"
	"support-chat/internal/models"
	"support-chat/internal/repositories"
	"support-chat/internal/support"
	"support-chat/internal/ws"
)

type testServer struct {
	router *gin.Engine
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := repositories.NewMemoryStore()
	resolver := identity.NewAdminResolver("secret", "test", store, 0)
	tokens := map[string]string{}
	for id, email := range map[string]string{"U1": "admin@x.com", "U2": "admin2@x.com"} {
		_, err := store.UpsertUser(ctx, models.User{ID: id, Email: email})
		require.NoError(t, err)
		token, err := resolver.IssueToken(email, time.Hour)
		require.NoError(t, err)
		tokens[id] = token
	}

	hub := ws.NewHub(zerolog.Nop())
	router, err := newRouter(routerDeps{
		serviceName:    "support-chat-test",
		logger:         zerolog.Nop(),
		service:        support.NewService(store, store, support.WithNotifier(hub)),
		hub:            hub,
		admins:         resolver,
		allowedOrigins: []string{"*"},
	})
	require.NoError(t, err)
	return &testServer{router: router, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) admin(id string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.tokens[id]}
}

func TestSupportChatFlow(t *testing.T) {
	srv := newTestServer(t)
	visitor := map[string]string{"X-Visitor-Token": "tok-abc"}

	rec := srv.do(t, http.MethodPost, "/support/chat", "", visitor)
	require.Equal(t, http.StatusOK, rec.Code)
	var started struct {
		ChatID string `json:"chat_id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	chatID := started.ChatID
	require.NotEmpty(t, chatID)

	rec = srv.do(t, http.MethodPost, "/support/messages", `{"text":"Hi, is this available?"}`, visitor)
	require.Equal(t, http.StatusCreated, rec.Code)
	var m1 models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&m1))

	rec = srv.do(t, http.MethodPost, "/admin/support/chats/"+chatID+"/messages", `{"text":"Yes it is!"}`, srv.admin("U1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var reply struct {
		Message models.Message `json:"message"`
		Claimed bool           `json:"claimed"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reply))
	assert.True(t, reply.Claimed)
	require.NotNil(t, reply.Message.SenderID)
	assert.Equal(t, "U1", *reply.Message.SenderID)

	rec = srv.do(t, http.MethodPost, "/admin/support/chats/"+chatID+"/takeover", "", srv.admin("U2"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/admin/support/chats/"+chatID, "", srv.admin("U1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var chat models.Chat
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&chat))
	require.NotNil(t, chat.RespondentID)
	assert.Equal(t, "U2", *chat.RespondentID)

	rec = srv.do(t, http.MethodGet, "/admin/support/chats/"+chatID+"/messages?limit=10", "", srv.admin("U1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var page models.MessagePage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	require.Len(t, page.Messages, 2)
	assert.Equal(t, reply.Message.ID, page.Messages[0].ID)
	assert.Equal(t, m1.ID, page.Messages[1].ID)
	assert.True(t, page.IsDone)

	rec = srv.do(t, http.MethodGet, "/support/messages", "", visitor)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Len(t, page.Messages, 2)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/admin/support/chats"},
		{http.MethodGet, "/admin/support/chats/C1"},
		{http.MethodPost, "/admin/support/chats/C1/messages"},
		{http.MethodPost, "/admin/support/chats/C1/takeover"},
		{http.MethodGet, "/admin/support/chats/C1/messages"},
	} {
		rec := srv.do(t, tc.method, tc.path, `{"text":"x"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)

		rec = srv.do(t, tc.method, tc.path, `{"text":"x"}`, map[string]string{"Authorization": "Bearer forged"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestVisitorRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/support/chat", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/support/messages", `{"text":"hello"}`, map[string]string{"X-Visitor-Token": "tok-none"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodGet, "/support/messages", "", map[string]string{"X-Visitor-Token": "tok-none"})
	require.Equal(t, http.StatusOK, rec.Code)
	var page models.MessagePage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Empty(t, page.Messages)
	assert.True(t, page.IsDone)
}

func TestOpsRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/debug/audit-test", "", srv.admin("U1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVisitorRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := repositories.NewMemoryStore()
	hub := ws.NewHub(zerolog.Nop())
	router, err := newRouter(routerDeps{
		serviceName: "support-chat-test",
		logger:      zerolog.Nop(),
		service:     support.NewService(store, store, support.WithNotifier(hub)),
		hub:         hub,
		limiter:     middleware.NewLocalLimiter(1, time.Minute),
	})
	require.NoError(t, err)
	srv := &testServer{router: router}

	headers := map[string]string{"X-Visitor-Token": "tok-abc", "X-Forwarded-For": "10.0.0.1"}
	rec := srv.do(t, http.MethodPost, "/support/chat", "", headers)
	assert.Equal(t, http.StatusOK, rec.Code)

	headers["X-Forwarded-For"] = "10.0.0.2"
	rec = srv.do(t, http.MethodPost, "/support/chat", "", headers)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestNewRouterRejectsBadTrustedProxy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, err := newRouter(routerDeps{logger: zerolog.Nop(), trustedProxies: []string{"not-an-ip"}})
	assert.Error(t, err)
}
