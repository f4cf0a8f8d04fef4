package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"support-chat/internal/models"
	"support-chat/internal/repositories"
	"support-chat/internal/support"
)

var (
	_ repositories.ChatRepository    = (*ChatRepositoryMock)(nil)
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
	_ repositories.UserRepository    = (*UserRepositoryMock)(nil)
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateOrGetChat(ctx context.Context, chat models.Chat) (models.Chat, bool, error) {
	args := m.Called(ctx, chat)
	var out models.Chat
	if val := args.Get(0); val != nil {
		out = val.(models.Chat)
	}
	return out, args.Bool(1), args.Error(2)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChatByVisitorToken(ctx context.Context, visitorToken string) (models.Chat, error) {
	args := m.Called(ctx, visitorToken)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context) ([]models.ChatSummary, error) {
	args := m.Called(ctx)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) TakeOverChat(ctx context.Context, chatID string, respondentID string, at time.Time) (models.Chat, error) {
	args := m.Called(ctx, chatID, respondentID, at)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) AppendVisitorMessage(ctx context.Context, msg models.Message) (models.Message, models.Chat, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	var chat models.Chat
	if val := args.Get(1); val != nil {
		chat = val.(models.Chat)
	}
	return out, chat, args.Error(2)
}

func (m *MessageRepositoryMock) AppendAdminMessage(ctx context.Context, msg models.Message) (models.Message, models.Chat, bool, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	var chat models.Chat
	if val := args.Get(1); val != nil {
		chat = val.(models.Chat)
	}
	return out, chat, args.Bool(2), args.Error(3)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID string, limit int, before *models.Cursor) ([]models.Message, error) {
	args := m.Called(ctx, chatID, limit, before)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) UpsertUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

// SupportServiceMock stands in for *support.Service behind the HTTP handlers.
type SupportServiceMock struct {
	mock.Mock
}

func (m *SupportServiceMock) GetOrCreateChat(ctx context.Context, visitorToken string) (models.Chat, error) {
	args := m.Called(ctx, visitorToken)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *SupportServiceMock) SendMessageAsVisitor(ctx context.Context, visitorToken, text string) (models.Message, error) {
	args := m.Called(ctx, visitorToken, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *SupportServiceMock) ListMessagesForVisitor(ctx context.Context, visitorToken string, pageSize int, cursor string) (models.MessagePage, error) {
	args := m.Called(ctx, visitorToken, pageSize, cursor)
	var page models.MessagePage
	if val := args.Get(0); val != nil {
		page = val.(models.MessagePage)
	}
	return page, args.Error(1)
}

func (m *SupportServiceMock) ListChats(ctx context.Context, caller support.Caller) ([]models.ChatSummary, error) {
	args := m.Called(ctx, caller)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *SupportServiceMock) GetChat(ctx context.Context, caller support.Caller, chatID string) (models.Chat, error) {
	args := m.Called(ctx, caller, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *SupportServiceMock) SendMessageAsAdmin(ctx context.Context, caller support.Caller, chatID, text string) (support.AdminReply, error) {
	args := m.Called(ctx, caller, chatID, text)
	var reply support.AdminReply
	if val := args.Get(0); val != nil {
		reply = val.(support.AdminReply)
	}
	return reply, args.Error(1)
}

func (m *SupportServiceMock) TakeOverChat(ctx context.Context, caller support.Caller, chatID string) (models.Chat, error) {
	args := m.Called(ctx, caller, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *SupportServiceMock) ListMessagesForAdmin(ctx context.Context, caller support.Caller, chatID string, pageSize int, cursor string) (models.MessagePage, error) {
	args := m.Called(ctx, caller, chatID, pageSize, cursor)
	var page models.MessagePage
	if val := args.Get(0); val != nil {
		page = val.(models.MessagePage)
	}
	return page, args.Error(1)
}
