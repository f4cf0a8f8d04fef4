// Package support implements the support-chat session manager and message
// ledger: visitor chats, admin replies, admin take-over and newest-first
// pagination of chat threads.
package support

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"support-chat/internal/models"
	"support-chat/internal/observability"
	"support-chat/internal/repositories"
)

var tracer = otel.Tracer("support-chat/support")

// Notifier is told about every committed change so live views can refresh.
type Notifier interface {
	ChatUpdated(chat models.Chat)
	MessageAppended(chat models.Chat, msg models.Message)
}

type noopNotifier struct{}

func (noopNotifier) ChatUpdated(models.Chat)                     {}
func (noopNotifier) MessageAppended(models.Chat, models.Message) {}

// AdminReply is the outcome of an admin send.
type AdminReply struct {
	Message models.Message
	Chat    models.Chat
	// Claimed is true when this reply made the sender the respondent.
	Claimed bool
}

// Service owns the support_chats lifecycle and the support_chat_messages
// ledger.
type Service struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	notifier Notifier
	now      func() time.Time
	logger   zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the live-update sink.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds a Service over the given repositories.
func NewService(chats repositories.ChatRepository, messages repositories.MessageRepository, opts ...Option) *Service {
	s := &Service{
		chats:    chats,
		messages: messages,
		notifier: noopNotifier{},
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateChat returns the visitor's chat, creating it on first contact.
// An existing chat is returned untouched.
func (s *Service) GetOrCreateChat(ctx context.Context, visitorToken string) (chat models.Chat, err error) {
	ctx, span := tracer.Start(ctx, "support.GetOrCreateChat")
	defer func() { endSpan(span, err) }()

	if visitorToken == "" {
		return models.Chat{}, invalid("visitor token is required")
	}

	now := s.timestamp()
	chat, created, err := s.chats.CreateOrGetChat(ctx, models.Chat{
		ID:           uuid.NewString(),
		VisitorToken: visitorToken,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return models.Chat{}, storeError("get or create chat", err)
	}
	span.SetAttributes(attribute.String("chat.id", chat.ID), attribute.Bool("chat.created", created))

	if created {
		observability.IncSupportChatCreated()
		s.logger.Info().Str("chat_id", chat.ID).Msg("support chat created")
		s.notifier.ChatUpdated(chat)
	}
	return chat, nil
}

// FindVisitorChat returns the chat for a visitor token without creating it.
func (s *Service) FindVisitorChat(ctx context.Context, visitorToken string) (models.Chat, error) {
	if visitorToken == "" {
		return models.Chat{}, invalid("visitor token is required")
	}
	chat, err := s.chats.GetChatByVisitorToken(ctx, visitorToken)
	if err != nil {
		return models.Chat{}, s.chatLookupError("find visitor chat", err)
	}
	return chat, nil
}

// ListChats returns all chats, most recently active first.
func (s *Service) ListChats(ctx context.Context, caller Caller) (chats []models.ChatSummary, err error) {
	ctx, span := tracer.Start(ctx, "support.ListChats")
	defer func() { endSpan(span, err) }()

	if !caller.IsAdmin() {
		return nil, ErrUnauthorized
	}
	chats, err = s.chats.ListChats(ctx)
	if err != nil {
		return nil, storeError("list chats", err)
	}
	return chats, nil
}

// GetChat returns one chat by id.
func (s *Service) GetChat(ctx context.Context, caller Caller, chatID string) (chat models.Chat, err error) {
	ctx, span := tracer.Start(ctx, "support.GetChat", trace.WithAttributes(attribute.String("chat.id", chatID)))
	defer func() { endSpan(span, err) }()

	if !caller.IsAdmin() {
		return models.Chat{}, ErrUnauthorized
	}
	chat, err = s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, s.chatLookupError("get chat", err)
	}
	return chat, nil
}

// TakeOverChat makes the caller the chat's respondent regardless of who
// held it. Concurrent take-overs resolve last-write-wins.
func (s *Service) TakeOverChat(ctx context.Context, caller Caller, chatID string) (chat models.Chat, err error) {
	ctx, span := tracer.Start(ctx, "support.TakeOverChat", trace.WithAttributes(attribute.String("chat.id", chatID)))
	defer func() { endSpan(span, err) }()

	if !caller.IsAdmin() {
		return models.Chat{}, ErrUnauthorized
	}
	chat, err = s.chats.TakeOverChat(ctx, chatID, caller.AdminID, s.timestamp())
	if err != nil {
		return models.Chat{}, s.chatLookupError("take over chat", err)
	}

	observability.IncSupportTakeover()
	s.logger.Info().Str("chat_id", chat.ID).Str("respondent_id", caller.AdminID).Msg("support chat taken over")
	s.notifier.ChatUpdated(chat)
	return chat, nil
}

// SendMessageAsVisitor appends a visitor message to an existing chat.
func (s *Service) SendMessageAsVisitor(ctx context.Context, visitorToken, text string) (msg models.Message, err error) {
	ctx, span := tracer.Start(ctx, "support.SendMessageAsVisitor")
	defer func() { endSpan(span, err) }()

	if visitorToken == "" {
		return models.Message{}, invalid("visitor token is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, invalid("message text is empty")
	}

	chat, err := s.chats.GetChatByVisitorToken(ctx, visitorToken)
	if err != nil {
		return models.Message{}, s.chatLookupError("send visitor message", err)
	}

	msg, chat, err = s.messages.AppendVisitorMessage(ctx, models.Message{
		ID:        ulid.Make().String(),
		ChatID:    chat.ID,
		Sender:    models.SenderVisitor,
		Text:      text,
		CreatedAt: s.timestamp(),
	})
	if err != nil {
		return models.Message{}, s.chatLookupError("send visitor message", err)
	}
	span.SetAttributes(attribute.String("chat.id", chat.ID))

	observability.IncSupportMessage(string(models.SenderVisitor))
	s.notifier.MessageAppended(chat, msg)
	return msg, nil
}

// SendMessageAsAdmin appends an admin reply. If the chat has no respondent
// the caller becomes it in the same transaction as the insert.
func (s *Service) SendMessageAsAdmin(ctx context.Context, caller Caller, chatID, text string) (reply AdminReply, err error) {
	ctx, span := tracer.Start(ctx, "support.SendMessageAsAdmin", trace.WithAttributes(attribute.String("chat.id", chatID)))
	defer func() { endSpan(span, err) }()

	if !caller.IsAdmin() {
		return AdminReply{}, ErrUnauthorized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return AdminReply{}, invalid("message text is empty")
	}

	senderID := caller.AdminID
	msg, chat, claimed, err := s.messages.AppendAdminMessage(ctx, models.Message{
		ID:        ulid.Make().String(),
		ChatID:    chatID,
		Sender:    models.SenderAdmin,
		SenderID:  &senderID,
		Text:      text,
		CreatedAt: s.timestamp(),
	})
	if err != nil {
		return AdminReply{}, s.chatLookupError("send admin message", err)
	}

	observability.IncSupportMessage(string(models.SenderAdmin))
	if claimed {
		s.logger.Info().Str("chat_id", chat.ID).Str("respondent_id", senderID).Msg("support chat claimed by first reply")
	}
	s.notifier.MessageAppended(chat, msg)
	return AdminReply{Message: msg, Chat: chat, Claimed: claimed}, nil
}

// ListMessagesForVisitor pages the visitor's thread newest first. A visitor
// without a chat gets an empty, finished page.
func (s *Service) ListMessagesForVisitor(ctx context.Context, visitorToken string, pageSize int, cursor string) (page models.MessagePage, err error) {
	ctx, span := tracer.Start(ctx, "support.ListMessagesForVisitor")
	defer func() { endSpan(span, err) }()

	if visitorToken == "" {
		return models.MessagePage{}, invalid("visitor token is required")
	}
	chat, err := s.chats.GetChatByVisitorToken(ctx, visitorToken)
	if errors.Is(err, repositories.ErrChatNotFound) {
		return models.MessagePage{Messages: []models.Message{}, ContinueCursor: cursor, IsDone: true}, nil
	}
	if err != nil {
		return models.MessagePage{}, storeError("list visitor messages", err)
	}
	return s.page(ctx, chat.ID, pageSize, cursor)
}

// ListMessagesForAdmin pages any chat's thread newest first.
func (s *Service) ListMessagesForAdmin(ctx context.Context, caller Caller, chatID string, pageSize int, cursor string) (page models.MessagePage, err error) {
	ctx, span := tracer.Start(ctx, "support.ListMessagesForAdmin", trace.WithAttributes(attribute.String("chat.id", chatID)))
	defer func() { endSpan(span, err) }()

	if !caller.IsAdmin() {
		return models.MessagePage{}, ErrUnauthorized
	}
	return s.page(ctx, chatID, pageSize, cursor)
}

// page fetches one extra row to learn whether an older page exists.
func (s *Service) page(ctx context.Context, chatID string, pageSize int, cursor string) (models.MessagePage, error) {
	before, err := DecodeCursor(cursor)
	if err != nil {
		return models.MessagePage{}, err
	}
	limit := clampPageSize(pageSize)

	msgs, err := s.messages.ListMessages(ctx, chatID, limit+1, before)
	if err != nil {
		return models.MessagePage{}, storeError("list messages", err)
	}

	page := models.MessagePage{Messages: msgs, ContinueCursor: cursor, IsDone: true}
	if len(msgs) > limit {
		page.Messages = msgs[:limit]
		page.IsDone = false
	}
	if page.Messages == nil {
		page.Messages = []models.Message{}
	}
	if n := len(page.Messages); n > 0 {
		page.ContinueCursor = EncodeCursor(page.Messages[n-1].Position())
	}
	return page, nil
}

func (s *Service) chatLookupError(op string, err error) error {
	if errors.Is(err, repositories.ErrChatNotFound) {
		return ErrNotFound
	}
	return storeError(op, err)
}

// timestamp is truncated to the store's microsecond precision so cursors
// built from in-memory values match persisted rows.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
