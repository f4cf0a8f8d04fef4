package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"support-chat/internal/models"
)

// MemoryStore keeps chats, messages and users in process. It backs the
// "memory" store driver and the tests; every method runs under one mutex so
// it offers the same single-document atomicity as the Postgres repos.
type MemoryStore struct {
	mu       sync.Mutex
	chats    map[string]models.Chat
	byToken  map[string]string
	messages map[string][]models.Message
	users    map[string]models.User
	seq      int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[string]models.Chat),
		byToken:  make(map[string]string),
		messages: make(map[string][]models.Message),
		users:    make(map[string]models.User),
	}
}

func (s *MemoryStore) CreateOrGetChat(ctx context.Context, chat models.Chat) (models.Chat, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byToken[chat.VisitorToken]; ok {
		return copyChat(s.chats[id]), false, nil
	}
	s.chats[chat.ID] = copyChat(chat)
	s.byToken[chat.VisitorToken] = chat.ID
	return copyChat(chat), true, nil
}

func (s *MemoryStore) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return models.Chat{}, ErrChatNotFound
	}
	return copyChat(chat), nil
}

func (s *MemoryStore) GetChatByVisitorToken(ctx context.Context, visitorToken string) (models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byToken[visitorToken]
	if !ok {
		return models.Chat{}, ErrChatNotFound
	}
	return copyChat(s.chats[id]), nil
}

func (s *MemoryStore) ListChats(ctx context.Context) ([]models.ChatSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.ChatSummary, 0, len(s.chats))
	for _, chat := range s.chats {
		summary := models.ChatSummary{Chat: copyChat(chat)}
		if chat.Claimed() {
			for _, u := range s.users {
				if u.ID == *chat.RespondentID {
					email := u.Email
					summary.RespondentEmail = &email
					break
				}
			}
		}
		if msgs := s.messages[chat.ID]; len(msgs) > 0 {
			last := latest(msgs)
			text, sender, at := last.Text, string(last.Sender), last.CreatedAt
			summary.LastMessageText = &text
			summary.LastMessageSender = &sender
			summary.LastMessageAt = &at
		}
		result = append(result, summary)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (s *MemoryStore) TakeOverChat(ctx context.Context, chatID string, respondentID string, at time.Time) (models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return models.Chat{}, ErrChatNotFound
	}
	chat.RespondentID = &respondentID
	chat.UpdatedAt = laterOf(chat.UpdatedAt, at)
	s.chats[chatID] = chat
	return copyChat(chat), nil
}

func (s *MemoryStore) AppendVisitorMessage(ctx context.Context, msg models.Message) (models.Message, models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[msg.ChatID]
	if !ok {
		return models.Message{}, models.Chat{}, ErrChatNotFound
	}
	chat.UpdatedAt = laterOf(chat.UpdatedAt, msg.CreatedAt)
	s.chats[chat.ID] = chat
	return s.insert(msg), copyChat(chat), nil
}

func (s *MemoryStore) AppendAdminMessage(ctx context.Context, msg models.Message) (models.Message, models.Chat, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[msg.ChatID]
	if !ok {
		return models.Message{}, models.Chat{}, false, ErrChatNotFound
	}
	claimed := false
	if !chat.Claimed() && msg.SenderID != nil {
		id := *msg.SenderID
		chat.RespondentID = &id
		claimed = true
	}
	chat.UpdatedAt = laterOf(chat.UpdatedAt, msg.CreatedAt)
	s.chats[chat.ID] = chat
	return s.insert(msg), copyChat(chat), claimed, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, chatID string, limit int, before *models.Cursor) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := append([]models.Message(nil), s.messages[chatID]...)
	sort.Slice(all, func(i, j int) bool {
		return all[j].Position().Before(all[i].Position())
	})

	result := []models.Message{}
	for _, m := range all {
		if len(result) == limit {
			break
		}
		if before != nil && !m.Position().Before(*before) {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[normalizeEmail(email)]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.Email = normalizeEmail(user.Email)
	if existing, ok := s.users[user.Email]; ok {
		existing.Name = user.Name
		s.users[user.Email] = existing
		return existing, nil
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.Email] = user
	return user, nil
}

// MessageCount reports how many messages a chat holds.
func (s *MemoryStore) MessageCount(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[chatID])
}

// ChatCount reports how many chats exist.
func (s *MemoryStore) ChatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

func (s *MemoryStore) insert(msg models.Message) models.Message {
	s.seq++
	msg.Seq = s.seq
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
	return msg
}

func latest(msgs []models.Message) models.Message {
	last := msgs[0]
	for _, m := range msgs[1:] {
		if last.Position().Before(m.Position()) {
			last = m
		}
	}
	return last
}

func copyChat(c models.Chat) models.Chat {
	if c.RespondentID != nil {
		id := *c.RespondentID
		c.RespondentID = &id
	}
	return c
}

var (
	_ ChatRepository    = (*MemoryStore)(nil)
	_ MessageRepository = (*MemoryStore)(nil)
	_ UserRepository    = (*MemoryStore)(nil)
	_ ChatRepository    = (*ChatRepo)(nil)
	_ MessageRepository = (*MessageRepo)(nil)
	_ UserRepository    = (*UserRepo)(nil)
)

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
