package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"support-chat/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts support chat persistence.
type ChatRepository interface {
	// CreateOrGetChat inserts chat unless one already exists for its visitor
	// token. The bool reports whether a new row was written.
	CreateOrGetChat(ctx context.Context, chat models.Chat) (models.Chat, bool, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	GetChatByVisitorToken(ctx context.Context, visitorToken string) (models.Chat, error)
	ListChats(ctx context.Context) ([]models.ChatSummary, error)
	TakeOverChat(ctx context.Context, chatID string, respondentID string, at time.Time) (models.Chat, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, visitor_token, respondent_id, created_at, updated_at`

// CreateOrGetChat relies on the unique visitor_token index: a conflicting
// insert returns no row and the existing chat is read back unchanged.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, chat models.Chat) (models.Chat, bool, error) {
	var created models.Chat
	err := r.db.GetContext(ctx, &created, `INSERT INTO support_chats (id, visitor_token, created_at, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (visitor_token) DO NOTHING
        RETURNING `+chatColumns, chat.ID, chat.VisitorToken, chat.CreatedAt, chat.UpdatedAt)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, false, err
	}

	existing, err := r.GetChatByVisitorToken(ctx, chat.VisitorToken)
	if err != nil {
		return models.Chat{}, false, err
	}
	return existing, false, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM support_chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// GetChatByVisitorToken fetches the chat owned by a visitor token.
func (r *ChatRepo) GetChatByVisitorToken(ctx context.Context, visitorToken string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM support_chats WHERE visitor_token=$1`, visitorToken)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChats returns every chat, most recently active first.
func (r *ChatRepo) ListChats(ctx context.Context) ([]models.ChatSummary, error) {
	query := `SELECT c.id, c.visitor_token, c.respondent_id, c.created_at, c.updated_at,
            u.email AS respondent_email,
            m.text AS last_message_text,
            m.sender AS last_message_sender,
            m.created_at AS last_message_at
        FROM support_chats c
        LEFT JOIN users u ON u.id = c.respondent_id
        LEFT JOIN LATERAL (
            SELECT text, sender, created_at FROM support_chat_messages
            WHERE chat_id = c.id
            ORDER BY created_at DESC, seq DESC
            LIMIT 1
        ) m ON TRUE
        ORDER BY c.updated_at DESC, c.id DESC`

	result := []models.ChatSummary{}
	if err := r.db.SelectContext(ctx, &result, query); err != nil {
		return nil, err
	}
	return result, nil
}

// TakeOverChat unconditionally assigns the respondent in one row update.
// updated_at never moves backwards, even across skewed instance clocks.
func (r *ChatRepo) TakeOverChat(ctx context.Context, chatID string, respondentID string, at time.Time) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `UPDATE support_chats SET respondent_id=$2, updated_at=GREATEST(updated_at, $3)
        WHERE id=$1 RETURNING `+chatColumns, chatID, respondentID, at)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}
