package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"support-chat/internal/models"
)

// MessageRepository defines the append-only message ledger.
type MessageRepository interface {
	// AppendVisitorMessage inserts msg and bumps the chat's updated_at in
	// one transaction.
	AppendVisitorMessage(ctx context.Context, msg models.Message) (models.Message, models.Chat, error)
	// AppendAdminMessage claims an unclaimed chat for msg.SenderID, bumps
	// updated_at and inserts msg in one transaction. The bool reports
	// whether this call performed the claim.
	AppendAdminMessage(ctx context.Context, msg models.Message) (models.Message, models.Chat, bool, error)
	// ListMessages returns up to limit messages newest first, strictly older
	// than before when it is set.
	ListMessages(ctx context.Context, chatID string, limit int, before *models.Cursor) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `seq, id, chat_id, sender, sender_id, text, created_at`

// AppendVisitorMessage stores a visitor message.
func (r *MessageRepo) AppendVisitorMessage(ctx context.Context, msg models.Message) (models.Message, models.Chat, error) {
	var (
		stored models.Message
		chat   models.Chat
	)
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &chat, `UPDATE support_chats SET updated_at=GREATEST(updated_at, $2)
            WHERE id=$1 RETURNING `+chatColumns, msg.ChatID, msg.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrChatNotFound
		}
		if err != nil {
			return err
		}
		return insertMessage(ctx, tx, msg, &stored)
	})
	return stored, chat, err
}

// AppendAdminMessage stores an admin reply. The locking sub-select reads
// the previous respondent under the same row lock the update takes, so the
// COALESCE check-and-set and the claimed flag agree.
func (r *MessageRepo) AppendAdminMessage(ctx context.Context, msg models.Message) (models.Message, models.Chat, bool, error) {
	if msg.SenderID == nil {
		return models.Message{}, models.Chat{}, false, errors.New("admin message without sender id")
	}

	var (
		stored models.Message
		row    struct {
			models.Chat
			Claimed bool `db:"claimed"`
		}
	)
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &row, `UPDATE support_chats c
            SET respondent_id = COALESCE(c.respondent_id, $2), updated_at = GREATEST(c.updated_at, $3)
            FROM (SELECT id, respondent_id AS previous FROM support_chats WHERE id=$1 FOR UPDATE) p
            WHERE c.id = p.id
            RETURNING c.id, c.visitor_token, c.respondent_id, c.created_at, c.updated_at,
                p.previous IS NULL AS claimed`, msg.ChatID, *msg.SenderID, msg.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrChatNotFound
		}
		if err != nil {
			return err
		}
		return insertMessage(ctx, tx, msg, &stored)
	})
	return stored, row.Chat, row.Claimed, err
}

// ListMessages pages through a chat newest first by (created_at, seq).
func (r *MessageRepo) ListMessages(ctx context.Context, chatID string, limit int, before *models.Cursor) ([]models.Message, error) {
	msgs := []models.Message{}
	if before == nil {
		err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM support_chat_messages
            WHERE chat_id=$1
            ORDER BY created_at DESC, seq DESC
            LIMIT $2`, chatID, limit)
		return msgs, err
	}

	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM support_chat_messages
        WHERE chat_id=$1 AND (created_at, seq) < ($2, $3)
        ORDER BY created_at DESC, seq DESC
        LIMIT $4`, chatID, before.CreatedAt, before.Seq, limit)
	return msgs, err
}

func insertMessage(ctx context.Context, tx *sqlx.Tx, msg models.Message, dest *models.Message) error {
	return tx.GetContext(ctx, dest, `INSERT INTO support_chat_messages (id, chat_id, sender, sender_id, text, created_at)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+messageColumns,
		msg.ID, msg.ChatID, msg.Sender, msg.SenderID, msg.Text, msg.CreatedAt)
}

func (r *MessageRepo) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
