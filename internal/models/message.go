package models

import "time"

// Sender identifies which side of a support chat wrote a message.
type Sender string

const (
	SenderVisitor Sender = "visitor"
	SenderAdmin   Sender = "admin"
)

// Message represents a support chat message. Seq is the store-assigned
// insertion sequence that breaks CreatedAt ties.
type Message struct {
	ID        string    `db:"id" json:"id"`
	Seq       int64     `db:"seq" json:"-"`
	ChatID    string    `db:"chat_id" json:"chat_id"`
	Sender    Sender    `db:"sender" json:"sender"`
	SenderID  *string   `db:"sender_id" json:"sender_id,omitempty"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Position returns the message's place in the chat ordering.
func (m Message) Position() Cursor {
	return Cursor{CreatedAt: m.CreatedAt, Seq: m.Seq}
}

// Cursor marks a position in a chat's (created_at, seq) ordering.
type Cursor struct {
	CreatedAt time.Time
	Seq       int64
}

// Before reports whether c sorts strictly before other.
func (c Cursor) Before(other Cursor) bool {
	if c.CreatedAt.Equal(other.CreatedAt) {
		return c.Seq < other.Seq
	}
	return c.CreatedAt.Before(other.CreatedAt)
}

// MessagePage is one newest-first slice of a chat thread.
type MessagePage struct {
	Messages       []Message `json:"messages"`
	ContinueCursor string    `json:"continue_cursor"`
	IsDone         bool      `json:"is_done"`
}

// Chronological returns the page's messages oldest first, ready for display.
func (p MessagePage) Chronological() []Message {
	out := make([]Message, len(p.Messages))
	for i, m := range p.Messages {
		out[len(p.Messages)-1-i] = m
	}
	return out
}

const (
	EventMessage     = "message"
	EventChatUpdated = "chat_updated"
)

// ChatEvent is broadcasted through websockets.
type ChatEvent struct {
	Type    string   `json:"type"`
	ChatID  string   `json:"chat_id"`
	Chat    *Chat    `json:"chat,omitempty"`
	Message *Message `json:"message,omitempty"`
}
