package models

import "time"

// Chat represents one visitor's support conversation.
type Chat struct {
	ID           string    `db:"id" json:"id"`
	VisitorToken string    `db:"visitor_token" json:"-"`
	RespondentID *string   `db:"respondent_id" json:"respondent_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Claimed reports whether an admin is responsible for replying.
func (c Chat) Claimed() bool {
	return c.RespondentID != nil && *c.RespondentID != ""
}

// ChatSummary is the admin list view of a chat.
type ChatSummary struct {
	Chat
	RespondentEmail   *string    `db:"respondent_email" json:"respondent_email,omitempty"`
	LastMessageText   *string    `db:"last_message_text" json:"last_message_text,omitempty"`
	LastMessageSender *string    `db:"last_message_sender" json:"last_message_sender,omitempty"`
	LastMessageAt     *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
}
