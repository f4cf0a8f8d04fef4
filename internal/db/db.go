package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Connect initializes the database connection and runs migrations.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS support_chats (
            id TEXT PRIMARY KEY,
            visitor_token TEXT NOT NULL,
            respondent_id TEXT REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS support_chats_visitor_token_idx ON support_chats (visitor_token);`,
		`CREATE INDEX IF NOT EXISTS support_chats_updated_at_idx ON support_chats (updated_at DESC);`,
		`CREATE TABLE IF NOT EXISTS support_chat_messages (
            seq BIGSERIAL PRIMARY KEY,
            id TEXT NOT NULL UNIQUE,
            chat_id TEXT NOT NULL REFERENCES support_chats(id),
            sender TEXT NOT NULL CHECK (sender IN ('visitor', 'admin')),
            sender_id TEXT REFERENCES users(id),
            text TEXT NOT NULL CHECK (text <> ''),
            created_at TIMESTAMPTZ NOT NULL,
            CHECK (sender = 'admin' OR sender_id IS NULL)
        );`,
		`CREATE INDEX IF NOT EXISTS support_chat_messages_chat_order_idx
            ON support_chat_messages (chat_id, created_at DESC, seq DESC);`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	log.Info().Int("count", len(migrations)).Msg("database migrations applied")
	return nil
}
