package chat

import (
	"context"
	"database/sql"
)

// Repository writes chat transcripts to Postgres. Nothing is read back:
// room history lives in memory only.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveMessage(ctx context.Context, msg Message) error {
	query := `
		INSERT INTO chat_messages (id, room, author, avatar, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, msg.ID, msg.Room, msg.User, msg.Avatar, msg.Text, msg.CreatedAt)
	return err
}
