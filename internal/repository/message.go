package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connectra/internal/logger"
	"github.com/connectra/internal/model"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create persists the message and its attachments in one transaction.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("message.Create", time.Now())()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("messageRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, chat_id, username, content, raw_content, mentions, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ChatID, m.Username, m.Content, m.RawContent, m.Mentions, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("messageRepo.Create insert: %w", err)
	}

	for _, a := range m.Attachments {
		_, err = tx.Exec(ctx,
			`INSERT INTO attachments (message_id, filename, stored_filename, file_type, file_size)
			 VALUES ($1, $2, $3, $4, $5)`,
			m.ID, a.Filename, a.StoredFilename, a.Type, a.Size)
		if err != nil {
			return fmt.Errorf("messageRepo.Create attachment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("messageRepo.Create commit: %w", err)
	}
	return nil
}

// History returns the chat's messages in chronological order with
// attachments stitched in.
func (r *MessageRepository) History(ctx context.Context, chatID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("message.History", time.Now())()

	rows, err := r.pool.Query(ctx,
		`SELECT id, chat_id, username, content, raw_content, mentions, created_at
		 FROM messages WHERE chat_id = $1
		 ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("messageRepo.History: %w", err)
	}
	defer rows.Close()

	var (
		out   []model.Message
		index = map[string]int{}
	)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Username, &m.Content, &m.RawContent, &m.Mentions, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("messageRepo.History scan: %w", err)
		}
		index[m.ID] = len(out)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messageRepo.History rows: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	arows, err := r.pool.Query(ctx,
		`SELECT a.message_id, a.filename, a.stored_filename, a.file_type, a.file_size
		 FROM attachments a
		 JOIN messages m ON m.id = a.message_id
		 WHERE m.chat_id = $1`, chatID)
	if err != nil {
		return nil, fmt.Errorf("messageRepo.History attachments: %w", err)
	}
	defer arows.Close()

	for arows.Next() {
		var (
			msgID string
			a     model.Attachment
		)
		if err := arows.Scan(&msgID, &a.Filename, &a.StoredFilename, &a.Type, &a.Size); err != nil {
			return nil, fmt.Errorf("messageRepo.History attachment scan: %w", err)
		}
		if i, ok := index[msgID]; ok {
			out[i].Attachments = append(out[i].Attachments, a)
		}
	}
	return out, arows.Err()
}
