package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connectra/internal/logger"
	"github.com/connectra/internal/model"
)

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func (r *ChatRepository) Get(ctx context.Context, id string) (*model.Chat, error) {
	c := &model.Chat{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, chat_type, created_at FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.ChatType, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.Get: %w", err)
	}
	participants, err := r.Participants(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Participants = participants
	return c, nil
}

// EnsureDirect creates the direct chat between a and b if it does not exist
// and returns its deterministic id. Original usernames are kept as
// participants; the id uses the normalized sorted form.
func (r *ChatRepository) EnsureDirect(ctx context.Context, a, b string) (string, error) {
	defer logger.DeferLogDuration("chat.EnsureDirect", time.Now())()
	id := model.DirectChatID(a, b)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("chatRepo.EnsureDirect begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO chats (id, name, chat_type, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		id, "DM: "+a+" & "+b, model.ChatTypeDirect, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("chatRepo.EnsureDirect insert: %w", err)
	}
	if tag.RowsAffected() > 0 {
		for _, username := range []string{a, b} {
			if _, err := tx.Exec(ctx,
				`INSERT INTO chat_participants (chat_id, username) VALUES ($1, $2)
				 ON CONFLICT DO NOTHING`, id, username); err != nil {
				return "", fmt.Errorf("chatRepo.EnsureDirect participants: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("chatRepo.EnsureDirect commit: %w", err)
	}
	return id, nil
}

// ListAll returns every chat, participants included, oldest first.
func (r *ChatRepository) ListAll(ctx context.Context) ([]model.Chat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, chat_type, created_at FROM chats ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ListAll: %w", err)
	}
	defer rows.Close()

	var out []model.Chat
	for rows.Next() {
		var c model.Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.ChatType, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("chatRepo.ListAll scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.ListAll rows: %w", err)
	}
	for i := range out {
		participants, err := r.Participants(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Participants = participants
	}
	return out, nil
}

func (r *ChatRepository) Participants(ctx context.Context, chatID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT username FROM chat_participants WHERE chat_id = $1 ORDER BY username`, chatID)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.Participants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("chatRepo.Participants scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// IsParticipant reports membership. The global room admits everyone.
func (r *ChatRepository) IsParticipant(ctx context.Context, chatID, username string) (bool, error) {
	var chatType model.ChatType
	err := r.pool.QueryRow(ctx, `SELECT chat_type FROM chats WHERE id = $1`, chatID).Scan(&chatType)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("chatRepo.IsParticipant: %w", err)
	}
	if chatType == model.ChatTypeGlobal {
		return true, nil
	}
	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id = $1 AND username = $2)`,
		chatID, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("chatRepo.IsParticipant: %w", err)
	}
	return exists, nil
}

// UserChats returns the recent-chats summary for username: every direct chat
// they participate in (with the other user and the last message) plus the
// global rooms.
func (r *ChatRepository) UserChats(ctx context.Context, username string) ([]model.ChatSummary, error) {
	defer logger.DeferLogDuration("chat.UserChats", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.chat_type, c.name, other.username, other_u.display_name, other_u.avatar_url, other_u.is_online
		 FROM chats c
		 LEFT JOIN chat_participants other
		   ON other.chat_id = c.id AND other.username <> $1
		 LEFT JOIN users other_u ON other_u.username = other.username
		 WHERE c.chat_type = 'global'
		    OR EXISTS(SELECT 1 FROM chat_participants cp WHERE cp.chat_id = c.id AND cp.username = $1)
		 ORDER BY c.created_at`, username)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.UserChats: %w", err)
	}
	defer rows.Close()

	var out []model.ChatSummary
	for rows.Next() {
		var (
			sum                             model.ChatSummary
			name                            string
			otherName, otherDisplay, avatar *string
			online                          *bool
		)
		if err := rows.Scan(&sum.ID, &sum.ChatType, &name, &otherName, &otherDisplay, &avatar, &online); err != nil {
			return nil, fmt.Errorf("chatRepo.UserChats scan: %w", err)
		}
		sum.Name = name
		if sum.ChatType == model.ChatTypeDirect && otherName != nil {
			u := &model.User{Username: *otherName}
			if otherDisplay != nil {
				u.DisplayName = *otherDisplay
			}
			if avatar != nil {
				u.AvatarURL = *avatar
			}
			if online != nil {
				u.Online = *online
			}
			sum.OtherUser = u
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.UserChats rows: %w", err)
	}

	for i := range out {
		last, err := lastMessage(ctx, r.pool, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].LastMessage = last
	}
	return out, nil
}

func lastMessage(ctx context.Context, pool *pgxpool.Pool, chatID string) (*model.Message, error) {
	m := &model.Message{}
	err := pool.QueryRow(ctx,
		`SELECT id, chat_id, username, content, raw_content, mentions, created_at
		 FROM messages WHERE chat_id = $1
		 ORDER BY created_at DESC LIMIT 1`, chatID,
	).Scan(&m.ID, &m.ChatID, &m.Username, &m.Content, &m.RawContent, &m.Mentions, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo last message: %w", err)
	}
	return m, nil
}
