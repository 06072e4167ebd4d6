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

type ClipRepository struct {
	pool *pgxpool.Pool
}

func NewClipRepository(pool *pgxpool.Pool) *ClipRepository {
	return &ClipRepository{pool: pool}
}

func (r *ClipRepository) Get(ctx context.Context, id string) (*model.Clip, error) {
	c := &model.Clip{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, author, caption, filename, likes, shares, comments, created_at
		 FROM clips WHERE id = $1`, id,
	).Scan(&c.ID, &c.Author, &c.Caption, &c.Filename, &c.Likes, &c.Shares, &c.CommentCount, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clipRepo.Get: %w", err)
	}
	return c, nil
}

func (r *ClipRepository) ListByAuthor(ctx context.Context, author string) ([]model.Clip, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, author, caption, filename, likes, shares, comments, created_at
		 FROM clips WHERE author = $1 ORDER BY created_at DESC`, author)
	if err != nil {
		return nil, fmt.Errorf("clipRepo.ListByAuthor: %w", err)
	}
	defer rows.Close()

	var out []model.Clip
	for rows.Next() {
		var c model.Clip
		if err := rows.Scan(&c.ID, &c.Author, &c.Caption, &c.Filename, &c.Likes, &c.Shares, &c.CommentCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("clipRepo.ListByAuthor scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ToggleLike flips username's like on the clip and returns the new state
// with the updated counter.
func (r *ClipRepository) ToggleLike(ctx context.Context, clipID, username string) (liked bool, likes int, err error) {
	defer logger.DeferLogDuration("clip.ToggleLike", time.Now())()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("clipRepo.ToggleLike begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM clip_likes WHERE clip_id = $1 AND username = $2`, clipID, username)
	if err != nil {
		return false, 0, fmt.Errorf("clipRepo.ToggleLike delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx,
			`INSERT INTO clip_likes (clip_id, username) VALUES ($1, $2)`, clipID, username); err != nil {
			return false, 0, fmt.Errorf("clipRepo.ToggleLike insert: %w", err)
		}
		liked = true
	}

	err = tx.QueryRow(ctx,
		`UPDATE clips
		 SET likes = (SELECT COUNT(*) FROM clip_likes WHERE clip_id = $1)
		 WHERE id = $1
		 RETURNING likes`, clipID,
	).Scan(&likes)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, ErrNotFound
	}
	if err != nil {
		return false, 0, fmt.Errorf("clipRepo.ToggleLike count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("clipRepo.ToggleLike commit: %w", err)
	}
	return liked, likes, nil
}

func (r *ClipRepository) AddComment(ctx context.Context, c *model.Comment) (total int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("clipRepo.AddComment begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO clip_comments (id, clip_id, author, content, likes, created_at)
		 VALUES ($1, $2, $3, $4, 0, $5)`,
		c.ID, c.ClipID, c.Author, c.Content, c.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("clipRepo.AddComment insert: %w", err)
	}

	err = tx.QueryRow(ctx,
		`UPDATE clips
		 SET comments = (SELECT COUNT(*) FROM clip_comments WHERE clip_id = $1)
		 WHERE id = $1
		 RETURNING comments`, c.ClipID,
	).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("clipRepo.AddComment count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("clipRepo.AddComment commit: %w", err)
	}
	return total, nil
}

func (r *ClipRepository) ToggleCommentLike(ctx context.Context, commentID, username string) (liked bool, likes int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("clipRepo.ToggleCommentLike begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM comment_likes WHERE comment_id = $1 AND username = $2`, commentID, username)
	if err != nil {
		return false, 0, fmt.Errorf("clipRepo.ToggleCommentLike delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx,
			`INSERT INTO comment_likes (comment_id, username) VALUES ($1, $2)`, commentID, username); err != nil {
			return false, 0, fmt.Errorf("clipRepo.ToggleCommentLike insert: %w", err)
		}
		liked = true
	}

	err = tx.QueryRow(ctx,
		`UPDATE clip_comments
		 SET likes = (SELECT COUNT(*) FROM comment_likes WHERE comment_id = $1)
		 WHERE id = $1
		 RETURNING likes`, commentID,
	).Scan(&likes)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, ErrNotFound
	}
	if err != nil {
		return false, 0, fmt.Errorf("clipRepo.ToggleCommentLike count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("clipRepo.ToggleCommentLike commit: %w", err)
	}
	return liked, likes, nil
}

// Share records one share per user per clip. Repeat shares report the
// current counter without bumping it.
func (r *ClipRepository) Share(ctx context.Context, clipID, username string) (shares int, shared bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("clipRepo.Share begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO clip_shares (clip_id, username) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, clipID, username)
	if err != nil {
		return 0, false, fmt.Errorf("clipRepo.Share insert: %w", err)
	}
	shared = tag.RowsAffected() > 0

	err = tx.QueryRow(ctx,
		`UPDATE clips
		 SET shares = (SELECT COUNT(*) FROM clip_shares WHERE clip_id = $1)
		 WHERE id = $1
		 RETURNING shares`, clipID,
	).Scan(&shares)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, ErrNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("clipRepo.Share count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("clipRepo.Share commit: %w", err)
	}
	return shares, shared, nil
}

// Comments returns the clip's comments oldest first with author display names.
func (r *ClipRepository) Comments(ctx context.Context, clipID string) ([]model.Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT cc.id, cc.clip_id, cc.author, COALESCE(u.display_name, ''), cc.content, cc.likes, cc.created_at
		 FROM clip_comments cc
		 LEFT JOIN users u ON u.username = cc.author
		 WHERE cc.clip_id = $1
		 ORDER BY cc.created_at ASC`, clipID)
	if err != nil {
		return nil, fmt.Errorf("clipRepo.Comments: %w", err)
	}
	defer rows.Close()

	var out []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.ClipID, &c.Author, &c.AuthorDisplayName, &c.Content, &c.Likes, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("clipRepo.Comments scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
