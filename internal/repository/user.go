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

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Ensure upserts a user on first sight. Identity is client-generated and
// display-only; the first request under a username creates the row.
func (r *UserRepository) Ensure(ctx context.Context, username, displayName string) error {
	defer logger.DeferLogDuration("user.Ensure", time.Now())()
	if displayName == "" {
		displayName = username
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, display_name, created_at)
		 VALUES ($1, $1, $2, $3)
		 ON CONFLICT (username) DO NOTHING`,
		username, displayName, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("userRepo.Ensure: %w", err)
	}
	return nil
}

// GetAll returns the roster ordered by username.
func (r *UserRepository) GetAll(ctx context.Context) ([]model.User, error) {
	defer logger.DeferLogDuration("user.GetAll", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, username, display_name, avatar_url, is_online, created_at
		 FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetAll: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.Online, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("userRepo.GetAll scan: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u := &model.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, display_name, avatar_url, is_online, created_at
		 FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.Online, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByUsername: %w", err)
	}
	return u, nil
}

func (r *UserRepository) SetOnline(ctx context.Context, username string, online bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET is_online = $2 WHERE username = $1`, username, online)
	if err != nil {
		return fmt.Errorf("userRepo.SetOnline: %w", err)
	}
	return nil
}

// ResetOnline marks everyone offline; called at server boot since websocket
// state did not survive the restart.
func (r *UserRepository) ResetOnline(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET is_online = false`)
	if err != nil {
		return fmt.Errorf("userRepo.ResetOnline: %w", err)
	}
	return nil
}

// ToggleFollow flips the follower -> followee edge and returns the new state
// with both users' counters.
func (r *UserRepository) ToggleFollow(ctx context.Context, follower, followee string) (following bool, followers, followingCount int, err error) {
	defer logger.DeferLogDuration("user.ToggleFollow", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, 0, fmt.Errorf("userRepo.ToggleFollow begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM follows WHERE follower = $1 AND followee = $2`, follower, followee)
	if err != nil {
		return false, 0, 0, fmt.Errorf("userRepo.ToggleFollow delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx,
			`INSERT INTO follows (follower, followee) VALUES ($1, $2)`, follower, followee); err != nil {
			return false, 0, 0, fmt.Errorf("userRepo.ToggleFollow insert: %w", err)
		}
		following = true
	}

	err = tx.QueryRow(ctx,
		`SELECT
		   (SELECT count(*) FROM follows WHERE followee = $2),
		   (SELECT count(*) FROM follows WHERE follower = $1)`,
		follower, followee,
	).Scan(&followers, &followingCount)
	if err != nil {
		return false, 0, 0, fmt.Errorf("userRepo.ToggleFollow counts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, 0, fmt.Errorf("userRepo.ToggleFollow commit: %w", err)
	}
	return following, followers, followingCount, nil
}

// IsFollowing reports whether follower follows followee.
func (r *UserRepository) IsFollowing(ctx context.Context, follower, followee string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM follows WHERE follower = $1 AND followee = $2)`,
		follower, followee,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("userRepo.IsFollowing: %w", err)
	}
	return exists, nil
}

// GetProfile assembles the public profile with engagement counters.
func (r *UserRepository) GetProfile(ctx context.Context, username, viewer string) (*model.Profile, error) {
	defer logger.DeferLogDuration("user.GetProfile", time.Now())()
	p := &model.Profile{}
	err := r.pool.QueryRow(ctx,
		`SELECT u.username, u.display_name, u.bio, u.avatar_url,
		   (SELECT count(*) FROM follows WHERE followee = u.username),
		   (SELECT count(*) FROM follows WHERE follower = u.username),
		   (SELECT count(*) FROM clips WHERE author = u.username),
		   EXISTS(SELECT 1 FROM follows WHERE follower = $2 AND followee = u.username)
		 FROM users u WHERE u.username = $1`,
		username, viewer,
	).Scan(&p.Username, &p.DisplayName, &p.Bio, &p.AvatarURL,
		&p.FollowersCount, &p.FollowingCount, &p.ClipsCount, &p.IsFollowing)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetProfile: %w", err)
	}
	return p, nil
}
