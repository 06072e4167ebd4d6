package model

import "time"

type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Online      bool      `json:"online"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile is the public profile view with engagement counters.
type Profile struct {
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	Bio            string `json:"bio,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	FollowersCount int    `json:"followers_count"`
	FollowingCount int    `json:"following_count"`
	ClipsCount     int    `json:"clips_count"`
	IsFollowing    bool   `json:"is_following"`
}
