package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	Bio            *string   `json:"bio,omitempty"`
	ImageURL       *string   `json:"image,omitempty"`
	PasswordHash   string    `json:"-"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Profile is the public view of a user, relative to whoever is looking at it.
type Profile struct {
	Username       string  `json:"username"`
	DisplayName    string  `json:"display_name"`
	Bio            *string `json:"bio,omitempty"`
	Image          *string `json:"image,omitempty"`
	FollowersCount int     `json:"followers_count"`
	FollowingCount int     `json:"following_count"`
	Following      bool    `json:"following"`
	Photos         []Photo `json:"photos,omitempty"`
}
