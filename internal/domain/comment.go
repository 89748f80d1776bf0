package domain

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID         uuid.UUID `json:"id"`
	ActivityID uuid.UUID `json:"activity_id"`
	AuthorID   uuid.UUID `json:"-"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	// Joined fields
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Image       *string `json:"image,omitempty"`
}
