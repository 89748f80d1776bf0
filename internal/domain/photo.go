package domain

import (
	"time"

	"github.com/google/uuid"
)

type Photo struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"-"`
	URL        string    `json:"url"`
	StorageKey string    `json:"-"`
	IsMain     bool      `json:"is_main"`
	CreatedAt  time.Time `json:"created_at"`
}
