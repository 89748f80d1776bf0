package domain

import (
	"time"

	"github.com/google/uuid"
)

// FollowEdge is directed: Observer follows Target.
type FollowEdge struct {
	ObserverID uuid.UUID `json:"observer_id"`
	TargetID   uuid.UUID `json:"target_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type FollowDirection string

const (
	Followers FollowDirection = "followers"
	Following FollowDirection = "following"
)

func (d FollowDirection) Valid() bool {
	return d == Followers || d == Following
}
