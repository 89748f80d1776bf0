// Package events publishes domain events after successful commands.
// Publishing is best-effort: failures are logged and counted, never returned
// to the caller of the command.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/logging"
	"github.com/vedran77/activities/internal/observability"
)

const (
	ActivityCreated  = "activity.created"
	ActivityDeleted  = "activity.deleted"
	AttendanceJoined = "attendance.joined"
	AttendanceLeft   = "attendance.left"
	FollowCreated    = "follow.created"
	FollowRemoved    = "follow.removed"
	CommentPosted    = "comment.posted"
)

type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	ActorID    uuid.UUID `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// New builds an event; key groups related events onto one partition.
func New(eventType, key string, actorID uuid.UUID, data any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Key:        key,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// Emit publishes evt and swallows the error after logging it.
func Emit(ctx context.Context, p Publisher, evt Event) {
	if p == nil {
		return
	}
	err := p.Publish(ctx, evt)
	observability.RecordEventPublished(evt.Type, err)
	if err != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Str("event", evt.Type).Str("key", evt.Key).Msg("publishing event failed")
	}
}
