package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeActivityJoin  = "activity.join"
	EventTypeActivityLeave = "activity.leave"
	EventTypeCommentSend   = "comment.send"
	EventTypePing          = "ping"
)

// Event types - Server → Client
const (
	EventTypeCommentNew = "comment.new"
	EventTypePong       = "pong"
	EventTypeError      = "error"
)

// Event is the envelope for every WebSocket message.
type Event struct {
	Type       string          `json:"type"`
	ActivityID *uuid.UUID      `json:"activity_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type CommentSendPayload struct {
	Body string `json:"body"`
}

// --- Server → Client payloads ---

type CommentPayload struct {
	domain.Comment
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, activityID *uuid.UUID, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:       eventType,
		ActivityID: activityID,
		Payload:    data,
		Timestamp:  time.Now().Unix(),
	}, nil
}
