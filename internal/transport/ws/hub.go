package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/logging"
	"github.com/vedran77/activities/internal/observability"
)

// ErrHubBusy is returned when the broadcast queue is full.
var ErrHubBusy = errors.New("ws hub: broadcast queue full")

const broadcastQueueSize = 256

// Hub tracks connected clients and fans activity events out to the
// clients that joined that activity's room.
type Hub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
}

type broadcastMsg struct {
	activityID uuid.UUID
	data       []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, broadcastQueueSize),
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	l := logging.L()
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			observability.SetWSConnections(len(h.clients))
			l.Debug().Str(logging.FieldUserID, client.userID.String()).Int("total", len(h.clients)).Msg("ws hub: client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				l.Debug().Str(logging.FieldUserID, client.userID.String()).Int("total", len(h.clients)).Msg("ws hub: client disconnected")
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.InRoom(msg.activityID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// slow consumer
					h.drop(client)
				}
			}
		}
	}
}

// drop closes done but never send, so late enqueues from the read side stay safe.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.done)
	observability.SetWSConnections(len(h.clients))
}

// Broadcast queues an event for every client in the activity's room.
// It never blocks; a full queue yields ErrHubBusy.
func (h *Hub) Broadcast(activityID uuid.UUID, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ws hub: encoding event: %w", err)
	}
	select {
	case h.broadcast <- &broadcastMsg{activityID: activityID, data: data}:
		return nil
	default:
		return ErrHubBusy
	}
}

// BroadcastComment delivers a comment.new event to the comment's activity room.
func (h *Hub) BroadcastComment(c *domain.Comment) error {
	activityID := c.ActivityID
	evt, err := NewEvent(EventTypeCommentNew, &activityID, CommentPayload{Comment: *c})
	if err != nil {
		return fmt.Errorf("ws hub: encoding comment: %w", err)
	}
	return h.Broadcast(activityID, evt)
}
