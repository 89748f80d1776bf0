package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/logging"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	commandTimeout = 10 * time.Second
	maxMessageSize = 8192
	sendBufSize    = 256
)

// CommentPoster persists comments sent over the socket.
type CommentPoster interface {
	Post(ctx context.Context, activityID uuid.UUID, authorUsername, body string) (*domain.Comment, error)
}

// Client is a single WebSocket connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	comments CommentPoster
	userID   uuid.UUID
	username string

	rooms map[uuid.UUID]struct{}
	mu    sync.RWMutex

	send chan []byte
	done chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, comments CommentPoster, userID uuid.UUID, username string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		comments: comments,
		userID:   userID,
		username: username,
		rooms:    make(map[uuid.UUID]struct{}),
		send:     make(chan []byte, sendBufSize),
		done:     make(chan struct{}),
	}
}

func (c *Client) InRoom(activityID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rooms[activityID]
	return ok
}

func (c *Client) Join(activityID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[activityID] = struct{}{}
}

func (c *Client) Leave(activityID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, activityID)
}

// ReadPump reads events until the connection fails or ctx ends.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-ctx.Done():
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	l := logging.L().With().Str(logging.FieldUserID, c.userID.String()).Logger()

	for {
		var event Event
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				l.Debug().Msg("ws: client disconnected")
			} else {
				l.Warn().Err(err).Msg("ws: read error")
			}
			return
		}

		c.handleEvent(ctx, &event)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}

		case <-c.done:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) handleEvent(ctx context.Context, event *Event) {
	switch event.Type {
	case EventTypeActivityJoin:
		if event.ActivityID == nil {
			c.sendError("INVALID_PAYLOAD", "activity_id required")
			return
		}
		c.Join(*event.ActivityID)

	case EventTypeActivityLeave:
		if event.ActivityID == nil {
			c.sendError("INVALID_PAYLOAD", "activity_id required")
			return
		}
		c.Leave(*event.ActivityID)

	case EventTypeCommentSend:
		c.handleCommentSend(ctx, event)

	case EventTypePing:
		c.enqueue(&Event{Type: EventTypePong})

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

// handleCommentSend persists the comment; the new comment reaches the room
// through the service's notifier, not from here.
func (c *Client) handleCommentSend(ctx context.Context, event *Event) {
	if event.ActivityID == nil {
		c.sendError("INVALID_PAYLOAD", "activity_id required")
		return
	}
	var p CommentSendPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		c.sendError("INVALID_PAYLOAD", "invalid comment.send payload")
		return
	}

	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if _, err := c.comments.Post(cctx, *event.ActivityID, c.username, p.Body); err != nil {
		code, msg := errorCode(err)
		if code == "INTERNAL_ERROR" {
			l := logging.L()
			l.Error().Err(err).Str(logging.FieldUserID, c.userID.String()).Msg("ws: posting comment failed")
		}
		c.sendError(code, msg)
	}
}

func errorCode(err error) (string, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND", err.Error()
	case errors.Is(err, domain.ErrConflict):
		return "CONFLICT", err.Error()
	case errors.Is(err, domain.ErrInvalidOperation):
		return "INVALID_OPERATION", err.Error()
	default:
		return "INTERNAL_ERROR", "Something went wrong"
	}
}

func (c *Client) sendError(code, message string) {
	evt, err := NewEvent(EventTypeError, nil, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	c.enqueue(evt)
}

// enqueue drops the event when the buffer is full.
func (c *Client) enqueue(evt *Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
