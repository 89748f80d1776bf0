package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/activities/internal/domain"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type frame struct {
	Type       string          `json:"type"`
	ActivityID *uuid.UUID      `json:"activity_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Subscription delivers comments pushed for the joined activities.
type Subscription struct {
	conn *websocket.Conn
	done chan struct{}
	err  error
}

// Subscribe opens the realtime channel and joins activityIDs. The rooms are
// joined by the time it returns; onComment runs on the read goroutine.
func (c *Client) Subscribe(ctx context.Context, activityIDs []uuid.UUID, onComment func(domain.Comment)) (*Subscription, error) {
	wsURL, err := c.socketURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing realtime channel: %w", err)
	}

	for _, id := range activityIDs {
		if err := wsjson.Write(ctx, conn, frame{Type: "activity.join", ActivityID: &id}); err != nil {
			conn.Close(websocket.StatusInternalError, "join failed")
			return nil, fmt.Errorf("joining activity %s: %w", id, err)
		}
	}
	if err := wsjson.Write(ctx, conn, frame{Type: "ping"}); err != nil {
		conn.Close(websocket.StatusInternalError, "ping failed")
		return nil, fmt.Errorf("pinging: %w", err)
	}

	// frames are handled in order, so the pong confirms the joins
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			conn.Close(websocket.StatusInternalError, "handshake failed")
			return nil, fmt.Errorf("waiting for pong: %w", err)
		}
		if f.Type == "pong" {
			break
		}
		deliver(f, onComment)
	}

	sub := &Subscription{conn: conn, done: make(chan struct{})}
	go sub.read(ctx, onComment)
	return sub, nil
}

func (s *Subscription) read(ctx context.Context, onComment func(domain.Comment)) {
	defer close(s.done)
	for {
		var f frame
		if err := wsjson.Read(ctx, s.conn, &f); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				s.err = err
			}
			return
		}
		deliver(f, onComment)
	}
}

func deliver(f frame, onComment func(domain.Comment)) {
	if f.Type != "comment.new" {
		return
	}
	var c domain.Comment
	if err := json.Unmarshal(f.Payload, &c); err != nil {
		return
	}
	onComment(c)
}

// Done closes once the read loop has stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err is the read failure, if any; valid after Done.
func (s *Subscription) Err() error { return s.err }

func (s *Subscription) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

// Listen subscribes to activityIDs and appends every pushed comment.
func (c *Cache) Listen(ctx context.Context, activityIDs ...uuid.UUID) (*Subscription, error) {
	return c.client.Subscribe(ctx, activityIDs, c.Append)
}

func (c *Client) socketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	c.mu.RLock()
	q := url.Values{"token": {c.token}}
	c.mu.RUnlock()
	u.RawQuery = q.Encode()
	return u.String(), nil
}
