package ws

import (
	"context"

	"github.com/vedran77/activities/internal/domain"
)

// HubNotifier implements service.Notifier against this process's Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyNewComment(_ context.Context, c *domain.Comment) error {
	return n.hub.BroadcastComment(c)
}
