// Package pubsub is the live-delivery port for persisted notifications.
package pubsub

import (
	"context"
	"fmt"
)

const broadcastChannel = "notify:broadcast"

// UserChannel returns the per-user live channel name, e.g. notify:user:u-1.
func UserChannel(userID string) string {
	return fmt.Sprintf("notify:user:%s", userID)
}

// BroadcastChannel returns the global live channel name.
func BroadcastChannel() string {
	return broadcastChannel
}

// LivePublisher pushes a serialized notification to connected clients.
// Delivery is best-effort; subscribers may miss messages.
type LivePublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
