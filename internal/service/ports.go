package service

import (
	"context"

	"github.com/moimlab/moim-server/internal/queue"
)

// Channel is the real-time fan-out the engine publishes to after a
// transaction commits.  Implementations must deliver events for one
// room to each subscriber in publish order; delivery to users not
// currently subscribed is silently dropped (history recovery goes
// through the message table).  The hub package provides the WebSocket
// implementation; tests inject a recorder.
type Channel interface {
	// Publish fans payload out to every subscriber of the room.
	Publish(roomID uint64, event string, payload any)
	// Present returns the user IDs currently subscribed to the room,
	// used for read-on-send cursor advancement.
	Present(roomID uint64) []uint64
}

// Notifier is the fire-and-forget push-notification side channel.
// Dispatch must never block the caller and its failures must never
// affect the outcome of the triggering operation.
type Notifier interface {
	Dispatch(ev queue.NotificationEvent)
}

// Gateway is the external payment provider.  Confirm returns nil only
// for a DONE confirmation (or the provider's "already processed"
// response, which is treated as success for retry tolerance).
type Gateway interface {
	Confirm(ctx context.Context, paymentKey, orderID string, amount int64) error
	Release(ctx context.Context, paymentKey, payoutAccount string) error
}
