// Package queue defines payloads exchanged over the message broker.
package queue

// Notification event types consumed by the push-notification worker.
const (
	NotifyUserJoined           = "user-joined"
	NotifyUserLeft             = "user-left"
	NotifyReservationConfirmed = "reservation-confirmed"
	NotifyReservationRejected  = "reservation-rejected"
	NotifyReservationCancelled = "reservation-cancelled"
	NotifyPaymentRequest       = "payment-request"
	NotifyPaymentSuccess       = "payment-success"
	NotifyPaymentFailed        = "payment-failed"
	NotifyPayoutCompleted      = "payout-completed"
)

// NotificationEvent is published after a state change commits.  It
// carries enough for the delivery worker to build a push message
// without querying the primary database.
type NotificationEvent struct {
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservation_id"`
	ActorID       uint64 `json:"actor_id,omitempty"`
	TargetID      uint64 `json:"target_id,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	Deadline      string `json:"deadline,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
