package service

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/moimlab/moim-server/internal/model"
)

// Event names broadcast on the messaging channel.
const (
	EventMessage             = "message"
	EventJoined              = "reservation.joined"
	EventLeft                = "reservation.left"
	EventKicked              = "reservation.kicked"
	EventHostChanged         = "reservation.host_changed"
	EventStatus              = "reservation.status"
	EventStoreSelected       = "store.selected"
	EventPaymentStarted      = "payment.started"
	EventPaymentCompleted    = "payment.completed"
	EventPaymentAllCompleted = "payment.all_completed"
	EventPaymentReset        = "payment.reset"
)

// EventMeta carries the fields every broadcast payload includes, so a
// consumer can reconstruct state purely from the event stream plus the
// message table.
type EventMeta struct {
	Type    string    `json:"type"`
	RoomID  uint64    `json:"room_id"`
	ActorID uint64    `json:"actor_id,omitempty"`
	At      time.Time `json:"at"`
}

func meta(event string, roomID, actorID uint64) EventMeta {
	return EventMeta{Type: event, RoomID: roomID, ActorID: actorID, At: time.Now().UTC()}
}

// MemberEvent accompanies joins, leaves, kicks and host transfers.
type MemberEvent struct {
	EventMeta
	UserID           uint64 `json:"user_id"`
	NewHostID        uint64 `json:"new_host_id,omitempty"`
	Status           string `json:"status"`
	ParticipantCount uint32 `json:"participant_count"`
	MaxParticipants  uint32 `json:"max_participants"`
}

// StatusEvent accompanies explicit lifecycle transitions.
type StatusEvent struct {
	EventMeta
	Status string `json:"status"`
}

// StoreEvent accompanies venue selection and deselection; StoreID is
// zero when the selection was cleared.
type StoreEvent struct {
	EventMeta
	StoreID       uint64 `json:"store_id,omitempty"`
	StoreName     string `json:"store_name,omitempty"`
	DepositAmount int64  `json:"deposit_amount,omitempty"`
}

// PaymentEvent accompanies settlement lifecycle events.
type PaymentEvent struct {
	EventMeta
	SessionID         uint64    `json:"session_id"`
	UserID            uint64    `json:"user_id,omitempty"`
	PerPersonAmount   int64     `json:"per_person_amount,omitempty"`
	TotalAmount       int64     `json:"total_amount,omitempty"`
	CompletedPayments uint32    `json:"completed_payments"`
	TotalParticipants uint32    `json:"total_participants"`
	Deadline          time.Time `json:"deadline,omitempty"`
}

// MessageEvent mirrors one persisted message.  System messages carry
// the reserved sender value instead of a user ID.
type MessageEvent struct {
	EventMeta
	Seq       uint64          `json:"seq"`
	Sender    string          `json:"sender"`
	Body      string          `json:"body"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// messageEvent converts a persisted message into its broadcast form.
func messageEvent(m *model.Message) MessageEvent {
	ev := MessageEvent{
		EventMeta: EventMeta{Type: EventMessage, RoomID: m.RoomID, At: m.CreatedAt},
		Seq:       m.Seq,
		Sender:    model.SystemSender,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
	if m.SenderID != nil {
		ev.ActorID = *m.SenderID
		ev.Sender = strconv.FormatUint(*m.SenderID, 10)
	}
	if m.Payload != nil {
		ev.Payload = json.RawMessage(*m.Payload)
	}
	return ev
}
