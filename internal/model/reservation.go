package model

import "time"

// Reservation lifecycle statuses.  A reservation recruits participants
// until its capacity is reached, then waits for the deposit settlement
// and the store's decision.
const (
	ReservationRecruiting = "RECRUITING" // still accepting participants
	ReservationClosed     = "CLOSED"     // capacity reached or closed by host
	ReservationConfirmed  = "CONFIRMED"  // booking honored by the store
	ReservationCancelled  = "CANCELLED"  // all participants left
	ReservationRejected   = "REJECTED"   // booking declined by the store
)

// Reservation is the bookable group-meetup entity.  It owns the chat
// room of the same ID, the memberships of its participants and at most
// one live payment session.
//
// Fields:
//  ID               – primary key identifier; doubles as the chat room ID.
//  HostID           – user currently designated as host; transferable.
//  Title            – short description shown in listings.
//  Status           – lifecycle status (see constants above).
//  ParticipantCount – number of active (non-kicked) members.
//  MaxParticipants  – capacity; ParticipantCount never exceeds it.
//  StoreID          – selected venue, nil while none is chosen.
//  StoreSelectedBy  – user who made the current venue selection (nullable).
//  StoreSelectedAt  – when the current venue selection was made (nullable).
//  MeetingAt        – scheduled meetup time.
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type Reservation struct {
	ID               uint64     // reservations.id
	HostID           uint64     // reservations.host_id
	Title            string     // reservations.title
	Status           string     // reservations.status
	ParticipantCount uint32     // reservations.participant_count
	MaxParticipants  uint32     // reservations.max_participants
	StoreID          *uint64    // reservations.store_id (nullable)
	StoreSelectedBy  *uint64    // reservations.store_selected_by (nullable)
	StoreSelectedAt  *time.Time // reservations.store_selected_at (nullable)
	MeetingAt        time.Time  // reservations.meeting_at
	CreatedAt        time.Time  // reservations.created_at
	UpdatedAt        time.Time  // reservations.updated_at
}

// IsFull reports whether the reservation has reached its capacity.
func (r *Reservation) IsFull() bool {
	return r.ParticipantCount >= r.MaxParticipants
}
