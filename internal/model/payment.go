package model

import "time"

// Payment session statuses.
const (
	PaymentInProgress = "IN_PROGRESS" // collecting participant payments
	PaymentCompleted  = "COMPLETED"   // every participant has paid
	PaymentReleased   = "RELEASED"    // deposit paid out to the venue
)

// Payment record statuses.
const (
	PaymentRecordPending   = "PENDING"
	PaymentRecordCompleted = "COMPLETED"
)

// PaymentSession is one settlement run for a reservation's venue
// deposit.  At most one IN_PROGRESS session exists per reservation.
// CompletedPayments is always recomputed from the record rows, never
// incremented blindly, so it stays correct under concurrent payments.
//
// Fields:
//  ID                – primary key identifier.
//  ReservationID     – reservation being settled.
//  StoreID           – venue whose deposit is collected.
//  PerPersonAmount   – ceil(deposit / participants), in KRW.
//  TotalAmount       – PerPersonAmount × TotalParticipants; may exceed
//                      the configured deposit by the rounding surplus.
//  TotalParticipants – participant count frozen at session start.
//  CompletedPayments – number of COMPLETED records.
//  Deadline          – pay-by time included in broadcasts; not
//                      enforced by the engine itself.
//  Status            – IN_PROGRESS, COMPLETED or RELEASED.
//  CreatedAt         – timestamp of creation.
type PaymentSession struct {
	ID                uint64    // payment_sessions.id
	ReservationID     uint64    // payment_sessions.reservation_id
	StoreID           uint64    // payment_sessions.store_id
	PerPersonAmount   int64     // payment_sessions.per_person_amount
	TotalAmount       int64     // payment_sessions.total_amount
	TotalParticipants uint32    // payment_sessions.total_participants
	CompletedPayments uint32    // payment_sessions.completed_payments
	Deadline          time.Time // payment_sessions.deadline
	Status            string    // payment_sessions.status
	CreatedAt         time.Time // payment_sessions.created_at
}

// PaymentRecord is one participant's ledger entry within a session.
// The PENDING→COMPLETED transition is one-way; a second completion
// attempt is rejected rather than double-counted.
//
// Fields:
//  ID        – primary key identifier.
//  SessionID – owning payment session.
//  UserID    – paying participant.
//  Status    – PENDING or COMPLETED.
//  Method    – payment method reported on completion (nullable).
//  PaidAt    – completion timestamp (nullable).
type PaymentRecord struct {
	ID        uint64     // payment_records.id
	SessionID uint64     // payment_records.session_id
	UserID    uint64     // payment_records.user_id
	Status    string     // payment_records.status
	Method    *string    // payment_records.method (nullable)
	PaidAt    *time.Time // payment_records.paid_at (nullable)
}
