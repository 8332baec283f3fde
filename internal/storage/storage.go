// Package storage defines the persistence boundary of the engine.  The
// Store interface covers plain reads; every read-modify-write runs
// through InTx against the Tx interface, whose implementations must
// provide row-level locking (SELECT ... FOR UPDATE semantics) so that
// concurrent joins, kicks and payment completions cannot lose updates.
// Services own validation and orchestration; storage owns persistence
// only.
package storage

import (
	"context"
	"time"

	"github.com/moimlab/moim-server/internal/model"
)

// Store is the read side plus the transaction entry point.  The MySQL
// implementation lives in storage/mysql; storage/memory provides an
// in-process implementation with the same locking semantics for tests.
type Store interface {
	// InTx runs fn inside one transaction.  A non-nil error from fn
	// rolls back every write made through the Tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	ListRecruitingReservations(ctx context.Context, limit int) ([]model.Reservation, error)
	ListActiveMemberships(ctx context.Context, reservationID uint64) ([]model.Membership, error)
	HasActiveMembership(ctx context.Context, reservationID, userID uint64) (bool, error)

	// ListMessages returns up to limit messages with Seq > afterSeq in
	// ascending Seq order.
	ListMessages(ctx context.Context, roomID, afterSeq uint64, limit int) ([]model.Message, error)
	GetReadCursor(ctx context.Context, roomID, userID uint64) (uint64, error)
	MaxMessageSeq(ctx context.Context, roomID uint64) (uint64, error)

	GetPaymentSession(ctx context.Context, reservationID uint64) (*model.PaymentSession, error)
	ListPaymentRecords(ctx context.Context, sessionID uint64) ([]model.PaymentRecord, error)

	GetStore(ctx context.Context, id uint64) (*model.Store, error)
	ListStores(ctx context.Context) ([]model.Store, error)
	CreateStore(ctx context.Context, s *model.Store) error
}

// Tx is the write side.  GetReservationForUpdate and
// GetPaymentSessionForUpdate lock the row for the remainder of the
// transaction; callers re-validate preconditions after the locked read.
type Tx interface {
	// reservations
	GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)
	CreateReservation(ctx context.Context, r *model.Reservation) error
	UpdateReservation(ctx context.Context, r *model.Reservation) error

	// memberships; GetMembership returns kicked rows too so callers can
	// distinguish "never joined" from "was kicked".
	GetMembership(ctx context.Context, reservationID, userID uint64) (*model.Membership, error)
	CreateMembership(ctx context.Context, m *model.Membership) error
	DeleteMembership(ctx context.Context, reservationID, userID uint64) error
	MarkMembershipKicked(ctx context.Context, reservationID, userID uint64) error
	// ListActiveMemberships orders by joined_at ascending (then ID) so
	// the first entry is the host-succession candidate.
	ListActiveMemberships(ctx context.Context, reservationID uint64) ([]model.Membership, error)
	CountActiveMemberships(ctx context.Context, reservationID uint64) (uint32, error)

	// messages
	NextMessageSeq(ctx context.Context, roomID uint64) (uint64, error)
	InsertMessage(ctx context.Context, m *model.Message) error
	MaxMessageSeq(ctx context.Context, roomID uint64) (uint64, error)
	// AdvanceReadCursor upserts the cursor to seq, keeping the greater
	// of the stored and given values.
	AdvanceReadCursor(ctx context.Context, roomID, userID, seq uint64) error

	// payments
	GetPaymentSessionForUpdate(ctx context.Context, reservationID uint64) (*model.PaymentSession, error)
	// GetLatestPaymentSessionForUpdate locks the reservation's most
	// recent session regardless of status (the payout path needs to
	// claim COMPLETED sessions).
	GetLatestPaymentSessionForUpdate(ctx context.Context, reservationID uint64) (*model.PaymentSession, error)
	CreatePaymentSession(ctx context.Context, s *model.PaymentSession) error
	UpdatePaymentSession(ctx context.Context, s *model.PaymentSession) error
	// DeletePaymentSession removes the session and all of its records.
	DeletePaymentSession(ctx context.Context, sessionID uint64) error
	CreatePaymentRecords(ctx context.Context, recs []model.PaymentRecord) error
	GetPaymentRecord(ctx context.Context, sessionID, userID uint64) (*model.PaymentRecord, error)
	CompletePaymentRecord(ctx context.Context, sessionID, userID uint64, method string, paidAt time.Time) error
	CountCompletedPayments(ctx context.Context, sessionID uint64) (uint32, error)
	ListPaymentRecords(ctx context.Context, sessionID uint64) ([]model.PaymentRecord, error)

	// stores
	GetStore(ctx context.Context, id uint64) (*model.Store, error)
}
