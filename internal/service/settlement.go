package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/queue"
	"github.com/moimlab/moim-server/internal/storage"
)

// payDeadline is how long participants have to complete the deposit
// payment after the host starts a settlement.  The deadline is
// advisory: it is broadcast and included in notifications but the
// engine does not expire sessions on its own.
const payDeadline = 72 * time.Hour

// SettlementService runs the deposit split: one session per
// reservation, one record per participant, external confirmation
// through the payment gateway before any row is marked paid.
type SettlementService struct {
	store    storage.Store
	ch       Channel
	notifier Notifier
	gateway  Gateway
}

func NewSettlementService(store storage.Store, ch Channel, notifier Notifier, gateway Gateway) *SettlementService {
	if store == nil || ch == nil || notifier == nil || gateway == nil {
		panic("nil dependency passed to NewSettlementService")
	}
	return &SettlementService{store: store, ch: ch, notifier: notifier, gateway: gateway}
}

// paymentGuide is the structured payload attached to the settlement
// system message so clients can render the per-participant table.
type paymentGuide struct {
	StoreName       string   `json:"store_name"`
	PerPersonAmount int64    `json:"per_person_amount"`
	TotalAmount     int64    `json:"total_amount"`
	Deadline        string   `json:"deadline"`
	Participants    []uint64 `json:"participants"`
}

// Start opens a payment session for the reservation's venue deposit.
// Recruitment must be closed and a venue selected.  A leftover session
// with zero completed payments is discarded and replaced; a session
// anyone already paid into blocks a restart.
func (s *SettlementService) Start(ctx context.Context, reservationID, requesterID uint64) (*model.PaymentSession, error) {
	var (
		sess *model.PaymentSession
		msg  *model.Message
	)
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		r, err := tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.HostID != requesterID {
			return ErrForbidden
		}
		if r.Status != model.ReservationClosed || r.StoreID == nil {
			return ErrInvalidConditions
		}
		if prev, err := tx.GetPaymentSessionForUpdate(ctx, reservationID); err == nil {
			done, err := tx.CountCompletedPayments(ctx, prev.ID)
			if err != nil {
				return err
			}
			if done > 0 {
				return ErrPaymentAlreadyStarted
			}
			if err := tx.DeletePaymentSession(ctx, prev.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, storage.ErrSessionNotFound) {
			return err
		}
		venue, err := tx.GetStore(ctx, *r.StoreID)
		if err != nil {
			return err
		}
		if venue.DepositAmount <= 0 {
			return ErrNoDepositAmount
		}
		members, err := tx.ListActiveMemberships(ctx, reservationID)
		if err != nil {
			return err
		}
		n := uint32(len(members))
		if n == 0 {
			return ErrInvalidConditions
		}
		// Ceiling division: the group never collects less than the
		// deposit; the rounding surplus stays with the venue.
		perPerson := (venue.DepositAmount + int64(n) - 1) / int64(n)
		sess = &model.PaymentSession{
			ReservationID:     reservationID,
			StoreID:           venue.ID,
			PerPersonAmount:   perPerson,
			TotalAmount:       perPerson * int64(n),
			TotalParticipants: n,
			Deadline:          time.Now().UTC().Add(payDeadline),
			Status:            model.PaymentInProgress,
		}
		if err := tx.CreatePaymentSession(ctx, sess); err != nil {
			return err
		}
		recs := make([]model.PaymentRecord, 0, n)
		guide := paymentGuide{
			StoreName:       venue.Name,
			PerPersonAmount: perPerson,
			TotalAmount:     sess.TotalAmount,
			Deadline:        sess.Deadline.Format(time.RFC3339),
		}
		for _, m := range members {
			recs = append(recs, model.PaymentRecord{
				SessionID: sess.ID,
				UserID:    m.UserID,
				Status:    model.PaymentRecordPending,
			})
			guide.Participants = append(guide.Participants, m.UserID)
		}
		if err := tx.CreatePaymentRecords(ctx, recs); err != nil {
			return err
		}
		msg, err = appendSystemMessage(ctx, tx, reservationID,
			fmt.Sprintf("deposit settlement started: %d per person for %s", perPerson, venue.Name), guide)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.ch.Publish(reservationID, EventMessage, messageEvent(msg))
	s.ch.Publish(reservationID, EventPaymentStarted, PaymentEvent{
		EventMeta:         meta(EventPaymentStarted, reservationID, requesterID),
		SessionID:         sess.ID,
		PerPersonAmount:   sess.PerPersonAmount,
		TotalAmount:       sess.TotalAmount,
		TotalParticipants: sess.TotalParticipants,
		Deadline:          sess.Deadline,
	})
	s.notifier.Dispatch(queue.NotificationEvent{
		Type:          queue.NotifyPaymentRequest,
		ReservationID: reservationID,
		ActorID:       requesterID,
		Amount:        sess.PerPersonAmount,
		Deadline:      sess.Deadline.Format(time.RFC3339),
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})
	return sess, nil
}

// CompletePayment confirms the participant's payment with the gateway
// and marks their record paid.  The gateway call runs before the
// transaction so the row lock is never held across network I/O; the
// locked section re-validates everything the pre-check saw.
func (s *SettlementService) CompletePayment(ctx context.Context, reservationID, userID uint64, paymentKey, orderID, method string) (*model.PaymentSession, error) {
	pre, err := s.store.GetPaymentSession(ctx, reservationID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrNoPaymentSession
		}
		return nil, err
	}
	if pre.Status != model.PaymentInProgress {
		return nil, ErrNoPaymentSession
	}
	if err := s.gateway.Confirm(ctx, paymentKey, orderID, pre.PerPersonAmount); err != nil {
		s.notifier.Dispatch(queue.NotificationEvent{
			Type:          queue.NotifyPaymentFailed,
			ReservationID: reservationID,
			ActorID:       userID,
			Amount:        pre.PerPersonAmount,
			OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		})
		return nil, fmt.Errorf("%w: %v", ErrPaymentConfirm, err)
	}

	var (
		sess    *model.PaymentSession
		msg     *model.Message
		allPaid bool
	)
	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		sess, err = tx.GetPaymentSessionForUpdate(ctx, reservationID)
		if err != nil {
			if errors.Is(err, storage.ErrSessionNotFound) {
				return ErrNoPaymentSession
			}
			return err
		}
		rec, err := tx.GetPaymentRecord(ctx, sess.ID, userID)
		if err != nil {
			if errors.Is(err, storage.ErrRecordNotFound) {
				return ErrNotParticipant
			}
			return err
		}
		if rec.Status == model.PaymentRecordCompleted {
			return ErrAlreadyPaid
		}
		if err := tx.CompletePaymentRecord(ctx, sess.ID, userID, method, time.Now().UTC()); err != nil {
			if errors.Is(err, storage.ErrRecordNotFound) {
				return ErrAlreadyPaid
			}
			return err
		}
		sess.CompletedPayments, err = tx.CountCompletedPayments(ctx, sess.ID)
		if err != nil {
			return err
		}
		if sess.CompletedPayments >= sess.TotalParticipants {
			sess.Status = model.PaymentCompleted
			allPaid = true
		}
		if err := tx.UpdatePaymentSession(ctx, sess); err != nil {
			return err
		}
		body := fmt.Sprintf("user %d paid the deposit (%d/%d)", userID, sess.CompletedPayments, sess.TotalParticipants)
		if allPaid {
			body = "every participant has paid the deposit"
		}
		msg, err = appendSystemMessage(ctx, tx, reservationID, body, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.ch.Publish(reservationID, EventMessage, messageEvent(msg))
	s.ch.Publish(reservationID, EventPaymentCompleted, PaymentEvent{
		EventMeta:         meta(EventPaymentCompleted, reservationID, userID),
		SessionID:         sess.ID,
		UserID:            userID,
		CompletedPayments: sess.CompletedPayments,
		TotalParticipants: sess.TotalParticipants,
	})
	if allPaid {
		s.ch.Publish(reservationID, EventPaymentAllCompleted, PaymentEvent{
			EventMeta:         meta(EventPaymentAllCompleted, reservationID, userID),
			SessionID:         sess.ID,
			CompletedPayments: sess.CompletedPayments,
			TotalParticipants: sess.TotalParticipants,
		})
	}
	s.notifier.Dispatch(queue.NotificationEvent{
		Type:          queue.NotifyPaymentSuccess,
		ReservationID: reservationID,
		ActorID:       userID,
		Amount:        sess.PerPersonAmount,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})
	return sess, nil
}

// Reset discards a session nobody has paid into yet so the host can
// change the venue or restart with a different participant set.
func (s *SettlementService) Reset(ctx context.Context, reservationID, requesterID uint64) error {
	var msg *model.Message
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		r, err := tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.HostID != requesterID {
			return ErrForbidden
		}
		sess, err := tx.GetPaymentSessionForUpdate(ctx, reservationID)
		if err != nil {
			if errors.Is(err, storage.ErrSessionNotFound) {
				return ErrNoPaymentSession
			}
			return err
		}
		done, err := tx.CountCompletedPayments(ctx, sess.ID)
		if err != nil {
			return err
		}
		if done > 0 {
			return ErrPaymentInProgress
		}
		if err := tx.DeletePaymentSession(ctx, sess.ID); err != nil {
			return err
		}
		msg, err = appendSystemMessage(ctx, tx, reservationID, "the deposit settlement was cancelled by the host", nil)
		return err
	})
	if err != nil {
		return err
	}
	s.ch.Publish(reservationID, EventMessage, messageEvent(msg))
	s.ch.Publish(reservationID, EventPaymentReset, PaymentEvent{
		EventMeta: meta(EventPaymentReset, reservationID, requesterID),
	})
	return nil
}

// ReleaseDeposit pays the collected deposit out to the venue once the
// store confirmed the reservation and every participant has paid.  The
// session is claimed (COMPLETED → RELEASED) under its row lock before
// the gateway call, so a repeated request can never trigger a second
// payout; a gateway failure rolls the claim back so the host can retry.
func (s *SettlementService) ReleaseDeposit(ctx context.Context, reservationID, requesterID uint64, paymentKey, payoutAccount string) error {
	var sess *model.PaymentSession
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		r, err := tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.HostID != requesterID {
			return ErrForbidden
		}
		sess, err = tx.GetLatestPaymentSessionForUpdate(ctx, reservationID)
		if err != nil {
			if errors.Is(err, storage.ErrSessionNotFound) {
				return ErrInvalidConditions
			}
			return err
		}
		if r.Status != model.ReservationConfirmed || sess.Status != model.PaymentCompleted {
			return ErrInvalidConditions
		}
		sess.Status = model.PaymentReleased
		return tx.UpdatePaymentSession(ctx, sess)
	})
	if err != nil {
		return err
	}

	if err := s.gateway.Release(ctx, paymentKey, payoutAccount); err != nil {
		revertErr := s.store.InTx(ctx, func(tx storage.Tx) error {
			cur, txErr := tx.GetLatestPaymentSessionForUpdate(ctx, reservationID)
			if txErr != nil {
				return txErr
			}
			if cur.ID != sess.ID || cur.Status != model.PaymentReleased {
				return nil
			}
			cur.Status = model.PaymentCompleted
			return tx.UpdatePaymentSession(ctx, cur)
		})
		if revertErr != nil {
			log.Printf("settlement: revert payout claim for reservation %d: %v", reservationID, revertErr)
		}
		return fmt.Errorf("release deposit: %w", err)
	}

	s.notifier.Dispatch(queue.NotificationEvent{
		Type:          queue.NotifyPayoutCompleted,
		ReservationID: reservationID,
		ActorID:       requesterID,
		Amount:        sess.TotalAmount,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// Status returns the reservation's latest session and its records.
func (s *SettlementService) Status(ctx context.Context, reservationID uint64) (*model.PaymentSession, []model.PaymentRecord, error) {
	sess, err := s.store.GetPaymentSession(ctx, reservationID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, nil, ErrNoPaymentSession
		}
		return nil, nil, err
	}
	recs, err := s.store.ListPaymentRecords(ctx, sess.ID)
	if err != nil {
		return nil, nil, err
	}
	return sess, recs, nil
}
