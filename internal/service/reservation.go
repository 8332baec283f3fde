package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/queue"
	"github.com/moimlab/moim-server/internal/storage"
)

// ReservationService owns reservation capacity, lifecycle status and
// host identity.  It is the only component that mutates
// participant_count and status; every mutation runs under the
// reservation's row lock, and the channel/notifier are invoked only
// after the transaction commits.
type ReservationService struct {
	store    storage.Store
	ch       Channel
	notifier Notifier
}

// NewReservationService wires the engine's dependencies explicitly so
// it can be exercised without a live socket runtime.
func NewReservationService(store storage.Store, ch Channel, notifier Notifier) *ReservationService {
	if store == nil || ch == nil || notifier == nil {
		panic("nil dependency passed to NewReservationService")
	}
	return &ReservationService{store: store, ch: ch, notifier: notifier}
}

// Create opens a new meetup.  The creator becomes host and first
// member, and the chat room starts with a greeting system message.
func (s *ReservationService) Create(ctx context.Context, hostID uint64, title string, maxParticipants uint32, meetingAt time.Time) (*model.Reservation, error) {
	if title == "" || maxParticipants < 2 {
		return nil, ErrInvalidAction
	}
	var (
		r   *model.Reservation
		msg *model.Message
	)
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		r = &model.Reservation{
			HostID:           hostID,
			Title:            title,
			Status:           model.ReservationRecruiting,
			ParticipantCount: 1,
			MaxParticipants:  maxParticipants,
			MeetingAt:        meetingAt.UTC(),
		}
		if err := tx.CreateReservation(ctx, r); err != nil {
			return err
		}
		m := &model.Membership{ReservationID: r.ID, UserID: hostID}
		if err := tx.CreateMembership(ctx, m); err != nil {
			return err
		}
		var err error
		msg, err = appendSystemMessage(ctx, tx, r.ID,
			fmt.Sprintf("meetup opened, recruiting %d participants", maxParticipants), nil)
		if err != nil {
			return err
		}
		return tx.AdvanceReadCursor(ctx, r.ID, hostID, msg.Seq)
	})
	if err != nil {
		return nil, err
	}
	s.ch.Publish(r.ID, EventMessage, messageEvent(msg))
	return r, nil
}

// Join adds the user to the reservation, closing recruitment exactly
// when the increment reaches capacity.
func (s *ReservationService) Join(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	var (
		r   *model.Reservation
		msg *model.Message
	)
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		r, err = tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		m, err := tx.GetMembership(ctx, reservationID, userID)
		if err == nil {
			if m.Kicked {
				return ErrKicked
			}
			return ErrAlreadyJoined
		}
		if !errors.Is(err, storage.ErrMembershipNotFound) {
			return err
		}
		if r.Status != model.ReservationRecruiting || r.IsFull() {
			return ErrInvalidAction
		}
		if err := tx.CreateMembership(ctx, &model.Membership{ReservationID: reservationID, UserID: userID}); err != nil {
			if errors.Is(err, storage.ErrDuplicateMembership) {
				return ErrAlreadyJoined
			}
			return err
		}
		// Recount from the membership rows; never trust a +1 on the
		// possibly stale in-memory value.
		r.ParticipantCount, err = tx.CountActiveMemberships(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.IsFull() {
			r.Status = model.ReservationClosed
		}
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		msg, err = appendSystemMessage(ctx, tx, reservationID,
			fmt.Sprintf("user %d joined (%d/%d)", userID, r.ParticipantCount, r.MaxParticipants), nil)
		if err != nil {
			return err
		}
		return tx.AdvanceReadCursor(ctx, reservationID, userID, msg.Seq)
	})
	if err != nil {
		return nil, err
	}
	s.ch.Publish(reservationID, EventMessage, messageEvent(msg))
	s.ch.Publish(reservationID, EventJoined, MemberEvent{
		EventMeta:        meta(EventJoined, reservationID, userID),
		UserID:           userID,
		Status:           r.Status,
		ParticipantCount: r.ParticipantCount,
		MaxParticipants:  r.MaxParticipants,
	})
	s.notifier.Dispatch(queue.NotificationEvent{
		Type:          queue.NotifyUserJoined,
		ReservationID: reservationID,
		ActorID:       userID,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})
	return r, nil
}

// Leave removes the user.  A departing host hands the role to the
// earliest-joined remaining participant; when the last participant
// leaves the reservation is cancelled regardless of prior status.
func (s *ReservationService) Leave(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	var (
		r           *model.Reservation
		msg         *model.Message
		transferred bool
		cancelled   bool
	)
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		r, err = tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		m, err := tx.GetMembership(ctx, reservationID, userID)
		if err != nil {
			if errors.Is(err, storage.ErrMembershipNotFound) {
				return ErrNotParticipant
			}
			return err
		}
		if m.Kicked {
			return ErrNotParticipant
		}
		if err := tx.DeleteMembership(ctx, reservationID, userID); err != nil {
			return err
		}
		r.ParticipantCount, err = tx.CountActiveMemberships(ctx, reservationID)
		if err != nil {
			return err
		}
		body := fmt.Sprintf("user %d left (%d/%d)", userID, r.ParticipantCount, r.MaxParticipants)
		if r.ParticipantCount == 0 {
			r.Status = model.ReservationCancelled
			cancelled = true
			body = fmt.Sprintf("user %d left; the meetup was cancelled", userID)
		} else if userID == r.HostID {
			members, err := tx.ListActiveMemberships(ctx, reservationID)
			if err != nil {
				return err
			}
			r.HostID = members[0].UserID
			transferred = true
			body = fmt.Sprintf("user %d left; user %d is the new host (%d/%d)",
				userID, r.HostID, r.ParticipantCount, r.MaxParticipants)
		}
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		msg, err = appendSystemMessage(ctx, tx, reservationID, body, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.ch.Publish(reservationID, EventMessage, messageEvent(msg))
	s.ch.Publish(reservationID, EventLeft, MemberEvent{
		EventMeta:        meta(EventLeft, reservationID, userID),
		UserID:           userID,
		Status:           r.Status,
		ParticipantCount: r.ParticipantCount,
		MaxParticipants:  r.MaxParticipants,
	})
	if transferred {
		s.ch.Publish(reservationID, EventHostChanged, MemberEvent{
			EventMeta:        meta(EventHostChanged, reservationID, userID),
			UserID:           userID,
			NewHostID:        r.HostID,
			Status:           r.Status,
			ParticipantCount: r.ParticipantCount,
			MaxParticipants:  r.MaxParticipants,
		})
	}
	now := time.Now().UTC().Format(time.RFC3339)
	s.notifier.Dispatch(queue.NotificationEvent{
		Type:          queue.NotifyUserLeft,
		ReservationID: reservationID,
		ActorID:       userID,
		OccurredAt:    now,
	})
	if cancelled {
		s.ch.Publish(reservationID, EventStatus, StatusEvent{
			EventMeta: meta(EventStatus, reservationID, userID),
			Status:    r.Status,
		})
		s.notifier.Dispatch(queue.NotificationEvent{
			Type:          queue.NotifyReservationCancelled,
			ReservationID: reservationID,
			ActorID:       userID,
			OccurredAt:    now,
		})
	}
	return r, nil
}

// Kick flags the target's membership (the row is kept for the audit
// trail and to block rejoining) and reopens recruitment when the
// count drops below capacity.
func (s *ReservationService) Kick(ctx context.Context, reservationID, requesterID, targetID uint64) (*model.Reservation, error) {
	var (
		r   *model.Reservation
		msg *model.Message
	)
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		r, err = tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.HostID != requesterID {
			return ErrForbidden
		}
		if targetID == requesterID {
			return ErrInvalidAction
		}
		if r.Status != model.ReservationRecruiting && r.Status != model.ReservationClosed {
			return ErrInvalidAction
		}
		m, err := tx.GetMembership(ctx, reservationID, targetID)
		if err != nil {
			if errors.Is(err, storage.ErrMembershipNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if m.Kicked {
			return ErrUserNotFound
		}
		if err := tx.MarkMembershipKicked(ctx, reservationID, targetID); err != nil {
			return err
		}
		r.ParticipantCount, err = tx.CountActiveMemberships(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.ParticipantCount < r.MaxParticipants && r.Status == model.ReservationClosed {
			r.Status = model.ReservationRecruiting
		}
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		msg, err = appendSystemMessage(ctx, tx, reservationID,
			fmt.Sprintf("user %d was removed by the host (%d/%d)", targetID, r.ParticipantCount, r.MaxParticipants), nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.ch.Publish(reservationID, EventMessage, messageEvent(msg))
	s.ch.Publish(reservationID, EventKicked, MemberEvent{
		EventMeta:        meta(EventKicked, reservationID, requesterID),
		UserID:           targetID,
		Status:           r.Status,
		ParticipantCount: r.ParticipantCount,
		MaxParticipants:  r.MaxParticipants,
	})
	s.notifier.Dispatch(queue.NotificationEvent{
		Type:          queue.NotifyUserLeft,
		ReservationID: reservationID,
		ActorID:       requesterID,
		TargetID:      targetID,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})
	return r, nil
}

// SetStatus is the host's explicit lifecycle override: close
// recruitment early, reopen it while under capacity, or record the
// store's confirmed/rejected decision.
func (s *ReservationService) SetStatus(ctx context.Context, reservationID, requesterID uint64, newStatus string) (*model.Reservation, error) {
	var (
		r   *model.Reservation
		msg *model.Message
	)
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		r, err = tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.HostID != requesterID {
			return ErrForbidden
		}
		if !validTransition(r.Status, newStatus, r.ParticipantCount < r.MaxParticipants) {
			return ErrInvalidAction
		}
		r.Status = newStatus
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		msg, err = appendSystemMessage(ctx, tx, reservationID,
			fmt.Sprintf("reservation status changed to %s", newStatus), nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.ch.Publish(reservationID, EventMessage, messageEvent(msg))
	s.ch.Publish(reservationID, EventStatus, StatusEvent{
		EventMeta: meta(EventStatus, reservationID, requesterID),
		Status:    r.Status,
	})
	switch newStatus {
	case model.ReservationConfirmed:
		s.notifier.Dispatch(queue.NotificationEvent{
			Type:          queue.NotifyReservationConfirmed,
			ReservationID: reservationID,
			ActorID:       requesterID,
			OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		})
	case model.ReservationRejected:
		s.notifier.Dispatch(queue.NotificationEvent{
			Type:          queue.NotifyReservationRejected,
			ReservationID: reservationID,
			ActorID:       requesterID,
			OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		})
	}
	return r, nil
}

// validTransition encodes the explicit overrides the host may request.
// Capacity-driven transitions (close on full, cancel on empty) happen
// inside Join/Leave/Kick, not here.
func validTransition(from, to string, underCapacity bool) bool {
	switch {
	case from == model.ReservationRecruiting && to == model.ReservationClosed:
		return true
	case from == model.ReservationClosed && to == model.ReservationRecruiting:
		return underCapacity
	case from == model.ReservationClosed && to == model.ReservationConfirmed:
		return true
	case from == model.ReservationClosed && to == model.ReservationRejected:
		return true
	}
	return false
}

// Get returns the reservation with its current member list.
func (s *ReservationService) Get(ctx context.Context, reservationID uint64) (*model.Reservation, []model.Membership, error) {
	r, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.store.ListActiveMemberships(ctx, reservationID)
	if err != nil {
		return nil, nil, err
	}
	return r, members, nil
}

// ListOpen returns reservations still recruiting.
func (s *ReservationService) ListOpen(ctx context.Context, limit int) ([]model.Reservation, error) {
	return s.store.ListRecruitingReservations(ctx, limit)
}
