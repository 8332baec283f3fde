package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/storage"
)

// VenueService records which store a meetup settles its deposit with.
// Selection is host-only and frozen once a settlement session exists,
// since the per-person amount derives from the store's deposit.
type VenueService struct {
	store storage.Store
	ch    Channel
}

func NewVenueService(store storage.Store, ch Channel) *VenueService {
	if store == nil || ch == nil {
		panic("nil dependency passed to NewVenueService")
	}
	return &VenueService{store: store, ch: ch}
}

// SelectStore sets or clears (storeID == nil) the reservation's venue.
func (s *VenueService) SelectStore(ctx context.Context, reservationID, requesterID uint64, storeID *uint64) (*model.Reservation, error) {
	var (
		r      *model.Reservation
		msg    *model.Message
		chosen *model.Store
	)
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		r, err = tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.HostID != requesterID {
			return ErrPermissionDenied
		}
		if r.Status != model.ReservationRecruiting && r.Status != model.ReservationClosed {
			return ErrInvalidAction
		}
		if _, err := tx.GetPaymentSessionForUpdate(ctx, reservationID); err == nil {
			return ErrPaymentAlreadyStarted
		} else if !errors.Is(err, storage.ErrSessionNotFound) {
			return err
		}
		body := "the venue selection was cleared"
		if storeID != nil {
			chosen, err = tx.GetStore(ctx, *storeID)
			if err != nil {
				return err
			}
			body = fmt.Sprintf("venue selected: %s (deposit %d per group)", chosen.Name, chosen.DepositAmount)
			now := time.Now().UTC()
			r.StoreID = storeID
			r.StoreSelectedBy = &requesterID
			r.StoreSelectedAt = &now
		} else {
			if r.StoreID == nil {
				return ErrInvalidAction
			}
			r.StoreID = nil
			r.StoreSelectedBy = nil
			r.StoreSelectedAt = nil
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
	ev := StoreEvent{EventMeta: meta(EventStoreSelected, reservationID, requesterID)}
	if chosen != nil {
		ev.StoreID = chosen.ID
		ev.StoreName = chosen.Name
		ev.DepositAmount = chosen.DepositAmount
	}
	s.ch.Publish(reservationID, EventStoreSelected, ev)
	return r, nil
}

// ListStores exposes the venue catalog.
func (s *VenueService) ListStores(ctx context.Context) ([]model.Store, error) {
	return s.store.ListStores(ctx)
}

// GetStore returns a single catalog entry.
func (s *VenueService) GetStore(ctx context.Context, id uint64) (*model.Store, error) {
	return s.store.GetStore(ctx, id)
}

// CreateStore registers a venue; handlers restrict this to owners.
func (s *VenueService) CreateStore(ctx context.Context, st *model.Store) error {
	return s.store.CreateStore(ctx, st)
}
