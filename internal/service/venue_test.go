package service

import (
	"context"
	"errors"
	"testing"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/storage"
)

func TestSelectStore(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)
	e.mustJoin(t, r.ID, 2)
	storeID := e.seedVenue(t, 15000)

	if _, err := e.venue.SelectStore(context.Background(), r.ID, 2, &storeID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("non-host select: err = %v, want ErrPermissionDenied", err)
	}

	unknown := uint64(777)
	if _, err := e.venue.SelectStore(context.Background(), r.ID, 1, &unknown); !errors.Is(err, storage.ErrStoreNotFound) {
		t.Errorf("unknown store: err = %v, want ErrStoreNotFound", err)
	}

	got, err := e.venue.SelectStore(context.Background(), r.ID, 1, &storeID)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.StoreID == nil || *got.StoreID != storeID {
		t.Fatalf("store id = %v, want %d", got.StoreID, storeID)
	}
	if got.StoreSelectedBy == nil || *got.StoreSelectedBy != 1 {
		t.Errorf("selected by = %v, want host", got.StoreSelectedBy)
	}
	if got.StoreSelectedAt == nil {
		t.Error("selected at not recorded")
	}
	if n := e.ch.count(r.ID, EventStoreSelected); n != 1 {
		t.Errorf("store events = %d, want 1", n)
	}
}

func TestClearStoreSelection(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)
	storeID := e.seedVenue(t, 15000)

	// Clearing with nothing selected is a no-op worth rejecting.
	if _, err := e.venue.SelectStore(context.Background(), r.ID, 1, nil); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("clear empty selection: err = %v, want ErrInvalidAction", err)
	}

	if _, err := e.venue.SelectStore(context.Background(), r.ID, 1, &storeID); err != nil {
		t.Fatalf("select: %v", err)
	}
	got, err := e.venue.SelectStore(context.Background(), r.ID, 1, nil)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got.StoreID != nil || got.StoreSelectedBy != nil || got.StoreSelectedAt != nil {
		t.Errorf("selection not fully cleared: %+v", got)
	}
}

func TestSelectStoreBlockedAfterConfirmation(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)
	storeID := e.closeWithVenue(t, r, 15000)
	if _, err := e.res.SetStatus(context.Background(), r.ID, 1, model.ReservationConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := e.venue.SelectStore(context.Background(), r.ID, 1, &storeID); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("select after confirmation: err = %v, want ErrInvalidAction", err)
	}
}
