package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/moimlab/moim-server/internal/model"
)

func TestCreateReservation(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)

	if r.Status != model.ReservationRecruiting {
		t.Errorf("status = %s, want RECRUITING", r.Status)
	}
	if r.ParticipantCount != 1 {
		t.Errorf("participant count = %d, want 1", r.ParticipantCount)
	}
	members, err := e.store.ListActiveMemberships(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(members) != 1 || members[0].UserID != 1 {
		t.Errorf("memberships = %+v, want host only", members)
	}
	if got := e.ch.count(r.ID, EventMessage); got != 1 {
		t.Errorf("greeting messages published = %d, want 1", got)
	}
}

func TestJoinFillsAndCloses(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 3)

	r = e.mustJoin(t, r.ID, 2)
	if r.Status != model.ReservationRecruiting {
		t.Fatalf("status after 2/3 = %s, want RECRUITING", r.Status)
	}
	r = e.mustJoin(t, r.ID, 3)
	if r.Status != model.ReservationClosed {
		t.Fatalf("status at capacity = %s, want CLOSED", r.Status)
	}
	if r.ParticipantCount != 3 {
		t.Fatalf("participant count = %d, want 3", r.ParticipantCount)
	}
	if _, err := e.res.Join(context.Background(), r.ID, 4); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("join full reservation: err = %v, want ErrInvalidAction", err)
	}
}

func TestJoinRejections(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)
	e.mustJoin(t, r.ID, 2)

	if _, err := e.res.Join(context.Background(), r.ID, 2); !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("rejoin: err = %v, want ErrAlreadyJoined", err)
	}
	if _, err := e.res.Join(context.Background(), r.ID, 1); !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("host rejoin: err = %v, want ErrAlreadyJoined", err)
	}

	if _, err := e.res.Kick(context.Background(), r.ID, 1, 2); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if _, err := e.res.Join(context.Background(), r.ID, 2); !errors.Is(err, ErrKicked) {
		t.Errorf("rejoin after kick: err = %v, want ErrKicked", err)
	}
}

func TestConcurrentJoinNeverExceedsCapacity(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 5)

	const contenders = 20
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.res.Join(context.Background(), r.ID, uint64(100+i))
		}(i)
	}
	wg.Wait()

	joined := 0
	for _, err := range errs {
		if err == nil {
			joined++
		} else if !errors.Is(err, ErrInvalidAction) {
			t.Errorf("unexpected join error: %v", err)
		}
	}
	if joined != 4 {
		t.Errorf("successful joins = %d, want 4 (capacity 5 minus host)", joined)
	}
	got, err := e.store.GetReservation(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if got.ParticipantCount != 5 || got.Status != model.ReservationClosed {
		t.Errorf("final state = %d %s, want 5 CLOSED", got.ParticipantCount, got.Status)
	}
}

func TestLeaveTransfersHostToEarliestJoined(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)
	e.mustJoin(t, r.ID, 2)
	e.mustJoin(t, r.ID, 3)

	r, err := e.res.Leave(context.Background(), r.ID, 1)
	if err != nil {
		t.Fatalf("host leave: %v", err)
	}
	if r.HostID != 2 {
		t.Errorf("new host = %d, want 2 (earliest joined)", r.HostID)
	}
	if got := e.ch.count(r.ID, EventHostChanged); got != 1 {
		t.Errorf("host change events = %d, want 1", got)
	}
}

func TestLastLeaveCancels(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)

	r, err := e.res.Leave(context.Background(), r.ID, 1)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if r.Status != model.ReservationCancelled {
		t.Errorf("status = %s, want CANCELLED", r.Status)
	}
	if r.ParticipantCount != 0 {
		t.Errorf("participant count = %d, want 0", r.ParticipantCount)
	}
}

func TestLeaveDoesNotReopenRecruiting(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 2)
	r = e.mustJoin(t, r.ID, 2)
	if r.Status != model.ReservationClosed {
		t.Fatalf("setup: status = %s, want CLOSED", r.Status)
	}

	r, err := e.res.Leave(context.Background(), r.ID, 2)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if r.Status != model.ReservationClosed {
		t.Errorf("status after voluntary leave = %s, want CLOSED (only a kick reopens)", r.Status)
	}
}

func TestLeaveRequiresMembership(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)

	if _, err := e.res.Leave(context.Background(), r.ID, 99); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("stranger leave: err = %v, want ErrNotParticipant", err)
	}
	if _, err := e.res.Kick(context.Background(), r.ID, 1, 2); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("kick stranger: err = %v, want ErrUserNotFound", err)
	}
}

func TestKickReopensRecruiting(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 2)
	r = e.mustJoin(t, r.ID, 2)

	r, err := e.res.Kick(context.Background(), r.ID, 1, 2)
	if err != nil {
		t.Fatalf("kick: %v", err)
	}
	if r.Status != model.ReservationRecruiting {
		t.Errorf("status after kick = %s, want RECRUITING", r.Status)
	}
	if r.ParticipantCount != 1 {
		t.Errorf("participant count = %d, want 1", r.ParticipantCount)
	}
}

func TestKickPermissions(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)
	e.mustJoin(t, r.ID, 2)
	e.mustJoin(t, r.ID, 3)

	if _, err := e.res.Kick(context.Background(), r.ID, 2, 3); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-host kick: err = %v, want ErrForbidden", err)
	}
	if _, err := e.res.Kick(context.Background(), r.ID, 1, 1); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("self kick: err = %v, want ErrInvalidAction", err)
	}
}

func TestSetStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr error
	}{
		{"close recruiting", model.ReservationRecruiting, model.ReservationClosed, nil},
		{"reopen closed", model.ReservationClosed, model.ReservationRecruiting, nil},
		{"confirm closed", model.ReservationClosed, model.ReservationConfirmed, nil},
		{"reject closed", model.ReservationClosed, model.ReservationRejected, nil},
		{"confirm recruiting", model.ReservationRecruiting, model.ReservationConfirmed, ErrInvalidAction},
		{"reopen confirmed", model.ReservationConfirmed, model.ReservationRecruiting, ErrInvalidAction},
		{"close confirmed", model.ReservationConfirmed, model.ReservationClosed, ErrInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			r := e.mustCreate(t, 1, 4)
			if tt.from != model.ReservationRecruiting {
				if _, err := e.res.SetStatus(context.Background(), r.ID, 1, model.ReservationClosed); err != nil {
					t.Fatalf("setup close: %v", err)
				}
			}
			if tt.from == model.ReservationConfirmed {
				if _, err := e.res.SetStatus(context.Background(), r.ID, 1, model.ReservationConfirmed); err != nil {
					t.Fatalf("setup confirm: %v", err)
				}
			}
			_, err := e.res.SetStatus(context.Background(), r.ID, 1, tt.to)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SetStatus(%s -> %s): err = %v, want %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestSetStatusHostOnly(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)
	e.mustJoin(t, r.ID, 2)

	if _, err := e.res.SetStatus(context.Background(), r.ID, 2, model.ReservationClosed); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-host status change: err = %v, want ErrForbidden", err)
	}
}

func TestReopenRequiresSpareCapacity(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 2)
	e.mustJoin(t, r.ID, 2) // auto-closes at capacity

	if _, err := e.res.SetStatus(context.Background(), r.ID, 1, model.ReservationRecruiting); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("reopen at capacity: err = %v, want ErrInvalidAction", err)
	}
}
