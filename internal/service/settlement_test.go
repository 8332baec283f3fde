package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/queue"
)

func TestStartSettlementSplitsDeposit(t *testing.T) {
	tests := []struct {
		name          string
		deposit       int64
		members       int
		wantPerPerson int64
		wantTotal     int64
	}{
		{"even split", 10000, 5, 2000, 10000},
		{"ceiling split keeps surplus", 10000, 3, 3334, 10002},
		{"single payer", 5000, 1, 5000, 5000},
		{"indivisible won", 101, 2, 51, 102},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			capacity := uint32(tt.members)
			if capacity < 2 {
				capacity = 2
			}
			r := e.mustCreate(t, 1, capacity)
			for i := 1; i < tt.members; i++ {
				e.mustJoin(t, r.ID, uint64(1+i))
			}
			e.closeWithVenue(t, r, tt.deposit)

			sess, err := e.settlement.Start(context.Background(), r.ID, 1)
			if err != nil {
				t.Fatalf("start settlement: %v", err)
			}
			if sess.PerPersonAmount != tt.wantPerPerson {
				t.Errorf("per person = %d, want %d", sess.PerPersonAmount, tt.wantPerPerson)
			}
			if sess.TotalAmount != tt.wantTotal {
				t.Errorf("total = %d, want %d", sess.TotalAmount, tt.wantTotal)
			}
			if sess.TotalParticipants != uint32(tt.members) {
				t.Errorf("participants = %d, want %d", sess.TotalParticipants, tt.members)
			}
			recs, err := e.store.ListPaymentRecords(context.Background(), sess.ID)
			if err != nil {
				t.Fatalf("list records: %v", err)
			}
			if len(recs) != tt.members {
				t.Errorf("records = %d, want one per participant", len(recs))
			}
			for _, rec := range recs {
				if rec.Status != model.PaymentRecordPending {
					t.Errorf("record for user %d starts %s, want PENDING", rec.UserID, rec.Status)
				}
			}
		})
	}
}

func TestStartSettlementPreconditions(t *testing.T) {
	t.Run("not closed", func(t *testing.T) {
		e := newEnv(t)
		r := e.mustCreate(t, 1, 4)
		storeID := e.seedVenue(t, 10000)
		if _, err := e.venue.SelectStore(context.Background(), r.ID, 1, &storeID); err != nil {
			t.Fatalf("select store: %v", err)
		}
		if _, err := e.settlement.Start(context.Background(), r.ID, 1); !errors.Is(err, ErrInvalidConditions) {
			t.Errorf("start while recruiting: err = %v, want ErrInvalidConditions", err)
		}
	})

	t.Run("no venue", func(t *testing.T) {
		e := newEnv(t)
		r := e.mustCreate(t, 1, 4)
		if _, err := e.res.SetStatus(context.Background(), r.ID, 1, model.ReservationClosed); err != nil {
			t.Fatalf("close: %v", err)
		}
		if _, err := e.settlement.Start(context.Background(), r.ID, 1); !errors.Is(err, ErrInvalidConditions) {
			t.Errorf("start without venue: err = %v, want ErrInvalidConditions", err)
		}
	})

	t.Run("zero deposit", func(t *testing.T) {
		e := newEnv(t)
		r := e.mustCreate(t, 1, 4)
		e.closeWithVenue(t, r, 0)
		if _, err := e.settlement.Start(context.Background(), r.ID, 1); !errors.Is(err, ErrNoDepositAmount) {
			t.Errorf("start with zero deposit: err = %v, want ErrNoDepositAmount", err)
		}
	})

	t.Run("non-host", func(t *testing.T) {
		e := newEnv(t)
		r := e.mustCreate(t, 1, 4)
		e.mustJoin(t, r.ID, 2)
		e.closeWithVenue(t, r, 10000)
		if _, err := e.settlement.Start(context.Background(), r.ID, 2); !errors.Is(err, ErrForbidden) {
			t.Errorf("non-host start: err = %v, want ErrForbidden", err)
		}
	})
}

func TestStartReplacesUntouchedSession(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 3)
	e.mustJoin(t, r.ID, 2)
	e.closeWithVenue(t, r, 9000)

	first, err := e.settlement.Start(context.Background(), r.ID, 1)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	second, err := e.settlement.Start(context.Background(), r.ID, 1)
	if err != nil {
		t.Fatalf("restart with no payments: %v", err)
	}
	if second.ID == first.ID {
		t.Errorf("restart reused session %d, want a fresh one", first.ID)
	}
	if _, err := e.store.ListPaymentRecords(context.Background(), first.ID); err != nil {
		t.Fatalf("list old records: %v", err)
	}

	if _, err := e.settlement.CompletePayment(context.Background(), r.ID, 2, "pay-key", "order-1", "CARD"); err != nil {
		t.Fatalf("complete payment: %v", err)
	}
	if _, err := e.settlement.Start(context.Background(), r.ID, 1); !errors.Is(err, ErrPaymentAlreadyStarted) {
		t.Errorf("restart after a payment: err = %v, want ErrPaymentAlreadyStarted", err)
	}
}

func TestCompletePayment(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 3)
	e.mustJoin(t, r.ID, 2)
	e.mustJoin(t, r.ID, 3)
	e.closeWithVenue(t, r, 9000)
	if _, err := e.settlement.Start(context.Background(), r.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	sess, err := e.settlement.CompletePayment(context.Background(), r.ID, 2, "pk-2", "order-2", "CARD")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if sess.CompletedPayments != 1 {
		t.Errorf("completed = %d, want 1", sess.CompletedPayments)
	}
	if sess.Status != model.PaymentInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", sess.Status)
	}

	if _, err := e.settlement.CompletePayment(context.Background(), r.ID, 2, "pk-2", "order-2", "CARD"); !errors.Is(err, ErrAlreadyPaid) {
		t.Errorf("double pay: err = %v, want ErrAlreadyPaid", err)
	}
	if _, err := e.settlement.CompletePayment(context.Background(), r.ID, 99, "pk-x", "order-x", "CARD"); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("stranger pay: err = %v, want ErrNotParticipant", err)
	}

	sess, _, err = e.settlement.Status(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if sess.CompletedPayments != 1 {
		t.Errorf("completed after rejects = %d, want 1 (duplicates never counted)", sess.CompletedPayments)
	}
}

func TestAllPaidCompletesExactlyOnce(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 3)
	e.mustJoin(t, r.ID, 2)
	e.mustJoin(t, r.ID, 3)
	e.closeWithVenue(t, r, 9000)
	if _, err := e.settlement.Start(context.Background(), r.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	var wg sync.WaitGroup
	for _, uid := range []uint64{1, 2, 3} {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			if _, err := e.settlement.CompletePayment(context.Background(), r.ID, uid, "pk", "order", "CARD"); err != nil {
				t.Errorf("user %d pay: %v", uid, err)
			}
		}(uid)
	}
	wg.Wait()

	sess, _, err := e.settlement.Status(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if sess.Status != model.PaymentCompleted {
		t.Errorf("session status = %s, want COMPLETED", sess.Status)
	}
	if sess.CompletedPayments != 3 {
		t.Errorf("completed = %d, want 3", sess.CompletedPayments)
	}
	if got := e.ch.count(r.ID, EventPaymentAllCompleted); got != 1 {
		t.Errorf("all-completed events = %d, want exactly 1", got)
	}
	if got := e.ch.count(r.ID, EventPaymentCompleted); got != 3 {
		t.Errorf("completed events = %d, want 3", got)
	}
}

func TestGatewayDeclineLeavesStateUntouched(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 2)
	e.mustJoin(t, r.ID, 2)
	e.closeWithVenue(t, r, 8000)
	if _, err := e.settlement.Start(context.Background(), r.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	e.gateway.confirmErr = errors.New("card declined")
	if _, err := e.settlement.CompletePayment(context.Background(), r.ID, 2, "pk", "order", "CARD"); !errors.Is(err, ErrPaymentConfirm) {
		t.Fatalf("declined pay: err = %v, want ErrPaymentConfirm", err)
	}
	sess, _, err := e.settlement.Status(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if sess.CompletedPayments != 0 {
		t.Errorf("completed after decline = %d, want 0", sess.CompletedPayments)
	}
	if e.notifier.countType(queue.NotifyPaymentFailed) != 1 {
		t.Errorf("payment-failed notifications = %d, want 1", e.notifier.countType(queue.NotifyPaymentFailed))
	}
}

func TestResetSettlement(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 2)
	e.mustJoin(t, r.ID, 2)
	e.closeWithVenue(t, r, 8000)
	if _, err := e.settlement.Start(context.Background(), r.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := e.settlement.Reset(context.Background(), r.ID, 2); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-host reset: err = %v, want ErrForbidden", err)
	}
	if err := e.settlement.Reset(context.Background(), r.ID, 1); err != nil {
		t.Fatalf("reset untouched session: %v", err)
	}
	if _, _, err := e.settlement.Status(context.Background(), r.ID); !errors.Is(err, ErrNoPaymentSession) {
		t.Errorf("status after reset: err = %v, want ErrNoPaymentSession", err)
	}

	if _, err := e.settlement.Start(context.Background(), r.ID, 1); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if _, err := e.settlement.CompletePayment(context.Background(), r.ID, 2, "pk", "order", "CARD"); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := e.settlement.Reset(context.Background(), r.ID, 1); !errors.Is(err, ErrPaymentInProgress) {
		t.Errorf("reset with a payment: err = %v, want ErrPaymentInProgress", err)
	}
}

func TestReleaseDeposit(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 2)
	e.mustJoin(t, r.ID, 2)
	e.closeWithVenue(t, r, 8000)
	if _, err := e.settlement.Start(context.Background(), r.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := e.settlement.ReleaseDeposit(context.Background(), r.ID, 1, "pk", "acct"); !errors.Is(err, ErrInvalidConditions) {
		t.Errorf("release before settlement done: err = %v, want ErrInvalidConditions", err)
	}

	for _, uid := range []uint64{1, 2} {
		if _, err := e.settlement.CompletePayment(context.Background(), r.ID, uid, "pk", "order", "CARD"); err != nil {
			t.Fatalf("pay user %d: %v", uid, err)
		}
	}
	if err := e.settlement.ReleaseDeposit(context.Background(), r.ID, 1, "pk", "acct"); !errors.Is(err, ErrInvalidConditions) {
		t.Errorf("release before confirmation: err = %v, want ErrInvalidConditions", err)
	}

	if _, err := e.res.SetStatus(context.Background(), r.ID, 1, model.ReservationConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := e.settlement.ReleaseDeposit(context.Background(), r.ID, 2, "pk", "acct"); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-host release: err = %v, want ErrForbidden", err)
	}
	if err := e.settlement.ReleaseDeposit(context.Background(), r.ID, 1, "pk", "acct"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if e.gateway.releases != 1 {
		t.Errorf("gateway releases = %d, want 1", e.gateway.releases)
	}
	if e.notifier.countType(queue.NotifyPayoutCompleted) != 1 {
		t.Errorf("payout notifications = %d, want 1", e.notifier.countType(queue.NotifyPayoutCompleted))
	}

	// A repeated release finds the session already RELEASED and must
	// not reach the gateway again.
	if err := e.settlement.ReleaseDeposit(context.Background(), r.ID, 1, "pk", "acct"); !errors.Is(err, ErrInvalidConditions) {
		t.Errorf("second release: err = %v, want ErrInvalidConditions", err)
	}
	if e.gateway.releases != 1 {
		t.Errorf("gateway releases after retry = %d, want 1", e.gateway.releases)
	}
}

func TestReleaseDepositGatewayFailureAllowsRetry(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 2)
	e.mustJoin(t, r.ID, 2)
	e.closeWithVenue(t, r, 8000)
	if _, err := e.settlement.Start(context.Background(), r.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, uid := range []uint64{1, 2} {
		if _, err := e.settlement.CompletePayment(context.Background(), r.ID, uid, "pk", "order", "CARD"); err != nil {
			t.Fatalf("pay user %d: %v", uid, err)
		}
	}
	if _, err := e.res.SetStatus(context.Background(), r.ID, 1, model.ReservationConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	e.gateway.releaseErr = errors.New("provider down")
	if err := e.settlement.ReleaseDeposit(context.Background(), r.ID, 1, "pk", "acct"); err == nil {
		t.Fatal("release succeeded despite gateway failure")
	}
	sess, _, err := e.settlement.Status(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if sess.Status != model.PaymentCompleted {
		t.Errorf("session status after failed payout = %q, want COMPLETED", sess.Status)
	}

	e.gateway.releaseErr = nil
	if err := e.settlement.ReleaseDeposit(context.Background(), r.ID, 1, "pk", "acct"); err != nil {
		t.Fatalf("retry release: %v", err)
	}
	if e.notifier.countType(queue.NotifyPayoutCompleted) != 1 {
		t.Errorf("payout notifications = %d, want 1", e.notifier.countType(queue.NotifyPayoutCompleted))
	}
}

func TestVenueChangeBlockedDuringSettlement(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 2)
	e.mustJoin(t, r.ID, 2)
	storeID := e.closeWithVenue(t, r, 8000)
	if _, err := e.settlement.Start(context.Background(), r.ID, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := e.venue.SelectStore(context.Background(), r.ID, 1, &storeID); !errors.Is(err, ErrPaymentAlreadyStarted) {
		t.Errorf("venue change mid-settlement: err = %v, want ErrPaymentAlreadyStarted", err)
	}
}
