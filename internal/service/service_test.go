package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/queue"
	"github.com/moimlab/moim-server/internal/storage/memory"
)

// recordedEvent is one Publish call captured by the fake channel.
type recordedEvent struct {
	RoomID  uint64
	Event   string
	Payload any
}

// fakeChannel records broadcasts and lets tests control presence.
type fakeChannel struct {
	mu      sync.Mutex
	events  []recordedEvent
	present map[uint64][]uint64
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{present: make(map[uint64][]uint64)}
}

func (c *fakeChannel) Publish(roomID uint64, event string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, recordedEvent{RoomID: roomID, Event: event, Payload: payload})
}

func (c *fakeChannel) Present(roomID uint64) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.present[roomID]
}

func (c *fakeChannel) setPresent(roomID uint64, users ...uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.present[roomID] = users
}

// count returns how many times event was published for the room.
func (c *fakeChannel) count(roomID uint64, event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.RoomID == roomID && ev.Event == event {
			n++
		}
	}
	return n
}

// fakeNotifier records dispatched notification events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []queue.NotificationEvent
}

func (n *fakeNotifier) Dispatch(ev queue.NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *fakeNotifier) countType(typ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Type == typ {
			c++
		}
	}
	return c
}

// fakeGateway approves everything unless an error is injected.
type fakeGateway struct {
	mu         sync.Mutex
	confirmErr error
	releaseErr error
	confirms   int
	releases   int
}

func (g *fakeGateway) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.confirmErr != nil {
		return g.confirmErr
	}
	g.confirms++
	return nil
}

func (g *fakeGateway) Release(ctx context.Context, paymentKey, payoutAccount string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.releaseErr != nil {
		return g.releaseErr
	}
	g.releases++
	return nil
}

// env bundles one engine instance over a fresh in-memory store.
type env struct {
	store      *memory.Store
	ch         *fakeChannel
	notifier   *fakeNotifier
	gateway    *fakeGateway
	res        *ReservationService
	venue      *VenueService
	settlement *SettlementService
	chat       *ChatService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	ch := newFakeChannel()
	nf := &fakeNotifier{}
	gw := &fakeGateway{}
	return &env{
		store:      st,
		ch:         ch,
		notifier:   nf,
		gateway:    gw,
		res:        NewReservationService(st, ch, nf),
		venue:      NewVenueService(st, ch),
		settlement: NewSettlementService(st, ch, nf, gw),
		chat:       NewChatService(st, ch),
	}
}

// mustCreate opens a reservation and fails the test on error.
func (e *env) mustCreate(t *testing.T, hostID uint64, max uint32) *model.Reservation {
	t.Helper()
	r, err := e.res.Create(context.Background(), hostID, "friday meetup", max, time.Now().Add(48*time.Hour))
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	return r
}

// mustJoin joins and fails the test on error.
func (e *env) mustJoin(t *testing.T, reservationID, userID uint64) *model.Reservation {
	t.Helper()
	r, err := e.res.Join(context.Background(), reservationID, userID)
	if err != nil {
		t.Fatalf("join user %d: %v", userID, err)
	}
	return r
}

// seedVenue registers a store with the given deposit and returns its ID.
func (e *env) seedVenue(t *testing.T, deposit int64) uint64 {
	t.Helper()
	const id = 9001
	e.store.SeedStore(model.Store{ID: id, OwnerID: 900, Name: "pocha", Category: "bar", DepositAmount: deposit})
	return id
}

// closeWithVenue drives a reservation to CLOSED with a selected venue,
// the precondition for starting a settlement.
func (e *env) closeWithVenue(t *testing.T, r *model.Reservation, deposit int64) uint64 {
	t.Helper()
	storeID := e.seedVenue(t, deposit)
	if _, err := e.venue.SelectStore(context.Background(), r.ID, r.HostID, &storeID); err != nil {
		t.Fatalf("select store: %v", err)
	}
	if _, err := e.res.SetStatus(context.Background(), r.ID, r.HostID, model.ReservationClosed); err != nil && !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("close recruitment: %v", err)
	}
	return storeID
}
