// Package memory implements storage.Store with plain maps.  A single
// RWMutex serializes transactions, which gives the same observable
// semantics as row-locked MySQL transactions: InTx bodies never
// interleave and a failed body leaves no writes behind (copy-on-write
// snapshot, swapped in only on success).  It backs the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/storage"
)

type cursorKey struct {
	roomID uint64
	userID uint64
}

type state struct {
	reservations map[uint64]model.Reservation
	memberships  map[uint64]model.Membership
	messages     map[uint64][]model.Message
	cursors      map[cursorKey]uint64
	sessions     map[uint64]model.PaymentSession
	records      map[uint64]model.PaymentRecord
	stores       map[uint64]model.Store
	nextID       uint64
}

func newState() *state {
	return &state{
		reservations: make(map[uint64]model.Reservation),
		memberships:  make(map[uint64]model.Membership),
		messages:     make(map[uint64][]model.Message),
		cursors:      make(map[cursorKey]uint64),
		sessions:     make(map[uint64]model.PaymentSession),
		records:      make(map[uint64]model.PaymentRecord),
		stores:       make(map[uint64]model.Store),
		nextID:       0,
	}
}

func (st *state) clone() *state {
	c := newState()
	c.nextID = st.nextID
	for k, v := range st.reservations {
		c.reservations[k] = v
	}
	for k, v := range st.memberships {
		c.memberships[k] = v
	}
	for k, v := range st.messages {
		c.messages[k] = append([]model.Message(nil), v...)
	}
	for k, v := range st.cursors {
		c.cursors[k] = v
	}
	for k, v := range st.sessions {
		c.sessions[k] = v
	}
	for k, v := range st.records {
		c.records[k] = v
	}
	for k, v := range st.stores {
		c.stores[k] = v
	}
	return c
}

func (st *state) nextSeq() uint64 {
	st.nextID++
	return st.nextID
}

// Store is the in-memory storage.Store implementation.
type Store struct {
	mu sync.RWMutex
	st *state
}

// New returns an empty in-memory store.
func New() *Store { return &Store{st: newState()} }

// Tx operates on a private snapshot of the store.
type Tx struct {
	st *state
}

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*Tx)(nil)
)

// InTx clones the state, applies fn to the clone and swaps it in on
// success.  Errors discard the clone, so no partial writes survive.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := s.st.clone()
	if err := fn(&Tx{st: clone}); err != nil {
		return err
	}
	s.st = clone
	return nil
}

// SeedStore inserts a venue directly; test setup helper.
func (s *Store) SeedStore(st model.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		st.ID = s.st.nextSeq()
	}
	s.st.stores[st.ID] = st
}

// ---- reservations ----

func (t *Tx) GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	r, ok := t.st.reservations[id]
	if !ok {
		return nil, storage.ErrReservationNotFound
	}
	return &r, nil
}

func (t *Tx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	r.ID = t.st.nextSeq()
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	t.st.reservations[r.ID] = *r
	return nil
}

func (t *Tx) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	if _, ok := t.st.reservations[r.ID]; !ok {
		return storage.ErrReservationNotFound
	}
	r.UpdatedAt = time.Now().UTC()
	t.st.reservations[r.ID] = *r
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.st.reservations[id]
	if !ok {
		return nil, storage.ErrReservationNotFound
	}
	return &r, nil
}

func (s *Store) ListRecruitingReservations(ctx context.Context, limit int) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reservation, 0)
	for _, r := range s.st.reservations {
		if r.Status == model.ReservationRecruiting {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- memberships ----

func (st *state) findMembership(reservationID, userID uint64) (model.Membership, bool) {
	for _, m := range st.memberships {
		if m.ReservationID == reservationID && m.UserID == userID {
			return m, true
		}
	}
	return model.Membership{}, false
}

func (st *state) activeMemberships(reservationID uint64) []model.Membership {
	out := make([]model.Membership, 0)
	for _, m := range st.memberships {
		if m.ReservationID == reservationID && !m.Kicked {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

func (t *Tx) GetMembership(ctx context.Context, reservationID, userID uint64) (*model.Membership, error) {
	m, ok := t.st.findMembership(reservationID, userID)
	if !ok {
		return nil, storage.ErrMembershipNotFound
	}
	return &m, nil
}

func (t *Tx) CreateMembership(ctx context.Context, m *model.Membership) error {
	if _, ok := t.st.findMembership(m.ReservationID, m.UserID); ok {
		return storage.ErrDuplicateMembership
	}
	m.ID = t.st.nextSeq()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	t.st.memberships[m.ID] = *m
	return nil
}

func (t *Tx) DeleteMembership(ctx context.Context, reservationID, userID uint64) error {
	m, ok := t.st.findMembership(reservationID, userID)
	if !ok {
		return storage.ErrMembershipNotFound
	}
	delete(t.st.memberships, m.ID)
	return nil
}

func (t *Tx) MarkMembershipKicked(ctx context.Context, reservationID, userID uint64) error {
	m, ok := t.st.findMembership(reservationID, userID)
	if !ok || m.Kicked {
		return storage.ErrMembershipNotFound
	}
	m.Kicked = true
	t.st.memberships[m.ID] = m
	return nil
}

func (t *Tx) ListActiveMemberships(ctx context.Context, reservationID uint64) ([]model.Membership, error) {
	return t.st.activeMemberships(reservationID), nil
}

func (t *Tx) CountActiveMemberships(ctx context.Context, reservationID uint64) (uint32, error) {
	return uint32(len(t.st.activeMemberships(reservationID))), nil
}

func (s *Store) ListActiveMemberships(ctx context.Context, reservationID uint64) ([]model.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.activeMemberships(reservationID), nil
}

func (s *Store) HasActiveMembership(ctx context.Context, reservationID, userID uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.st.findMembership(reservationID, userID)
	return ok && !m.Kicked, nil
}

// ---- messages ----

func (t *Tx) NextMessageSeq(ctx context.Context, roomID uint64) (uint64, error) {
	return uint64(len(t.st.messages[roomID])) + 1, nil
}

func (t *Tx) InsertMessage(ctx context.Context, m *model.Message) error {
	t.st.messages[m.RoomID] = append(t.st.messages[m.RoomID], *m)
	return nil
}

func (t *Tx) MaxMessageSeq(ctx context.Context, roomID uint64) (uint64, error) {
	return uint64(len(t.st.messages[roomID])), nil
}

func (t *Tx) AdvanceReadCursor(ctx context.Context, roomID, userID, seq uint64) error {
	k := cursorKey{roomID: roomID, userID: userID}
	if seq > t.st.cursors[k] {
		t.st.cursors[k] = seq
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, roomID, afterSeq uint64, limit int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.st.messages[roomID]
	out := make([]model.Message, 0)
	for _, m := range msgs {
		if m.Seq > afterSeq {
			out = append(out, m)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) GetReadCursor(ctx context.Context, roomID, userID uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.cursors[cursorKey{roomID: roomID, userID: userID}], nil
}

func (s *Store) MaxMessageSeq(ctx context.Context, roomID uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.st.messages[roomID])), nil
}

// ---- payments ----

func (st *state) liveSession(reservationID uint64) (model.PaymentSession, bool) {
	for _, ps := range st.sessions {
		if ps.ReservationID == reservationID && ps.Status == model.PaymentInProgress {
			return ps, true
		}
	}
	return model.PaymentSession{}, false
}

func (t *Tx) GetPaymentSessionForUpdate(ctx context.Context, reservationID uint64) (*model.PaymentSession, error) {
	ps, ok := t.st.liveSession(reservationID)
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	return &ps, nil
}

func (t *Tx) GetLatestPaymentSessionForUpdate(ctx context.Context, reservationID uint64) (*model.PaymentSession, error) {
	var (
		latest model.PaymentSession
		found  bool
	)
	for _, ps := range t.st.sessions {
		if ps.ReservationID == reservationID && (!found || ps.ID > latest.ID) {
			latest = ps
			found = true
		}
	}
	if !found {
		return nil, storage.ErrSessionNotFound
	}
	return &latest, nil
}

func (s *Store) GetPaymentSession(ctx context.Context, reservationID uint64) (*model.PaymentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest model.PaymentSession
		found  bool
	)
	for _, ps := range s.st.sessions {
		if ps.ReservationID == reservationID && (!found || ps.ID > latest.ID) {
			latest = ps
			found = true
		}
	}
	if !found {
		return nil, storage.ErrSessionNotFound
	}
	return &latest, nil
}

func (t *Tx) CreatePaymentSession(ctx context.Context, ps *model.PaymentSession) error {
	ps.ID = t.st.nextSeq()
	if ps.CreatedAt.IsZero() {
		ps.CreatedAt = time.Now().UTC()
	}
	t.st.sessions[ps.ID] = *ps
	return nil
}

func (t *Tx) UpdatePaymentSession(ctx context.Context, ps *model.PaymentSession) error {
	if _, ok := t.st.sessions[ps.ID]; !ok {
		return storage.ErrSessionNotFound
	}
	t.st.sessions[ps.ID] = *ps
	return nil
}

func (t *Tx) DeletePaymentSession(ctx context.Context, sessionID uint64) error {
	delete(t.st.sessions, sessionID)
	for id, r := range t.st.records {
		if r.SessionID == sessionID {
			delete(t.st.records, id)
		}
	}
	return nil
}

func (t *Tx) CreatePaymentRecords(ctx context.Context, recs []model.PaymentRecord) error {
	for _, r := range recs {
		r.ID = t.st.nextSeq()
		t.st.records[r.ID] = r
	}
	return nil
}

func (st *state) findRecord(sessionID, userID uint64) (model.PaymentRecord, bool) {
	for _, r := range st.records {
		if r.SessionID == sessionID && r.UserID == userID {
			return r, true
		}
	}
	return model.PaymentRecord{}, false
}

func (t *Tx) GetPaymentRecord(ctx context.Context, sessionID, userID uint64) (*model.PaymentRecord, error) {
	r, ok := t.st.findRecord(sessionID, userID)
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return &r, nil
}

func (t *Tx) CompletePaymentRecord(ctx context.Context, sessionID, userID uint64, method string, paidAt time.Time) error {
	r, ok := t.st.findRecord(sessionID, userID)
	if !ok || r.Status != model.PaymentRecordPending {
		return storage.ErrRecordNotFound
	}
	r.Status = model.PaymentRecordCompleted
	r.Method = &method
	ts := paidAt.UTC()
	r.PaidAt = &ts
	t.st.records[r.ID] = r
	return nil
}

func (t *Tx) CountCompletedPayments(ctx context.Context, sessionID uint64) (uint32, error) {
	var n uint32
	for _, r := range t.st.records {
		if r.SessionID == sessionID && r.Status == model.PaymentRecordCompleted {
			n++
		}
	}
	return n, nil
}

func (st *state) sessionRecords(sessionID uint64) []model.PaymentRecord {
	out := make([]model.PaymentRecord, 0)
	for _, r := range st.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *Tx) ListPaymentRecords(ctx context.Context, sessionID uint64) ([]model.PaymentRecord, error) {
	return t.st.sessionRecords(sessionID), nil
}

func (s *Store) ListPaymentRecords(ctx context.Context, sessionID uint64) ([]model.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.sessionRecords(sessionID), nil
}

// ---- stores ----

func (t *Tx) GetStore(ctx context.Context, id uint64) (*model.Store, error) {
	st, ok := t.st.stores[id]
	if !ok {
		return nil, storage.ErrStoreNotFound
	}
	return &st, nil
}

func (s *Store) GetStore(ctx context.Context, id uint64) (*model.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.st.stores[id]
	if !ok {
		return nil, storage.ErrStoreNotFound
	}
	return &st, nil
}

func (s *Store) ListStores(ctx context.Context) ([]model.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Store, 0, len(s.st.stores))
	for _, st := range s.st.stores {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) CreateStore(ctx context.Context, st *model.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = s.st.nextSeq()
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	s.st.stores[st.ID] = *st
	return nil
}
