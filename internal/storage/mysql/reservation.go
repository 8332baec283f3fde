package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/storage"
)

const reservationCols = `id, host_id, title, status, participant_count, max_participants,
       store_id, store_selected_by, store_selected_at, meeting_at, created_at, updated_at`

// scanReservation reads one reservation row.  Nullable venue columns
// are mapped to nil pointers.
func scanReservation(row *sql.Row) (*model.Reservation, error) {
	var (
		r          model.Reservation
		storeID    sql.NullInt64
		selectedBy sql.NullInt64
		selectedAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.HostID, &r.Title, &r.Status, &r.ParticipantCount, &r.MaxParticipants,
		&storeID, &selectedBy, &selectedAt, &r.MeetingAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrReservationNotFound
		}
		return nil, err
	}
	if storeID.Valid {
		v := uint64(storeID.Int64)
		r.StoreID = &v
	}
	if selectedBy.Valid {
		v := uint64(selectedBy.Int64)
		r.StoreSelectedBy = &v
	}
	if selectedAt.Valid {
		t := selectedAt.Time.UTC()
		r.StoreSelectedAt = &t
	}
	return &r, nil
}

// GetReservation returns the reservation without locking it.
func (s *Store) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations WHERE id = ?`
	return scanReservation(s.db.QueryRowContext(ctx, q, id))
}

// GetReservationForUpdate locks and returns the reservation row.  The
// lock is held until the transaction commits or rolls back, which
// serializes every counter mutation on this reservation.
func (t *Tx) GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations WHERE id = ? FOR UPDATE`
	return scanReservation(t.tx.QueryRowContext(ctx, q, id))
}

// CreateReservation inserts a new reservation and populates the
// generated ID and timestamps on the given record.
func (t *Tx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	const q = `INSERT INTO reservations
	           (host_id, title, status, participant_count, max_participants, meeting_at)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, r.HostID, r.Title, r.Status,
		r.ParticipantCount, r.MaxParticipants, r.MeetingAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

// UpdateReservation writes back every mutable reservation field.
func (t *Tx) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	const q = `UPDATE reservations
	           SET host_id = ?, status = ?, participant_count = ?,
	               store_id = ?, store_selected_by = ?, store_selected_at = ?,
	               updated_at = UTC_TIMESTAMP()
	           WHERE id = ?`
	var selectedAt any
	if r.StoreSelectedAt != nil {
		selectedAt = r.StoreSelectedAt.UTC().Format("2006-01-02 15:04:05")
	}
	_, err := t.tx.ExecContext(ctx, q, r.HostID, r.Status, r.ParticipantCount,
		r.StoreID, r.StoreSelectedBy, selectedAt, r.ID)
	return err
}

// ListRecruitingReservations returns open meetups, newest first.
func (s *Store) ListRecruitingReservations(ctx context.Context, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + reservationCols + ` FROM reservations
	           WHERE status = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, model.ReservationRecruiting, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		var (
			r          model.Reservation
			storeID    sql.NullInt64
			selectedBy sql.NullInt64
			selectedAt sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.HostID, &r.Title, &r.Status, &r.ParticipantCount, &r.MaxParticipants,
			&storeID, &selectedBy, &selectedAt, &r.MeetingAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if storeID.Valid {
			v := uint64(storeID.Int64)
			r.StoreID = &v
		}
		if selectedBy.Valid {
			v := uint64(selectedBy.Int64)
			r.StoreSelectedBy = &v
		}
		if selectedAt.Valid {
			ts := selectedAt.Time.UTC()
			r.StoreSelectedAt = &ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
