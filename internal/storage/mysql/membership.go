package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/storage"
)

// isDuplicateKey reports whether err is MySQL error 1062 (duplicate
// entry for a unique index).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// GetMembership returns the membership row for the pair, kicked or
// not, so callers can tell a kicked user from a stranger.
func (t *Tx) GetMembership(ctx context.Context, reservationID, userID uint64) (*model.Membership, error) {
	const q = `SELECT id, reservation_id, user_id, kicked, joined_at
	           FROM memberships WHERE reservation_id = ? AND user_id = ?`
	var m model.Membership
	err := t.tx.QueryRowContext(ctx, q, reservationID, userID).
		Scan(&m.ID, &m.ReservationID, &m.UserID, &m.Kicked, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}

// CreateMembership inserts the row.  The UNIQUE (reservation_id,
// user_id) index is the authoritative duplicate guard; a violation is
// surfaced as storage.ErrDuplicateMembership.
func (t *Tx) CreateMembership(ctx context.Context, m *model.Membership) error {
	const q = `INSERT INTO memberships (reservation_id, user_id, kicked, joined_at)
	           VALUES (?, ?, ?, UTC_TIMESTAMP())`
	res, err := t.tx.ExecContext(ctx, q, m.ReservationID, m.UserID, m.Kicked)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrDuplicateMembership
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// DeleteMembership removes the row on a voluntary leave.
func (t *Tx) DeleteMembership(ctx context.Context, reservationID, userID uint64) error {
	const q = `DELETE FROM memberships WHERE reservation_id = ? AND user_id = ?`
	res, err := t.tx.ExecContext(ctx, q, reservationID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrMembershipNotFound
	}
	return nil
}

// MarkMembershipKicked flags the row instead of deleting it, keeping
// the audit trail and blocking a rejoin.
func (t *Tx) MarkMembershipKicked(ctx context.Context, reservationID, userID uint64) error {
	const q = `UPDATE memberships SET kicked = TRUE
	           WHERE reservation_id = ? AND user_id = ? AND kicked = FALSE`
	res, err := t.tx.ExecContext(ctx, q, reservationID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrMembershipNotFound
	}
	return nil
}

const activeMembershipsQuery = `SELECT id, reservation_id, user_id, kicked, joined_at
       FROM memberships WHERE reservation_id = ? AND kicked = FALSE
       ORDER BY joined_at ASC, id ASC`

func listActiveMemberships(ctx context.Context, q querier, reservationID uint64) ([]model.Membership, error) {
	rows, err := q.QueryContext(ctx, activeMembershipsQuery, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Membership, 0)
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.ID, &m.ReservationID, &m.UserID, &m.Kicked, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListActiveMemberships returns non-kicked members ordered by join
// time; the first entry is the host-succession candidate.
func (t *Tx) ListActiveMemberships(ctx context.Context, reservationID uint64) ([]model.Membership, error) {
	return listActiveMemberships(ctx, t.tx, reservationID)
}

// ListActiveMemberships is the read-only counterpart used outside
// transactions.
func (s *Store) ListActiveMemberships(ctx context.Context, reservationID uint64) ([]model.Membership, error) {
	return listActiveMemberships(ctx, s.db, reservationID)
}

// CountActiveMemberships recounts members from the authoritative rows.
func (t *Tx) CountActiveMemberships(ctx context.Context, reservationID uint64) (uint32, error) {
	const q = `SELECT COUNT(*) FROM memberships WHERE reservation_id = ? AND kicked = FALSE`
	var n uint32
	if err := t.tx.QueryRowContext(ctx, q, reservationID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// HasActiveMembership reports whether the user currently belongs to
// the room.  This is the access-control primitive for chat.
func (s *Store) HasActiveMembership(ctx context.Context, reservationID, userID uint64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM memberships
	           WHERE reservation_id = ? AND user_id = ? AND kicked = FALSE)`
	var ok bool
	if err := s.db.QueryRowContext(ctx, q, reservationID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
