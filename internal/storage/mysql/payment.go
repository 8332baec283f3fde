package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/storage"
)

const sessionCols = `id, reservation_id, store_id, per_person_amount, total_amount,
       total_participants, completed_payments, deadline, status, created_at`

func scanSession(row *sql.Row) (*model.PaymentSession, error) {
	var s model.PaymentSession
	err := row.Scan(&s.ID, &s.ReservationID, &s.StoreID, &s.PerPersonAmount, &s.TotalAmount,
		&s.TotalParticipants, &s.CompletedPayments, &s.Deadline, &s.Status, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetPaymentSessionForUpdate locks and returns the reservation's
// IN_PROGRESS session.  The lock serializes concurrent payment
// completions against the same session.
func (t *Tx) GetPaymentSessionForUpdate(ctx context.Context, reservationID uint64) (*model.PaymentSession, error) {
	const q = `SELECT ` + sessionCols + ` FROM payment_sessions
	           WHERE reservation_id = ? AND status = ? FOR UPDATE`
	return scanSession(t.tx.QueryRowContext(ctx, q, reservationID, model.PaymentInProgress))
}

// GetLatestPaymentSessionForUpdate locks the reservation's most recent
// session whatever its status.  The payout path uses it to claim a
// COMPLETED session exactly once.
func (t *Tx) GetLatestPaymentSessionForUpdate(ctx context.Context, reservationID uint64) (*model.PaymentSession, error) {
	const q = `SELECT ` + sessionCols + ` FROM payment_sessions
	           WHERE reservation_id = ? ORDER BY id DESC LIMIT 1 FOR UPDATE`
	return scanSession(t.tx.QueryRowContext(ctx, q, reservationID))
}

// GetPaymentSession returns the reservation's most recent session,
// completed or live, for status views.
func (s *Store) GetPaymentSession(ctx context.Context, reservationID uint64) (*model.PaymentSession, error) {
	const q = `SELECT ` + sessionCols + ` FROM payment_sessions
	           WHERE reservation_id = ? ORDER BY id DESC LIMIT 1`
	return scanSession(s.db.QueryRowContext(ctx, q, reservationID))
}

// CreatePaymentSession inserts the session and populates its ID.
func (t *Tx) CreatePaymentSession(ctx context.Context, ps *model.PaymentSession) error {
	const q = `INSERT INTO payment_sessions
	           (reservation_id, store_id, per_person_amount, total_amount,
	            total_participants, completed_payments, deadline, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, ps.ReservationID, ps.StoreID, ps.PerPersonAmount,
		ps.TotalAmount, ps.TotalParticipants, ps.CompletedPayments,
		ps.Deadline.UTC().Format("2006-01-02 15:04:05"), ps.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ps.ID = uint64(id)
	return nil
}

// UpdatePaymentSession writes back the aggregate count and status.
func (t *Tx) UpdatePaymentSession(ctx context.Context, ps *model.PaymentSession) error {
	const q = `UPDATE payment_sessions SET completed_payments = ?, status = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, q, ps.CompletedPayments, ps.Status, ps.ID)
	return err
}

// DeletePaymentSession removes the session and its records (used by
// resetSession and when replacing an inert session).
func (t *Tx) DeletePaymentSession(ctx context.Context, sessionID uint64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM payment_records WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `DELETE FROM payment_sessions WHERE id = ?`, sessionID)
	return err
}

// CreatePaymentRecords bulk-inserts the per-participant ledger rows.
func (t *Tx) CreatePaymentRecords(ctx context.Context, recs []model.PaymentRecord) error {
	if len(recs) == 0 {
		return nil
	}
	q := `INSERT INTO payment_records (session_id, user_id, status) VALUES `
	args := make([]any, 0, len(recs)*3)
	for i, r := range recs {
		if i > 0 {
			q += ","
		}
		q += "(?, ?, ?)"
		args = append(args, r.SessionID, r.UserID, r.Status)
	}
	_, err := t.tx.ExecContext(ctx, q, args...)
	return err
}

// GetPaymentRecord returns one participant's ledger entry.
func (t *Tx) GetPaymentRecord(ctx context.Context, sessionID, userID uint64) (*model.PaymentRecord, error) {
	const q = `SELECT id, session_id, user_id, status, method, paid_at
	           FROM payment_records WHERE session_id = ? AND user_id = ?`
	var (
		r      model.PaymentRecord
		method sql.NullString
		paidAt sql.NullTime
	)
	err := t.tx.QueryRowContext(ctx, q, sessionID, userID).
		Scan(&r.ID, &r.SessionID, &r.UserID, &r.Status, &method, &paidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, err
	}
	if method.Valid {
		m := method.String
		r.Method = &m
	}
	if paidAt.Valid {
		ts := paidAt.Time.UTC()
		r.PaidAt = &ts
	}
	return &r, nil
}

// CompletePaymentRecord performs the one-way PENDING→COMPLETED
// transition.  The status guard in the WHERE clause makes a duplicate
// completion a no-op at the SQL level as well.
func (t *Tx) CompletePaymentRecord(ctx context.Context, sessionID, userID uint64, method string, paidAt time.Time) error {
	const q = `UPDATE payment_records SET status = ?, method = ?, paid_at = ?
	           WHERE session_id = ? AND user_id = ? AND status = ?`
	res, err := t.tx.ExecContext(ctx, q, model.PaymentRecordCompleted, method,
		paidAt.UTC().Format("2006-01-02 15:04:05"), sessionID, userID, model.PaymentRecordPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrRecordNotFound
	}
	return nil
}

// CountCompletedPayments recounts from the authoritative rows instead
// of trusting an incremented counter.
func (t *Tx) CountCompletedPayments(ctx context.Context, sessionID uint64) (uint32, error) {
	const q = `SELECT COUNT(*) FROM payment_records WHERE session_id = ? AND status = ?`
	var n uint32
	if err := t.tx.QueryRowContext(ctx, q, sessionID, model.PaymentRecordCompleted).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

const recordsQuery = `SELECT id, session_id, user_id, status, method, paid_at
       FROM payment_records WHERE session_id = ? ORDER BY id ASC`

func listPaymentRecords(ctx context.Context, q querier, sessionID uint64) ([]model.PaymentRecord, error) {
	rows, err := q.QueryContext(ctx, recordsQuery, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PaymentRecord, 0)
	for rows.Next() {
		var (
			r      model.PaymentRecord
			method sql.NullString
			paidAt sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.UserID, &r.Status, &method, &paidAt); err != nil {
			return nil, err
		}
		if method.Valid {
			m := method.String
			r.Method = &m
		}
		if paidAt.Valid {
			ts := paidAt.Time.UTC()
			r.PaidAt = &ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListPaymentRecords returns the session ledger in insertion order.
func (t *Tx) ListPaymentRecords(ctx context.Context, sessionID uint64) ([]model.PaymentRecord, error) {
	return listPaymentRecords(ctx, t.tx, sessionID)
}

// ListPaymentRecords is the read-only counterpart for status views.
func (s *Store) ListPaymentRecords(ctx context.Context, sessionID uint64) ([]model.PaymentRecord, error) {
	return listPaymentRecords(ctx, s.db, sessionID)
}
