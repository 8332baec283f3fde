package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/moimlab/moim-server/internal/model"
)

// NextMessageSeq allocates the next per-room sequence number.  The
// locked MAX read serializes writers of the same room, which keeps the
// sequence strictly increasing and gapless.
func (t *Tx) NextMessageSeq(ctx context.Context, roomID uint64) (uint64, error) {
	const q = `SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE room_id = ? FOR UPDATE`
	var seq uint64
	if err := t.tx.QueryRowContext(ctx, q, roomID).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// InsertMessage appends one message row.  Messages are never updated
// or deleted afterwards.
func (t *Tx) InsertMessage(ctx context.Context, m *model.Message) error {
	const q = `INSERT INTO messages (room_id, seq, sender_id, body, payload, created_at)
	           VALUES (?, ?, ?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q, m.RoomID, m.Seq, m.SenderID, m.Body, m.Payload,
		m.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	return err
}

func maxMessageSeq(ctx context.Context, q querier, roomID uint64) (uint64, error) {
	var seq uint64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM messages WHERE room_id = ?`, roomID).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// MaxMessageSeq returns the room's current highest sequence (0 for an
// empty room).
func (t *Tx) MaxMessageSeq(ctx context.Context, roomID uint64) (uint64, error) {
	return maxMessageSeq(ctx, t.tx, roomID)
}

// MaxMessageSeq is the read-only counterpart used for unread counts.
func (s *Store) MaxMessageSeq(ctx context.Context, roomID uint64) (uint64, error) {
	return maxMessageSeq(ctx, s.db, roomID)
}

// AdvanceReadCursor upserts the cursor, keeping the greater value so
// the cursor never moves backwards.
func (t *Tx) AdvanceReadCursor(ctx context.Context, roomID, userID, seq uint64) error {
	const q = `INSERT INTO read_cursors (room_id, user_id, last_read_seq)
	           VALUES (?, ?, ?)
	           ON DUPLICATE KEY UPDATE last_read_seq = GREATEST(last_read_seq, VALUES(last_read_seq))`
	_, err := t.tx.ExecContext(ctx, q, roomID, userID, seq)
	return err
}

// GetReadCursor returns the user's last read sequence, 0 if the user
// has never acknowledged the room.
func (s *Store) GetReadCursor(ctx context.Context, roomID, userID uint64) (uint64, error) {
	const q = `SELECT last_read_seq FROM read_cursors WHERE room_id = ? AND user_id = ?`
	var seq uint64
	err := s.db.QueryRowContext(ctx, q, roomID, userID).Scan(&seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return seq, nil
}

// ListMessages returns up to limit messages with seq > afterSeq in
// ascending order.  History recovery goes through this table, not the
// live channel.
func (s *Store) ListMessages(ctx context.Context, roomID, afterSeq uint64, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	const q = `SELECT room_id, seq, sender_id, body, payload, created_at
	           FROM messages WHERE room_id = ? AND seq > ?
	           ORDER BY seq ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, roomID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Message, 0)
	for rows.Next() {
		var (
			m        model.Message
			senderID sql.NullInt64
			payload  sql.NullString
		)
		if err := rows.Scan(&m.RoomID, &m.Seq, &senderID, &m.Body, &payload, &m.CreatedAt); err != nil {
			return nil, err
		}
		if senderID.Valid {
			v := uint64(senderID.Int64)
			m.SenderID = &v
		}
		if payload.Valid {
			p := payload.String
			m.Payload = &p
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
