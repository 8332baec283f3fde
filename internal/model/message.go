package model

import "time"

// SystemSender is the reserved sender value used for messages written
// by the server itself (join/leave notices, payment guides and so on).
// Persisted as a NULL sender_id; serialized as the string "system".
const SystemSender = "system"

// Message is one append-only chat room entry.  Seq is assigned inside
// the same transaction that persists the message and is strictly
// increasing and gapless per room, which makes it usable as a read
// cursor.  Messages are never updated or deleted.
//
// Fields:
//  RoomID    – chat room (equals the reservation ID).
//  Seq       – per-room monotonic sequence number, starts at 1.
//  SenderID  – authoring user; nil for system messages.
//  Body      – message text.
//  Payload   – optional structured attachment as JSON (venue share,
//              payment guide); nil for plain messages.
//  CreatedAt – timestamp of persistence.
type Message struct {
	RoomID    uint64    // messages.room_id
	Seq       uint64    // messages.seq
	SenderID  *uint64   // messages.sender_id (nullable, NULL = system)
	Body      string    // messages.body
	Payload   *string   // messages.payload (nullable JSON)
	CreatedAt time.Time // messages.created_at
}

// ReadCursor records the last message sequence a user has read in a
// room.  It only moves forward; upserts take the greater value.
type ReadCursor struct {
	RoomID      uint64    // read_cursors.room_id
	UserID      uint64    // read_cursors.user_id
	LastReadSeq uint64    // read_cursors.last_read_seq
	UpdatedAt   time.Time // read_cursors.updated_at
}
