package model

import "time"

// Membership links a user to a reservation's chat room.  There is at
// most one row per (reservation, user) pair; a UNIQUE index enforces
// this at write time.  Voluntary leaves delete the row, kicks keep it
// with the Kicked flag set so a removed user cannot rejoin.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reservation the user belongs to.
//  UserID        – the member.
//  Kicked        – true once the host removed this member.
//  JoinedAt      – join timestamp; orders host succession.
type Membership struct {
	ID            uint64    // memberships.id
	ReservationID uint64    // memberships.reservation_id
	UserID        uint64    // memberships.user_id
	Kicked        bool      // memberships.kicked
	JoinedAt      time.Time // memberships.joined_at
}
