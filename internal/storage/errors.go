// Sentinel error values shared by every storage implementation.  These
// allow the service layer to distinguish failure scenarios with
// errors.Is instead of inspecting driver-specific errors.
package storage

import "errors"

// ErrReservationNotFound is returned when no reservation row exists
// for the requested ID.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrMembershipNotFound is returned when no membership row (active or
// kicked) exists for the (reservation, user) pair.
var ErrMembershipNotFound = errors.New("membership not found")

// ErrDuplicateMembership is returned when the UNIQUE
// (reservation_id, user_id) index rejects an insert.  Duplicate rows
// are prevented at write time, never cleaned up reactively.
var ErrDuplicateMembership = errors.New("membership already exists")

// ErrStoreNotFound is returned when the referenced venue does not
// exist in the catalog.
var ErrStoreNotFound = errors.New("store not found")

// ErrSessionNotFound is returned when a reservation has no payment
// session in progress.
var ErrSessionNotFound = errors.New("payment session not found")

// ErrRecordNotFound is returned when a session holds no payment record
// for the requested user.
var ErrRecordNotFound = errors.New("payment record not found")
