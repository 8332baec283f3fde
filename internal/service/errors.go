// Package service implements the reservation, settlement and chat
// coordination engine.  Every operation follows the same shape: begin
// a transaction, lock the reservation (or session) row, validate,
// write, commit, and only then publish to the messaging channel and
// dispatch notifications.  Validation failures are sentinel errors so
// handlers can translate them into stable error codes with errors.Is.
package service

import "errors"

// ErrInvalidAction is returned when the operation is not permitted in
// the reservation's current lifecycle state.
var ErrInvalidAction = errors.New("invalid action for current state")

// ErrAlreadyJoined is returned when a user with an active membership
// tries to join again.
var ErrAlreadyJoined = errors.New("already joined")

// ErrKicked is returned when a previously removed user tries to
// rejoin; kicks are permanent for the reservation.
var ErrKicked = errors.New("kicked from reservation")

// ErrNotParticipant is returned when the actor lacks an active
// membership required by the operation.
var ErrNotParticipant = errors.New("not a participant")

// ErrForbidden is returned when a host-only reservation operation is
// attempted by a non-host.
var ErrForbidden = errors.New("forbidden")

// ErrPermissionDenied is returned when a non-host attempts venue
// selection.
var ErrPermissionDenied = errors.New("permission denied")

// ErrUserNotFound is returned when the kick target has no active
// membership.
var ErrUserNotFound = errors.New("user not found in reservation")

// ErrNoDepositAmount is returned when the selected venue has no
// positive deposit configured.
var ErrNoDepositAmount = errors.New("store has no deposit amount")

// ErrInvalidConditions is returned when settlement preconditions
// (closed recruitment, selected venue, completed session for payout)
// are not met.
var ErrInvalidConditions = errors.New("settlement conditions not met")

// ErrNoPaymentSession is returned when no payment session is in
// progress for the reservation.
var ErrNoPaymentSession = errors.New("no payment session in progress")

// ErrAlreadyPaid is returned on a second completion attempt for the
// same participant; the duplicate is rejected, never double-counted.
var ErrAlreadyPaid = errors.New("payment already completed")

// ErrPaymentAlreadyStarted is returned when starting a settlement
// while a session with at least one completed payment exists.
var ErrPaymentAlreadyStarted = errors.New("payment already started")

// ErrPaymentInProgress is returned when resetting a session that
// already has completed payments.
var ErrPaymentInProgress = errors.New("payment in progress")

// ErrMessageEmpty and ErrMessageTooLong reject invalid chat bodies.
var (
	ErrMessageEmpty   = errors.New("message body is empty")
	ErrMessageTooLong = errors.New("message body too long")
)

// ErrPaymentConfirm wraps a gateway confirmation that did not end in
// DONE; no state was mutated.
var ErrPaymentConfirm = errors.New("payment confirmation failed")
