package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/moimlab/moim-server/internal/service"
	"github.com/moimlab/moim-server/internal/storage"
)

// apiError maps one engine sentinel to a stable code and HTTP status.
// Clients branch on the code; the status follows REST convention.
type apiError struct {
	status int
	code   string
}

var errCodes = []struct {
	err error
	api apiError
}{
	{service.ErrInvalidAction, apiError{http.StatusConflict, "INVALID_ACTION"}},
	{service.ErrAlreadyJoined, apiError{http.StatusConflict, "ALREADY_JOINED"}},
	{service.ErrKicked, apiError{http.StatusForbidden, "KICKED"}},
	{service.ErrNotParticipant, apiError{http.StatusForbidden, "NOT_PARTICIPANT"}},
	{service.ErrForbidden, apiError{http.StatusForbidden, "FORBIDDEN"}},
	{service.ErrPermissionDenied, apiError{http.StatusForbidden, "PERMISSION_DENIED"}},
	{service.ErrUserNotFound, apiError{http.StatusNotFound, "USER_NOT_FOUND"}},
	{service.ErrNoDepositAmount, apiError{http.StatusConflict, "NO_DEPOSIT_AMOUNT"}},
	{service.ErrInvalidConditions, apiError{http.StatusConflict, "INVALID_CONDITIONS"}},
	{service.ErrNoPaymentSession, apiError{http.StatusNotFound, "NO_PAYMENT_SESSION"}},
	{service.ErrAlreadyPaid, apiError{http.StatusConflict, "ALREADY_PAID"}},
	{service.ErrPaymentAlreadyStarted, apiError{http.StatusConflict, "PAYMENT_ALREADY_STARTED"}},
	{service.ErrPaymentInProgress, apiError{http.StatusConflict, "PAYMENT_IN_PROGRESS"}},
	{service.ErrMessageEmpty, apiError{http.StatusBadRequest, "MESSAGE_EMPTY"}},
	{service.ErrMessageTooLong, apiError{http.StatusBadRequest, "MESSAGE_TOO_LONG"}},
	{service.ErrPaymentConfirm, apiError{http.StatusBadGateway, "PAYMENT_CONFIRM_FAILED"}},
	{storage.ErrReservationNotFound, apiError{http.StatusNotFound, "RESERVATION_NOT_FOUND"}},
	{storage.ErrStoreNotFound, apiError{http.StatusNotFound, "STORE_NOT_FOUND"}},
	{storage.ErrSessionNotFound, apiError{http.StatusNotFound, "NO_PAYMENT_SESSION"}},
}

// fail translates an engine error into the JSON error envelope.
// Unrecognized errors become an opaque 500 so internals never leak.
func fail(c echo.Context, err error) error {
	for _, m := range errCodes {
		if errors.Is(err, m.err) {
			return c.JSON(m.api.status, echo.Map{"error": m.api.code})
		}
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "INTERNAL"})
}
