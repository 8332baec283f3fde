package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moimlab/moim-server/internal/middleware"
	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/service"
)

// SettlementHandler exposes deposit settlement over HTTP.  The room is
// addressed through its reservation: /v1/reservations/:id/payment.
type SettlementHandler struct {
	Settlements *service.SettlementService
}

func NewSettlementHandler(s *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{Settlements: s}
}

type completePaymentReq struct {
	PaymentKey string `json:"payment_key"`
	OrderID    string `json:"order_id"`
	Method     string `json:"method"`
}

type releaseReq struct {
	PaymentKey    string `json:"payment_key"`
	PayoutAccount string `json:"payout_account"`
}

type sessionView struct {
	ID                uint64    `json:"id"`
	ReservationID     uint64    `json:"reservation_id"`
	StoreID           uint64    `json:"store_id"`
	PerPersonAmount   int64     `json:"per_person_amount"`
	TotalAmount       int64     `json:"total_amount"`
	TotalParticipants uint32    `json:"total_participants"`
	CompletedPayments uint32    `json:"completed_payments"`
	Deadline          time.Time `json:"deadline"`
	Status            string    `json:"status"`
}

func viewSession(s *model.PaymentSession) sessionView {
	return sessionView{
		ID:                s.ID,
		ReservationID:     s.ReservationID,
		StoreID:           s.StoreID,
		PerPersonAmount:   s.PerPersonAmount,
		TotalAmount:       s.TotalAmount,
		TotalParticipants: s.TotalParticipants,
		CompletedPayments: s.CompletedPayments,
		Deadline:          s.Deadline,
		Status:            s.Status,
	}
}

// Start opens the deposit settlement; host only.
func (h *SettlementHandler) Start(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	sess, err := h.Settlements.Start(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, viewSession(sess))
}

// Complete confirms the caller's payment with the provider and marks
// their record paid.
func (h *SettlementHandler) Complete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req completePaymentReq
	if err := c.Bind(&req); err != nil || req.PaymentKey == "" || req.OrderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_key and order_id required"})
	}
	sess, err := h.Settlements.CompletePayment(c.Request().Context(), id, middleware.UserID(c), req.PaymentKey, req.OrderID, req.Method)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewSession(sess))
}

// Reset discards an untouched session; host only.
func (h *SettlementHandler) Reset(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Settlements.Reset(c.Request().Context(), id, middleware.UserID(c)); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Release pays the collected deposit out to the venue; host only.
func (h *SettlementHandler) Release(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req releaseReq
	if err := c.Bind(&req); err != nil || req.PaymentKey == "" || req.PayoutAccount == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_key and payout_account required"})
	}
	if err := h.Settlements.ReleaseDeposit(c.Request().Context(), id, middleware.UserID(c), req.PaymentKey, req.PayoutAccount); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Status returns the latest session and per-participant records.
func (h *SettlementHandler) Status(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	sess, recs, err := h.Settlements.Status(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	type recordView struct {
		UserID uint64     `json:"user_id"`
		Status string     `json:"status"`
		Method *string    `json:"method,omitempty"`
		PaidAt *time.Time `json:"paid_at,omitempty"`
	}
	rv := make([]recordView, 0, len(recs))
	for _, r := range recs {
		rv = append(rv, recordView{UserID: r.UserID, Status: r.Status, Method: r.Method, PaidAt: r.PaidAt})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session": viewSession(sess),
		"records": rv,
	})
}
