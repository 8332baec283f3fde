package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moimlab/moim-server/internal/middleware"
	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/service"
)

// ReservationHandler exposes the reservation lifecycle over HTTP.
type ReservationHandler struct {
	Reservations *service.ReservationService
	Venues       *service.VenueService
}

func NewReservationHandler(r *service.ReservationService, v *service.VenueService) *ReservationHandler {
	return &ReservationHandler{Reservations: r, Venues: v}
}

type createReservationReq struct {
	Title           string    `json:"title"`
	MaxParticipants uint32    `json:"max_participants"`
	MeetingAt       time.Time `json:"meeting_at"`
}

type kickReq struct {
	UserID uint64 `json:"user_id"`
}

type statusReq struct {
	Status string `json:"status"`
}

type selectStoreReq struct {
	StoreID *uint64 `json:"store_id"` // null clears the selection
}

// reservationView is the JSON shape for a reservation.
type reservationView struct {
	ID               uint64     `json:"id"`
	HostID           uint64     `json:"host_id"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	ParticipantCount uint32     `json:"participant_count"`
	MaxParticipants  uint32     `json:"max_participants"`
	StoreID          *uint64    `json:"store_id,omitempty"`
	StoreSelectedBy  *uint64    `json:"store_selected_by,omitempty"`
	StoreSelectedAt  *time.Time `json:"store_selected_at,omitempty"`
	MeetingAt        time.Time  `json:"meeting_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

func viewReservation(r *model.Reservation) reservationView {
	return reservationView{
		ID:               r.ID,
		HostID:           r.HostID,
		Title:            r.Title,
		Status:           r.Status,
		ParticipantCount: r.ParticipantCount,
		MaxParticipants:  r.MaxParticipants,
		StoreID:          r.StoreID,
		StoreSelectedBy:  r.StoreSelectedBy,
		StoreSelectedAt:  r.StoreSelectedAt,
		MeetingAt:        r.MeetingAt,
		CreatedAt:        r.CreatedAt,
	}
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// Create opens a new meetup with the caller as host.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.MaxParticipants < 2 || req.MeetingAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title, max_participants >= 2 and meeting_at required"})
	}

	r, err := h.Reservations.Create(c.Request().Context(), middleware.UserID(c), req.Title, req.MaxParticipants, req.MeetingAt)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, viewReservation(r))
}

// List returns reservations that are still recruiting.
func (h *ReservationHandler) List(c echo.Context) error {
	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	list, err := h.Reservations.ListOpen(c.Request().Context(), limit)
	if err != nil {
		return fail(c, err)
	}
	views := make([]reservationView, 0, len(list))
	for i := range list {
		views = append(views, viewReservation(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": views})
}

// Get returns one reservation with its member list.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	r, members, err := h.Reservations.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	type memberView struct {
		UserID   uint64    `json:"user_id"`
		IsHost   bool      `json:"is_host"`
		JoinedAt time.Time `json:"joined_at"`
	}
	mv := make([]memberView, 0, len(members))
	for _, m := range members {
		mv = append(mv, memberView{UserID: m.UserID, IsHost: m.UserID == r.HostID, JoinedAt: m.JoinedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation": viewReservation(r),
		"members":     mv,
	})
}

// Join adds the caller to the reservation.
func (h *ReservationHandler) Join(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	r, err := h.Reservations.Join(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewReservation(r))
}

// Leave removes the caller from the reservation.
func (h *ReservationHandler) Leave(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	r, err := h.Reservations.Leave(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewReservation(r))
}

// Kick removes a participant; host only.
func (h *ReservationHandler) Kick(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req kickReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}
	r, err := h.Reservations.Kick(c.Request().Context(), id, middleware.UserID(c), req.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewReservation(r))
}

// SetStatus applies an explicit lifecycle transition; host only.
func (h *ReservationHandler) SetStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	switch status {
	case model.ReservationRecruiting, model.ReservationClosed, model.ReservationConfirmed, model.ReservationRejected:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	r, err := h.Reservations.SetStatus(c.Request().Context(), id, middleware.UserID(c), status)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewReservation(r))
}

// SelectStore sets or clears the reservation's venue; host only.
func (h *ReservationHandler) SelectStore(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req selectStoreReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	r, err := h.Venues.SelectStore(c.Request().Context(), id, middleware.UserID(c), req.StoreID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewReservation(r))
}
