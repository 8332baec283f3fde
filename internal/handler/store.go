package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moimlab/moim-server/internal/middleware"
	"github.com/moimlab/moim-server/internal/model"
	"github.com/moimlab/moim-server/internal/service"
)

// StoreHandler serves the venue catalog.  Listing is open to any
// authenticated user; registration is owner-only (enforced in the
// router via RequireRole).
type StoreHandler struct {
	Venues *service.VenueService
}

func NewStoreHandler(v *service.VenueService) *StoreHandler {
	return &StoreHandler{Venues: v}
}

type createStoreReq struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	DepositAmount int64  `json:"deposit_amount"`
}

type storeView struct {
	ID            uint64    `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	DepositAmount int64     `json:"deposit_amount"`
	CreatedAt     time.Time `json:"created_at"`
}

func viewStore(s *model.Store) storeView {
	return storeView{ID: s.ID, Name: s.Name, Category: s.Category, DepositAmount: s.DepositAmount, CreatedAt: s.CreatedAt}
}

// List returns the venue catalog.
func (h *StoreHandler) List(c echo.Context) error {
	stores, err := h.Venues.ListStores(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	views := make([]storeView, 0, len(stores))
	for i := range stores {
		views = append(views, viewStore(&stores[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"stores": views})
}

// Get returns one venue.
func (h *StoreHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	s, err := h.Venues.GetStore(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, viewStore(s))
}

// Create registers a venue owned by the caller.
func (h *StoreHandler) Create(c echo.Context) error {
	var req createStoreReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.DepositAmount < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required, deposit_amount >= 0"})
	}
	s := &model.Store{
		OwnerID:       middleware.UserID(c),
		Name:          req.Name,
		Category:      strings.TrimSpace(req.Category),
		DepositAmount: req.DepositAmount,
	}
	if err := h.Venues.CreateStore(c.Request().Context(), s); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, viewStore(s))
}
