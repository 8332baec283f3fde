package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/moimlab/moim-server/internal/handler"
	"github.com/moimlab/moim-server/internal/middleware"
	"github.com/moimlab/moim-server/internal/model"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Reservation *handler.ReservationHandler
	Settlement  *handler.SettlementHandler
	Chat        *handler.ChatHandler
	Store       *handler.StoreHandler
	WS          *handler.WSHandler
}

// Register mounts every route on the Echo instance.  The rate limiter
// middleware (if any) applies to the whole API surface.
func Register(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	if limiter != nil {
		e.Use(limiter)
	}

	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// Unauthenticated session endpoints.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	// Everything below requires a valid access token.
	v1 := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	v1.GET("/me", h.Auth.Me)

	// Venue catalog: browsing is open to all roles, registration is
	// owner-only.
	v1.GET("/stores", h.Store.List)
	v1.GET("/stores/:id", h.Store.Get)
	v1.POST("/stores", h.Store.Create, middleware.RequireRole(model.RoleOwner))

	// Reservation lifecycle.
	v1.POST("/reservations", h.Reservation.Create)
	v1.GET("/reservations", h.Reservation.List)
	v1.GET("/reservations/:id", h.Reservation.Get)
	v1.POST("/reservations/:id/join", h.Reservation.Join)
	v1.POST("/reservations/:id/leave", h.Reservation.Leave)
	v1.POST("/reservations/:id/kick", h.Reservation.Kick)
	v1.PATCH("/reservations/:id/status", h.Reservation.SetStatus)
	v1.PUT("/reservations/:id/store", h.Reservation.SelectStore)

	// Deposit settlement.
	v1.POST("/reservations/:id/payment", h.Settlement.Start)
	v1.GET("/reservations/:id/payment", h.Settlement.Status)
	v1.POST("/reservations/:id/payment/complete", h.Settlement.Complete)
	v1.DELETE("/reservations/:id/payment", h.Settlement.Reset)
	v1.POST("/reservations/:id/payment/release", h.Settlement.Release)

	// Chat history and read state; live traffic uses the WebSocket.
	v1.GET("/reservations/:id/messages", h.Chat.History)
	v1.POST("/reservations/:id/messages", h.Chat.Send)
	v1.POST("/reservations/:id/read", h.Chat.MarkRead)
	v1.GET("/reservations/:id/unread", h.Chat.Unread)

	// Real-time room subscription.
	v1.GET("/reservations/:id/ws", h.WS.Subscribe)
}
